package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrPayloadUnavailable means the source file disappeared before delivery.
	ErrPayloadUnavailable = errors.New("payload file unavailable")
	// ErrPayloadEmpty means the source file is zero-length.
	ErrPayloadEmpty = errors.New("payload file is empty")
)

// Payload is the local file one delivery owns. The engine deletes it, along
// with its scratch directory, on every exit path.
type Payload struct {
	Path      string
	SizeBytes int64
	Extension string
}

// Sink is the transport boundary the engine delivers to.
type Sink interface {
	SendDocument(ctx context.Context, path, displayName, caption string) error
	SendText(ctx context.Context, text string) error
}

// Progress describes one transmitted part. It is advisory only.
type Progress struct {
	PartIndex  int
	PartCount  int
	SentBytes  int64
	TotalBytes int64
}

// ProgressReporter is implemented by sinks that want per-part progress.
type ProgressReporter interface {
	Progress(Progress)
}

// Options configures an Engine.
type Options struct {
	CeilingBytes int64
	SendRetries  uint
}

// Engine implements bounded-size delivery: whole-file when the payload fits
// the ceiling, otherwise a merge tool, numbered parts in strict index order,
// and a final instruction message.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

func NewEngine(log *slog.Logger, opts Options) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if opts.SendRetries == 0 {
		opts.SendRetries = 1
	}
	return &Engine{
		opts:   opts,
		logger: log.With(slog.String("service", "transfer")),
	}
}

const mergeInstructions = "All parts sent. To rebuild the file:\n" +
	"1. Download every part and the merge tool into one folder.\n" +
	"2. Open the merge tool (the .html file) in your browser.\n" +
	"3. Press \"Merge parts\" and save the rebuilt file."

// Deliver sends payload to sink, splitting when it exceeds the ceiling. The
// payload and its scratch directory are removed on every exit path; cleanup
// failures are swallowed. A transmission failure aborts the remaining parts
// of this delivery only.
func (e *Engine) Deliver(ctx context.Context, payload Payload, sink Sink) error {
	scratchDir := filepath.Dir(payload.Path)
	defer func() {
		_ = os.RemoveAll(scratchDir)
	}()

	info, err := os.Stat(payload.Path)
	if err != nil {
		return ErrPayloadUnavailable
	}
	if info.Size() == 0 {
		return ErrPayloadEmpty
	}
	size := info.Size()

	plan := NewPlan(size, e.opts.CeilingBytes)
	name := filepath.Base(payload.Path)
	if !plan.Split() {
		return e.sendDocument(ctx, sink, payload.Path, name, "")
	}

	base := strings.TrimSuffix(name, payload.Extension)
	e.logger.Info("splitting payload",
		slog.String("path", payload.Path),
		slog.Int64("size_bytes", size),
		slog.Int("part_count", plan.PartCount),
	)

	toolPath, err := WriteMergeTool(scratchDir, base, payload.Extension, plan.PartCount)
	if err != nil {
		return err
	}
	toolCaption := fmt.Sprintf("Step 1 of 2: save this merge tool, then collect all %d parts.", plan.PartCount)
	if err := e.sendDocument(ctx, sink, toolPath, filepath.Base(toolPath), toolCaption); err != nil {
		return err
	}

	if err := e.sendParts(ctx, payload, plan, base, scratchDir, sink); err != nil {
		return err
	}

	return sink.SendText(ctx, mergeInstructions)
}

// sendParts streams the payload in ceiling-sized windows, keeping at most one
// part file on disk at a time.
func (e *Engine) sendParts(ctx context.Context, payload Payload, plan Plan, base, scratchDir string, sink Sink) error {
	src, err := os.Open(payload.Path)
	if err != nil {
		return ErrPayloadUnavailable
	}
	defer func() {
		_ = src.Close()
	}()

	var sent int64
	for index := 1; index <= plan.PartCount; index++ {
		partName := PartName(base, index, plan.PartCount, payload.Extension)
		partPath := filepath.Join(scratchDir, partName)
		written, err := writeWindow(partPath, src, e.opts.CeilingBytes)
		if err != nil {
			return fmt.Errorf("write part %d: %w", index, err)
		}

		caption := fmt.Sprintf("Part %d of %d", index, plan.PartCount)
		if err := e.sendDocument(ctx, sink, partPath, partName, caption); err != nil {
			_ = os.Remove(partPath)
			return fmt.Errorf("send part %d of %d: %w", index, plan.PartCount, err)
		}
		_ = os.Remove(partPath)

		sent += written
		progress := Progress{PartIndex: index, PartCount: plan.PartCount, SentBytes: sent, TotalBytes: plan.SizeBytes}
		e.logger.Info("part sent",
			slog.Int("part", index),
			slog.Int("of", plan.PartCount),
			slog.Int64("sent_bytes", sent),
		)
		if reporter, ok := sink.(ProgressReporter); ok {
			reporter.Progress(progress)
		}
	}
	return nil
}

func writeWindow(path string, src io.Reader, ceiling int64) (int64, error) {
	part, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	written, err := io.CopyN(part, src, ceiling)
	closeErr := part.Close()
	// The final window is shorter than the ceiling.
	if err != nil && !errors.Is(err, io.EOF) {
		return written, err
	}
	if written == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	return written, closeErr
}

// sendDocument sends one attachment with bounded exponential-backoff retries
// for transient transport failures.
func (e *Engine) sendDocument(ctx context.Context, sink Sink, path, displayName, caption string) error {
	operation := func() (struct{}, error) {
		return struct{}{}, sink.SendDocument(ctx, path, displayName, caption)
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(e.opts.SendRetries),
	)
	return err
}
