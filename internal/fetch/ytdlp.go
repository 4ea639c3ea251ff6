// Package fetch resolves media references to local files via a yt-dlp subprocess.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Runner executes the fetch backend binary. It exists so tests never exec.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (output string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Options configures the yt-dlp adapter. Quality tiers and audio encoding are
// configuration, not structure.
type Options struct {
	BinaryPath      string
	CookiesFile     string
	Timeout         time.Duration
	VideoLowHeight  int
	VideoHighHeight int
	AudioFormat     string
	AudioBitrate    string
}

// YtdlpFetcher shells out to yt-dlp and hands back a sanitized local payload.
type YtdlpFetcher struct {
	opts   Options
	runner Runner
	logger *slog.Logger
}

// NewYtdlpFetcher creates a fetcher with the default exec-based runner.
func NewYtdlpFetcher(log *slog.Logger, opts Options) *YtdlpFetcher {
	if log == nil {
		log = slog.Default()
	}
	return &YtdlpFetcher{
		opts:   opts,
		runner: execRunner{},
		logger: log.With(slog.String("service", "fetch")),
	}
}

// SetRunner replaces the subprocess runner. Tests use this.
func (f *YtdlpFetcher) SetRunner(r Runner) {
	if r != nil {
		f.runner = r
	}
}

// Fetch downloads ref into dir with the selector for mode and returns the
// resulting payload. dir must be an empty directory owned by this delivery.
func (f *YtdlpFetcher) Fetch(ctx context.Context, ref string, mode DeliveryMode, dir string) (Payload, error) {
	if strings.TrimSpace(ref) == "" {
		return Payload{}, &Error{Ref: ref, Reason: ReasonExtraction, Err: fmt.Errorf("reference is required")}
	}
	args := f.buildArgs(ref, mode, dir)

	runCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	f.logger.Info("fetch start", slog.String("ref", ref), slog.String("mode", mode.String()))
	output, runErr := f.runner.Run(runCtx, f.opts.BinaryPath, args...)
	if runErr != nil {
		reason := classifyOutput(output)
		f.logger.Warn("fetch failed",
			slog.String("ref", ref),
			slog.String("reason", string(reason)),
			slog.Any("error", runErr),
		)
		return Payload{}, &Error{Ref: ref, Reason: reason, Err: runErr}
	}

	// The backend picks the final extension, especially after transcoding, so
	// the actual output path is resolved from the directory contents.
	path, err := resolveOutputFile(dir)
	if err != nil {
		return Payload{}, &Error{Ref: ref, Reason: ReasonMissing, Err: err}
	}
	path, err = sanitizePath(path)
	if err != nil {
		return Payload{}, &Error{Ref: ref, Reason: ReasonMissing, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Payload{}, &Error{Ref: ref, Reason: ReasonMissing, Err: err}
	}
	if info.Size() == 0 {
		return Payload{}, &Error{Ref: ref, Reason: ReasonEmpty, Err: fmt.Errorf("downloaded file is empty")}
	}

	payload := Payload{
		Path:      path,
		SizeBytes: info.Size(),
		Extension: filepath.Ext(path),
	}
	f.logger.Info("fetch done",
		slog.String("ref", ref),
		slog.String("path", payload.Path),
		slog.Int64("size_bytes", payload.SizeBytes),
	)
	return payload, nil
}

func (f *YtdlpFetcher) buildArgs(ref string, mode DeliveryMode, dir string) []string {
	args := []string{
		"--no-playlist",
		"--quiet",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
	}
	switch mode {
	case ModeAudio:
		args = append(args,
			"-f", "bestaudio/best",
			"-x",
			"--audio-format", f.opts.AudioFormat,
			"--audio-quality", f.opts.AudioBitrate,
		)
	case ModeVideoLow:
		args = append(args, videoSelectorArgs(f.opts.VideoLowHeight)...)
	case ModeVideoHigh:
		args = append(args, videoSelectorArgs(f.opts.VideoHighHeight)...)
	}
	if f.opts.CookiesFile != "" {
		args = append(args, "--cookies", f.opts.CookiesFile)
	}
	return append(args, ref)
}

func videoSelectorArgs(height int) []string {
	return []string{
		"-f", fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", height, height),
		"--merge-output-format", "mp4",
	}
}

func classifyOutput(output string) Reason {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "requested format is not available"):
		return ReasonNoStream
	case strings.Contains(lower, "sign in to confirm"),
		strings.Contains(lower, "private video"),
		strings.Contains(lower, "cookies"):
		return ReasonAuth
	default:
		return ReasonExtraction
	}
}

// resolveOutputFile finds the downloaded file in dir. The directory is owned
// by one delivery, so the largest regular file is the payload (yt-dlp removes
// its own intermediate fragments on success).
func resolveOutputFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, entry.Name())
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no output file in %s", dir)
	}
	return best, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeBaseName replaces every character outside [A-Za-z0-9_.-] with an
// underscore. Part names and the merge tool depend on this alphabet.
func SanitizeBaseName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

func sanitizePath(path string) (string, error) {
	base := filepath.Base(path)
	clean := SanitizeBaseName(base)
	if clean == base {
		return path, nil
	}
	cleanPath := filepath.Join(filepath.Dir(path), clean)
	if err := os.Rename(path, cleanPath); err != nil {
		return "", fmt.Errorf("rename to sanitized name: %w", err)
	}
	return cleanPath, nil
}
