package transfer

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentDoc struct {
	displayName string
	caption     string
	data        []byte
}

// memorySink captures everything the engine transmits. Document bytes are
// copied at send time because the engine deletes each part right after it is
// acknowledged.
type memorySink struct {
	docs     []sentDoc
	texts    []string
	progress []Progress

	failOnDoc int // 1-based index of the document send that fails, 0 = never
	sendCount int
}

func (s *memorySink) SendDocument(_ context.Context, path, displayName, caption string) error {
	s.sendCount++
	if s.failOnDoc != 0 && s.sendCount >= s.failOnDoc {
		return errors.New("transport down")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.docs = append(s.docs, sentDoc{displayName: displayName, caption: caption, data: data})
	return nil
}

func (s *memorySink) SendText(_ context.Context, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func (s *memorySink) Progress(p Progress) {
	s.progress = append(s.progress, p)
}

// writePayload creates a payload file inside its own scratch directory, the
// ownership shape Deliver assumes.
func writePayload(t *testing.T, size int) Payload {
	t.Helper()
	scratch := filepath.Join(t.TempDir(), "dl_test")
	require.NoError(t, os.MkdirAll(scratch, 0o700))

	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)

	path := filepath.Join(scratch, "clip.mp4")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return Payload{Path: path, SizeBytes: int64(size), Extension: ".mp4"}
}

func newTestEngine(ceiling int64) *Engine {
	return NewEngine(nil, Options{CeilingBytes: ceiling, SendRetries: 1})
}

func TestDeliver_WholeFile(t *testing.T) {
	t.Parallel()
	payload := writePayload(t, 100)
	original, err := os.ReadFile(payload.Path)
	require.NoError(t, err)

	sink := &memorySink{}
	err = newTestEngine(1000).Deliver(context.Background(), payload, sink)
	require.NoError(t, err)

	require.Len(t, sink.docs, 1)
	assert.Equal(t, "clip.mp4", sink.docs[0].displayName)
	assert.Equal(t, original, sink.docs[0].data)
	assert.Empty(t, sink.texts)

	assert.NoDirExists(t, filepath.Dir(payload.Path))
}

func TestDeliver_SplitRoundTrip(t *testing.T) {
	t.Parallel()
	// 250 bytes at a 100-byte ceiling: parts of 100, 100, 50.
	payload := writePayload(t, 250)
	original, err := os.ReadFile(payload.Path)
	require.NoError(t, err)

	sink := &memorySink{}
	err = newTestEngine(100).Deliver(context.Background(), payload, sink)
	require.NoError(t, err)

	// Tool first, then parts in index order, then the instruction message.
	require.Len(t, sink.docs, 4)
	assert.Equal(t, "clip_merge.html", sink.docs[0].displayName)
	assert.Contains(t, sink.docs[0].caption, "Step 1 of 2")
	for i := 1; i <= 3; i++ {
		assert.Equal(t, fmt.Sprintf("clip_part%03dof003.mp4", i), sink.docs[i].displayName)
		assert.Equal(t, fmt.Sprintf("Part %d of 3", i), sink.docs[i].caption)
	}
	assert.Len(t, sink.docs[1].data, 100)
	assert.Len(t, sink.docs[2].data, 100)
	assert.Len(t, sink.docs[3].data, 50)

	// Concatenating the parts in order rebuilds the payload byte for byte.
	merged := bytes.Join([][]byte{sink.docs[1].data, sink.docs[2].data, sink.docs[3].data}, nil)
	assert.Equal(t, original, merged)

	require.Len(t, sink.texts, 1)
	assert.Contains(t, sink.texts[0], "All parts sent")

	// The tool lists exactly the part names that were transmitted.
	html := string(sink.docs[0].data)
	for i := 1; i <= 3; i++ {
		assert.Contains(t, html, fmt.Sprintf(`"clip_part%03dof003.mp4"`, i))
	}

	assert.NoDirExists(t, filepath.Dir(payload.Path))
}

func TestDeliver_Progress(t *testing.T) {
	t.Parallel()
	payload := writePayload(t, 250)

	sink := &memorySink{}
	err := newTestEngine(100).Deliver(context.Background(), payload, sink)
	require.NoError(t, err)

	require.Len(t, sink.progress, 3)
	assert.Equal(t, Progress{PartIndex: 1, PartCount: 3, SentBytes: 100, TotalBytes: 250}, sink.progress[0])
	assert.Equal(t, Progress{PartIndex: 3, PartCount: 3, SentBytes: 250, TotalBytes: 250}, sink.progress[2])
}

func TestDeliver_PartFailureAborts(t *testing.T) {
	t.Parallel()
	payload := writePayload(t, 250)

	// Tool is send 1; part 2 is send 3.
	sink := &memorySink{failOnDoc: 3}
	err := newTestEngine(100).Deliver(context.Background(), payload, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send part 2 of 3")

	// Only the tool and part 1 went out; no instruction message.
	assert.Len(t, sink.docs, 2)
	assert.Empty(t, sink.texts)

	// Scratch is gone even on the failure path.
	assert.NoDirExists(t, filepath.Dir(payload.Path))
}

func TestDeliver_MissingPayload(t *testing.T) {
	t.Parallel()
	scratch := filepath.Join(t.TempDir(), "dl_gone")
	require.NoError(t, os.MkdirAll(scratch, 0o700))
	payload := Payload{Path: filepath.Join(scratch, "clip.mp4"), Extension: ".mp4"}

	sink := &memorySink{}
	err := newTestEngine(100).Deliver(context.Background(), payload, sink)
	assert.ErrorIs(t, err, ErrPayloadUnavailable)
	assert.Empty(t, sink.docs)
	assert.NoDirExists(t, scratch)
}

func TestDeliver_EmptyPayload(t *testing.T) {
	t.Parallel()
	payload := writePayload(t, 0)

	sink := &memorySink{}
	err := newTestEngine(100).Deliver(context.Background(), payload, sink)
	assert.ErrorIs(t, err, ErrPayloadEmpty)
	assert.Empty(t, sink.docs)
	assert.NoDirExists(t, filepath.Dir(payload.Path))
}

func TestDeliver_RetriesTransientFailure(t *testing.T) {
	t.Parallel()
	payload := writePayload(t, 100)

	attempts := 0
	sink := &flakySink{memorySink: &memorySink{}, failures: 2, attempts: &attempts}
	engine := NewEngine(nil, Options{CeilingBytes: 1000, SendRetries: 3})
	err := engine.Deliver(context.Background(), payload, sink)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, sink.memorySink.docs, 1)
}

// flakySink fails the first N document sends, then delegates.
type flakySink struct {
	*memorySink
	failures int
	attempts *int
}

func (s *flakySink) SendDocument(ctx context.Context, path, displayName, caption string) error {
	*s.attempts++
	if *s.attempts <= s.failures {
		return errors.New("temporarily unavailable")
	}
	return s.memorySink.SendDocument(ctx, path, displayName, caption)
}

func TestDeliver_SanitizedNamesSurviveSplit(t *testing.T) {
	t.Parallel()
	scratch := filepath.Join(t.TempDir(), "dl_test")
	require.NoError(t, os.MkdirAll(scratch, 0o700))
	path := filepath.Join(scratch, "My_Talk_2024.mp4")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 150), 0o600))

	sink := &memorySink{}
	err := newTestEngine(100).Deliver(context.Background(), Payload{Path: path, SizeBytes: 150, Extension: ".mp4"}, sink)
	require.NoError(t, err)

	require.Len(t, sink.docs, 3)
	assert.Equal(t, "My_Talk_2024_merge.html", sink.docs[0].displayName)
	assert.True(t, strings.HasPrefix(sink.docs[1].displayName, "My_Talk_2024_part001of002"))
}
