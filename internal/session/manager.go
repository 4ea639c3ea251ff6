package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/memohai/clipcourier/internal/fetch"
)

var (
	// ErrStale means the input matched no pending step for the conversation.
	ErrStale = errors.New("no matching pending step")
	// ErrBusy means a batch is already processing for the conversation.
	ErrBusy = errors.New("a batch is already processing")
	// ErrNoReferences means a batch was started with zero references.
	ErrNoReferences = errors.New("reference batch is empty")
)

// Manager owns the per-conversation sessions. Transitions for one chat never
// run concurrently; everything goes through one mutex.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	logger   *slog.Logger
}

func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions: make(map[int64]*Session),
		logger:   log.With(slog.String("service", "session")),
	}
}

// BeginBatch buffers a new reference batch for chatID and moves the session
// to StepAwaitingMode. While a previous batch is processing the new one is
// rejected with ErrBusy; in any other non-Idle step it replaces the pending
// batch.
func (m *Manager) BeginBatch(chatID int64, refs []string) error {
	if len(refs) == 0 {
		return ErrNoReferences
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session(chatID)
	next, err := m.apply(sess, InputRefs)
	if err != nil {
		return err
	}
	sess.Step = next
	sess.Refs = append([]string(nil), refs...)
	sess.ModeSet = false
	m.sessions[chatID] = sess
	m.logger.Debug("batch buffered", slog.Int64("chat_id", chatID), slog.Int("refs", len(refs)))
	return nil
}

// SelectAudio fixes the audio mode and returns the batch to process.
func (m *Manager) SelectAudio(chatID int64) (Batch, error) {
	return m.selectMode(chatID, InputAudio, fetch.ModeAudio)
}

// SelectVideo advances to the quality choice.
func (m *Manager) SelectVideo(chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session(chatID)
	next, err := m.apply(sess, InputVideo)
	if err != nil {
		return err
	}
	sess.Step = next
	m.sessions[chatID] = sess
	return nil
}

// SelectQuality fixes a concrete video mode and returns the batch to process.
func (m *Manager) SelectQuality(chatID int64, mode fetch.DeliveryMode) (Batch, error) {
	if !mode.IsVideo() {
		return Batch{}, ErrStale
	}
	return m.selectMode(chatID, InputQuality, mode)
}

func (m *Manager) selectMode(chatID int64, input Input, mode fetch.DeliveryMode) (Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session(chatID)
	next, err := m.apply(sess, input)
	if err != nil {
		return Batch{}, err
	}
	sess.Step = next
	sess.Mode = mode
	sess.ModeSet = true
	m.sessions[chatID] = sess
	m.logger.Info("batch accepted",
		slog.Int64("chat_id", chatID),
		slog.String("mode", mode.String()),
		slog.Int("refs", len(sess.Refs)),
	)
	return Batch{Refs: append([]string(nil), sess.Refs...), Mode: mode}, nil
}

// Cancel discards the pending batch. Meaningful only while a choice is
// pending; Idle and Processing sessions report ErrStale.
func (m *Manager) Cancel(chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session(chatID)
	if _, err := m.apply(sess, InputCancel); err != nil {
		return err
	}
	delete(m.sessions, chatID)
	m.logger.Debug("batch cancelled", slog.Int64("chat_id", chatID))
	return nil
}

// Finish clears the session after the processing loop completes or fails.
func (m *Manager) Finish(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}

// Snapshot returns a copy of the session for chatID, reporting whether one
// exists.
func (m *Manager) Snapshot(chatID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[chatID]
	if !ok {
		return Session{ChatID: chatID, Step: StepIdle}, false
	}
	copied := *sess
	copied.Refs = append([]string(nil), sess.Refs...)
	return copied, true
}

// session returns the tracked session or a fresh Idle one (not yet stored).
func (m *Manager) session(chatID int64) *Session {
	if sess, ok := m.sessions[chatID]; ok {
		return sess
	}
	return &Session{ChatID: chatID, Step: StepIdle}
}

// apply looks up the transition table. Off-table inputs are stale, except a
// new batch during Processing, which is the explicit busy case.
func (m *Manager) apply(sess *Session, input Input) (Step, error) {
	next, ok := transitions[sess.Step][input]
	if !ok {
		if sess.Step == StepProcessing && input == InputRefs {
			return 0, ErrBusy
		}
		return 0, ErrStale
	}
	sess.UpdatedAt = time.Now()
	return next, nil
}
