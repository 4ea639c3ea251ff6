// Package session tracks the per-conversation guided delivery flow.
package session

import (
	"time"

	"github.com/memohai/clipcourier/internal/fetch"
)

// Step is the session's position in the guided flow.
type Step int

const (
	StepIdle Step = iota
	StepAwaitingMode
	StepAwaitingQuality
	StepProcessing
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepAwaitingMode:
		return "awaiting_mode"
	case StepAwaitingQuality:
		return "awaiting_quality"
	case StepProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Input is an event that may drive a step transition.
type Input int

const (
	// InputRefs is a new batch of extracted references.
	InputRefs Input = iota
	// InputAudio is the audio choice on the mode keyboard.
	InputAudio
	// InputVideo is the video choice on the mode keyboard.
	InputVideo
	// InputQuality is a concrete tier on the quality keyboard.
	InputQuality
	// InputCancel discards the pending batch.
	InputCancel
)

// transitions is the closed transition table. Any (step, input) pair absent
// here is stale: answered with a resend notice and otherwise a no-op. A new
// reference batch in a non-Idle, non-Processing step replaces the pending one.
var transitions = map[Step]map[Input]Step{
	StepIdle: {
		InputRefs: StepAwaitingMode,
	},
	StepAwaitingMode: {
		InputRefs:   StepAwaitingMode,
		InputAudio:  StepProcessing,
		InputVideo:  StepAwaitingQuality,
		InputCancel: StepIdle,
	},
	StepAwaitingQuality: {
		InputRefs:    StepAwaitingMode,
		InputQuality: StepProcessing,
		InputCancel:  StepIdle,
	},
	StepProcessing: {},
}

// Session is one conversation's mutable flow state. Invariants: Refs is
// non-empty whenever Step != StepIdle; Mode is set iff Step == StepProcessing.
type Session struct {
	ChatID    int64
	Step      Step
	Refs      []string
	Mode      fetch.DeliveryMode
	ModeSet   bool
	UpdatedAt time.Time
}

// Batch is the snapshot handed to the processing loop when a session reaches
// StepProcessing.
type Batch struct {
	Refs []string
	Mode fetch.DeliveryMode
}
