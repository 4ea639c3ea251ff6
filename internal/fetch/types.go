package fetch

import "fmt"

// DeliveryMode is the requested output family for a fetch.
type DeliveryMode int

const (
	ModeAudio DeliveryMode = iota
	ModeVideoLow
	ModeVideoHigh
)

// String returns the mode's wire name.
func (m DeliveryMode) String() string {
	switch m {
	case ModeAudio:
		return "audio"
	case ModeVideoLow:
		return "video-low"
	case ModeVideoHigh:
		return "video-high"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// IsVideo reports whether the mode requests a video container.
func (m DeliveryMode) IsVideo() bool {
	return m == ModeVideoLow || m == ModeVideoHigh
}

// Payload is a fetched file on transient storage. It is owned by the transfer
// engine for the duration of one delivery and never persisted.
type Payload struct {
	Path      string
	SizeBytes int64
	Extension string
}

// Reason classifies why a fetch failed.
type Reason string

const (
	// ReasonNoStream means no eligible stream exists for the requested mode.
	ReasonNoStream Reason = "no_stream"
	// ReasonExtraction means the backend reported an extraction error.
	ReasonExtraction Reason = "extraction"
	// ReasonAuth means credential material was required but absent or invalid.
	ReasonAuth Reason = "auth"
	// ReasonMissing means the post-fetch file could not be found.
	ReasonMissing Reason = "missing"
	// ReasonEmpty means the post-fetch file is zero-length.
	ReasonEmpty Reason = "empty"
)

// Error is a classified fetch failure for one reference.
type Error struct {
	Ref    string
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s (%s): %v", e.Ref, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s)", e.Ref, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }
