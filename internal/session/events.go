package session

import apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"

// Phase is the step the next Tick performs.
type Phase int

const (
	PhaseCapture Phase = iota
	PhaseScroll
)

func (p Phase) String() string {
	return [...]string{"capture", "scroll"}[p]
}

// StopReason explains why a session terminated.
type StopReason int

const (
	StopNone StopReason = iota
	StopNoMovement
	StopEndOfContent
	StopMaxSteps
	StopCancelled
)

var stopReasonNames = [...]string{"running", "no_movement", "end_of_content", "max_steps", "cancelled"}

func (r StopReason) String() string {
	return stopReasonNames[r]
}

func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *StopReason) UnmarshalText(b []byte) error {
	for i, name := range stopReasonNames {
		if name == string(b) {
			*r = StopReason(i)
			return nil
		}
	}
	return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown stop reason %q", b)
}

// EventType names a session event.
type EventType string

const (
	EventCaptured      EventType = "captured"
	EventCaptureFailed EventType = "capture_failed"
	EventScrolled      EventType = "scrolled"
	EventScrollFailed  EventType = "scroll_failed"
	EventNoOverlap     EventType = "no_overlap"
	EventStopped       EventType = "stopped"
)

// Event reports session progress to the host.
type Event struct {
	Type    EventType `json:"type"`
	Step    int       `json:"step"`
	Frames  int       `json:"frames"`
	Overlap int       `json:"overlap,omitempty"`
	Tier    string    `json:"tier,omitempty"`
	// Distance is the perceptual-hash distance between the last two frames,
	// set on EventNoOverlap (-1 when it could not be computed).
	Distance int        `json:"distance,omitempty"`
	Reason   StopReason `json:"reason,omitempty"`
	Err      error      `json:"-"`
}
