package runner

import (
	"context"
	"slices"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
	"github.com/GriffinCanCode/scrollshot/internal/history"
	"github.com/GriffinCanCode/scrollshot/internal/screen"
	"github.com/GriffinCanCode/scrollshot/internal/session"
	"github.com/GriffinCanCode/scrollshot/internal/stitch"
	"github.com/GriffinCanCode/scrollshot/internal/syncx"
	"github.com/GriffinCanCode/scrollshot/internal/trace"
)

// ErrBusy is returned when a session is already running.
var ErrBusy = apperrors.New(apperrors.CodeBusy, "a scroll capture is already running")

// Request describes one scroll capture.
type Request struct {
	Selection     session.Rect    `json:"selection"`
	ScaleFactor   float64         `json:"scale_factor"`
	ScreenOrigin  session.Point   `json:"screen_origin"`
	DisplayID     uint32          `json:"display_id"`
	ExcludeWindow screen.WindowID `json:"exclude_window,omitempty"`
	MaxSteps      int             `json:"max_steps,omitempty"`
}

// Result summarizes a finished session.
type Result struct {
	ID         int64              `json:"id,omitempty"`
	SessionID  string             `json:"session_id"`
	Reason     session.StopReason `json:"reason"`
	Frames     int                `json:"frames"`
	Steps      int                `json:"steps"`
	Overlaps   []int              `json:"overlaps"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Output     string             `json:"output"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Status is a point-in-time view of the runner.
type Status struct {
	Running   bool    `json:"running"`
	SessionID string  `json:"session_id,omitempty"`
	Step      int     `json:"step"`
	Frames    int     `json:"frames"`
	Last      *Result `json:"last,omitempty"`
	LastError string  `json:"last_error,omitempty"`
}

// Recorder persists finished sessions.
type Recorder interface {
	Record(ctx context.Context, rec history.Record) (int64, error)
}

// Config holds session defaults applied when a request leaves them unset.
type Config struct {
	MaxSteps    int
	SettleDelay time.Duration
}

// Runner owns at most one session at a time.
type Runner struct {
	capturer session.Capturer
	scroller session.Scroller
	editor   Editor
	recorder Recorder
	cfg      Config

	events *EventLog
	status *syncx.Guard[Status]

	mu   sync.Mutex
	stop chan struct{} // non-nil while a session is active
}

// New creates a runner. recorder may be nil.
func New(capturer session.Capturer, scroller session.Scroller, editor Editor, recorder Recorder, cfg Config) *Runner {
	return &Runner{
		capturer: capturer,
		scroller: scroller,
		editor:   editor,
		recorder: recorder,
		cfg:      cfg,
		events:   NewEventLog(RecentEvents, EventBuffer),
		status:   syncx.NewGuard(Status{}),
	}
}

// Events returns the channel for live session events.
func (r *Runner) Events() <-chan Event { return r.events.Events() }

// Recent returns up to n of the newest events.
func (r *Runner) Recent(n int) []Event { return r.events.Recent(n) }

// Status returns the current status snapshot.
func (r *Runner) Status() Status {
	return syncx.View(r.status, func(s Status) Status {
		if s.Last != nil {
			last := *s.Last
			last.Overlaps = slices.Clone(last.Overlaps)
			s.Last = &last
		}
		return s
	})
}

// Busy reports whether a session is running.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// Run captures synchronously until the session stops, ctx is cancelled or
// Stop is called, then stitches whatever was gathered.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	stop, err := r.acquire()
	if err != nil {
		return Result{}, err
	}
	defer r.release()

	ctx, span := trace.StartSpan(ctx, "scroll_session")
	defer span.End()
	return r.run(ctx, span, req, stop)
}

// Start runs a session in the background and returns its id. Values from ctx
// are kept but its cancellation is not; use Stop to end the session.
func (r *Runner) Start(ctx context.Context, req Request) (string, error) {
	if err := session.Validate(req.Selection, req.ScaleFactor, req.MaxSteps); err != nil {
		return "", err
	}
	stop, err := r.acquire()
	if err != nil {
		return "", err
	}

	ctx, span := trace.StartSpan(context.WithoutCancel(ctx), "scroll_session")
	go func() {
		defer r.release()
		defer span.End()
		_, _ = r.run(ctx, span, req, stop) // failures are logged and emitted by run
	}()
	return span.Ctx.SpanID, nil
}

// Stop asks the active session to finish. It returns false when idle.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		return false
	}
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	return true
}

func (r *Runner) acquire() (chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		return nil, ErrBusy
	}
	r.stop = make(chan struct{})
	return r.stop, nil
}

func (r *Runner) release() {
	r.mu.Lock()
	r.stop = nil
	r.mu.Unlock()
}

func (r *Runner) run(ctx context.Context, span *trace.Span, req Request, stop <-chan struct{}) (Result, error) {
	id := span.Ctx.SpanID
	log := trace.Logger(ctx)
	span.SetAttr("session_id", id)

	opts := session.Options{
		Selection:    req.Selection,
		ScaleFactor:  req.ScaleFactor,
		ScreenOrigin: req.ScreenOrigin,
		DisplayID:    req.DisplayID,
		MaxSteps:     req.MaxSteps,
		SettleDelay:  r.cfg.SettleDelay,
		Capturer:     r.capturer,
		Scroller:     r.scroller,
		Logger:       log,
		OnEvent: func(ev session.Event) {
			r.status.Write(func(s *Status) { s.Step, s.Frames = ev.Step, ev.Frames })
			r.events.Emit(Event{SessionID: id, Event: ev})
		},
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = r.cfg.MaxSteps
	}
	sess, err := session.New(opts)
	if err != nil {
		return Result{}, r.fail(ctx, span, err)
	}
	sess.SetExclusionWindow(req.ExcludeWindow)

	res := Result{SessionID: id, StartedAt: time.Now()}
	r.status.Write(func(s *Status) { *s = Status{Running: true, SessionID: id, Last: s.Last} })
	r.events.Emit(Event{SessionID: id, Event: session.Event{Type: EventStarted}})
	log.Info("scroll capture started", "selection", req.Selection, "scale", req.ScaleFactor, "display", req.DisplayID)

	drive(ctx, sess, stop)

	// finishing must survive the cancellation that may have ended the session
	ctx = context.WithoutCancel(ctx)
	res.Reason = sess.StopReason()
	res.Steps = sess.Steps()
	frames := sess.Frames()
	res.Frames = len(frames)

	img, layout := stitch.StitchContext(ctx, frames)
	if img == nil {
		return res, r.fail(ctx, span, apperrors.New(apperrors.CodeEmptyResult, "nothing captured"))
	}
	res.Overlaps = layout.Overlaps
	res.Width, res.Height = layout.Width, layout.Height

	path, err := r.editor.Open(ctx, img)
	if err != nil {
		return res, r.fail(ctx, span, err)
	}
	res.Output = path
	res.FinishedAt = time.Now()

	if r.recorder != nil {
		recID, err := r.recorder.Record(ctx, toRecord(res))
		if err != nil {
			log.Warn("failed to record session", "error", err)
		}
		res.ID = recID
	}

	span.SetAttr("frames", res.Frames)
	span.SetAttr("height", res.Height)
	log.Info("scroll capture finished", "reason", res.Reason.String(), "frames", res.Frames, "height", res.Height, "output", path)
	r.status.Set(Status{Last: &res})
	r.events.Emit(Event{SessionID: id, Event: session.Event{Type: EventFinished, Reason: res.Reason, Frames: res.Frames, Step: res.Steps}, Output: path})
	return res, nil
}

// drive ticks sess every settle delay until it stops or the host cancels it.
func drive(ctx context.Context, sess *session.Session, stop <-chan struct{}) {
	ticker := time.NewTicker(sess.SettleDelay())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sess.Cancel()
			return
		case <-stop:
			sess.Cancel()
			return
		case <-ticker.C:
			// a stop that raced with this tick wins
			if stopped(ctx, stop) {
				sess.Cancel()
				return
			}
			if !sess.Tick() {
				return
			}
		}
	}
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return ctx.Err() != nil
	}
}

func (r *Runner) fail(ctx context.Context, span *trace.Span, err error) error {
	id := span.Ctx.SpanID
	span.Fail(err)
	trace.Logger(ctx).Warn("scroll capture ended without output", "session_id", id, "error", err)
	r.status.Write(func(s *Status) { *s = Status{Last: s.Last, LastError: err.Error()} })
	r.events.Emit(Event{SessionID: id, Event: session.Event{Type: EventFailed, Err: err}})
	return err
}

func toRecord(res Result) history.Record {
	return history.Record{
		SessionID:  res.SessionID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Reason:     res.Reason.String(),
		Frames:     res.Frames,
		Steps:      res.Steps,
		Overlaps:   res.Overlaps,
		Width:      res.Width,
		Height:     res.Height,
		Output:     res.Output,
	}
}
