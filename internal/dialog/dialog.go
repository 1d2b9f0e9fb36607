// Package dialog implements the voice-assistant dialog state machine.
//
// A Dialog owns the interaction state between opening the assistant overlay,
// capturing one utterance, round-tripping with the assistant endpoint, and
// the password-confirmation sub-flow for sensitive actions. Events arrive
// from the presentation layer (open, close, start-capture, quick phrase,
// submit/cancel password) and from asynchronous completions (capture result,
// assistant response, auto-close timer).
//
// Every asynchronous operation is tagged with the open-generation current
// when it was issued. Completions whose generation no longer matches are
// discarded, so a response that arrives after the dialog was closed and
// reopened can never leak into the fresh session.
//
// Event handling is serialised by a mutex; side effects (speak, navigate,
// snapshot observer, close notification) run after the lock is released so
// collaborators may call back into the dialog freely.
package dialog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vaanibank/vaani/internal/assistant"
	"github.com/vaanibank/vaani/internal/observe"
	"github.com/vaanibank/vaani/pkg/capture"
	"github.com/vaanibank/vaani/pkg/playback"
)

// DefaultAutoCloseDelay is the pause before a successful or navigating
// response dismisses the dialog.
const DefaultAutoCloseDelay = 2 * time.Second

// Config carries the per-dialog settings.
type Config struct {
	// UserID is the banking customer attached to every assistant request.
	UserID int64

	// Greeting is the text shown when the dialog opens. Empty selects
	// [DefaultGreeting].
	Greeting string

	// AutoCloseDelay overrides [DefaultAutoCloseDelay] when positive.
	AutoCloseDelay time.Duration
}

// Option is a functional option for configuring a Dialog.
type Option func(*Dialog)

// WithNavigator registers the host's navigation callback. The page value is
// forwarded opaquely; the dialog does not validate it.
func WithNavigator(fn func(page string)) Option {
	return func(d *Dialog) { d.navigate = fn }
}

// WithObserver registers a callback invoked with a fresh [Snapshot] after
// every state change. The presentation layer renders from these.
func WithObserver(fn func(Snapshot)) Option {
	return func(d *Dialog) { d.observer = fn }
}

// WithOnClosed registers a callback invoked when the dialog closes itself
// (auto-close after a successful or navigating response).
func WithOnClosed(fn func()) Option {
	return func(d *Dialog) { d.onClosed = fn }
}

// WithMetrics enables latency recording for captures and assistant round
// trips. nil disables recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dialog) { d.metrics = m }
}

// Dialog is the state machine. All exported methods are safe for concurrent
// use and are no-ops when invoked in a state that does not accept them.
type Dialog struct {
	client assistant.Querier
	rec    capture.Recognizer
	syn    playback.Synthesizer

	navigate func(string)
	observer func(Snapshot)
	onClosed func()
	metrics  *observe.Metrics

	userID         int64
	greeting       string
	autoCloseDelay time.Duration

	mu         sync.Mutex
	gen        uint64
	state      State
	display    string
	pending    string // original utterance retained during a password challenge
	inFlight   bool
	closeTimer *time.Timer
}

// New creates a closed Dialog. Call [Dialog.Open] to begin a session.
// client, rec and syn must be non-nil; use the mock/noop implementations
// when a capability is absent.
func New(client assistant.Querier, rec capture.Recognizer, syn playback.Synthesizer, cfg Config, opts ...Option) *Dialog {
	d := &Dialog{
		client:         client,
		rec:            rec,
		syn:            syn,
		userID:         cfg.UserID,
		greeting:       cfg.Greeting,
		autoCloseDelay: cfg.AutoCloseDelay,
		state:          StateClosed,
	}
	if d.greeting == "" {
		d.greeting = DefaultGreeting
	}
	if d.autoCloseDelay <= 0 {
		d.autoCloseDelay = DefaultAutoCloseDelay
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Open resets the dialog to Idle with the greeting, discarding any state
// left over from a previous session (including a pending password challenge
// and a scheduled auto-close). Opening an already-open dialog resets it the
// same way.
func (d *Dialog) Open() {
	d.mu.Lock()
	d.bumpGenerationLocked()
	d.state = StateIdle
	d.display = d.greeting
	d.pending = ""
	d.inFlight = false
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.emit(snap)
}

// Close dismisses the dialog: the pending auto-close timer is cancelled and
// all session state is dropped. In-flight network calls are not cancelled;
// their results fail the generation check and are discarded on arrival.
func (d *Dialog) Close() {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return
	}
	d.bumpGenerationLocked()
	d.state = StateClosed
	d.display = ""
	d.pending = ""
	d.inFlight = false
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.emit(snap)
}

// StartCapture activates the speech capture adapter. It is a no-op while
// already listening, while a request is in flight, during a password
// challenge, or when the dialog is closed.
func (d *Dialog) StartCapture(ctx context.Context) {
	d.mu.Lock()
	if (d.state != StateIdle && d.state != StateError) || d.inFlight {
		d.mu.Unlock()
		return
	}
	d.state = StateListening
	gen := d.gen
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.emit(snap)

	go func() {
		start := time.Now()
		res, err := d.rec.Capture(ctx)
		if d.metrics != nil {
			d.metrics.CaptureDuration.Record(ctx, time.Since(start).Seconds())
		}
		d.captureDone(ctx, gen, res, err)
	}()
}

// captureDone consumes a capture completion. Stale completions (dialog
// closed or reopened since the capture started) are discarded.
func (d *Dialog) captureDone(ctx context.Context, gen uint64, res capture.Result, err error) {
	d.mu.Lock()
	if d.gen != gen || d.state != StateListening {
		d.mu.Unlock()
		slog.Debug("dialog: discarding stale capture result")
		return
	}
	if err != nil {
		if !errors.Is(err, capture.ErrNoSpeech) {
			slog.Warn("dialog: capture failed", "error", err)
		}
		d.state = StateIdle
		d.display = apologyText
		snap := d.snapshotLocked()
		d.mu.Unlock()
		d.emit(snap)
		return
	}
	d.state = StateIdle
	d.issueLocked(ctx, res.Text, nil)
}

// QuickPhrase submits shortcut text directly, bypassing capture. Disabled
// while listening, while a request is in flight, during a password
// challenge, and when closed.
func (d *Dialog) QuickPhrase(ctx context.Context, text string) {
	if text == "" {
		return
	}
	d.mu.Lock()
	if (d.state != StateIdle && d.state != StateError) || d.inFlight {
		d.mu.Unlock()
		return
	}
	d.issueLocked(ctx, text, nil)
}

// SubmitPassword resubmits the retained utterance together with the
// credential. Empty passwords are rejected at the presentation boundary and
// ignored here as well. The credential is never stored on the dialog; it
// lives only in the request value for the duration of the round trip.
func (d *Dialog) SubmitPassword(ctx context.Context, password string) {
	if password == "" {
		return
	}
	d.mu.Lock()
	if d.state != StateAwaitingPassword {
		d.mu.Unlock()
		return
	}
	utterance := d.pending
	d.pending = ""
	d.state = StateIdle
	d.issueLocked(ctx, utterance, &password)
}

// CancelPassword abandons the password challenge: the pending utterance is
// dropped and no further request is sent.
func (d *Dialog) CancelPassword() {
	d.mu.Lock()
	if d.state != StateAwaitingPassword {
		d.mu.Unlock()
		return
	}
	d.pending = ""
	d.state = StateIdle
	d.display = cancelledText
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.emit(snap)
}

// Snapshot returns the current state for rendering.
func (d *Dialog) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// ---- internals --------------------------------------------------------------

// issueLocked sends one assistant request. The caller must hold d.mu; the
// lock is released before returning. At most one request is in flight at a
// time — callers check d.inFlight before reaching this point.
func (d *Dialog) issueLocked(ctx context.Context, utterance string, password *string) {
	d.inFlight = true
	gen := d.gen
	req := assistant.Request{
		UserID:   d.userID,
		Message:  utterance,
		Password: password,
	}
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.emit(snap)

	go func() {
		start := time.Now()
		resp, err := d.client.Ask(ctx, req)
		req.Password = nil // drop the credential as soon as the round trip ends
		if d.metrics != nil {
			d.metrics.AssistantDuration.Record(ctx, time.Since(start).Seconds())
		}
		d.responseDone(gen, utterance, resp, err)
	}()
}

// responseDone consumes an assistant response or failure. Stale completions
// are discarded by the generation check.
func (d *Dialog) responseDone(gen uint64, utterance string, resp assistant.Response, err error) {
	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		slog.Debug("dialog: discarding stale assistant response")
		return
	}
	d.inFlight = false

	if err != nil {
		d.state = StateError
		d.display = errorDisplay(err)
		snap := d.snapshotLocked()
		d.mu.Unlock()
		slog.Warn("dialog: assistant request failed", "error", err)
		d.emit(snap)
		return
	}

	if resp.RequirePassword {
		d.state = StateAwaitingPassword
		d.pending = utterance
		d.display = resp.Reply
		snap := d.snapshotLocked()
		d.mu.Unlock()
		d.emit(snap)
		d.speak(resp.Reply)
		return
	}

	d.state = StateIdle
	d.pending = ""
	d.display = resp.Reply
	if resp.Success || (resp.Page != "" && resp.Page != statementsPage) {
		d.scheduleAutoCloseLocked(gen)
	}
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.emit(snap)
	d.speak(resp.Reply)
	if resp.Page != "" && d.navigate != nil {
		d.navigate(resp.Page)
	}
}

// scheduleAutoCloseLocked arms the auto-close timer for the given
// generation. The caller must hold d.mu.
func (d *Dialog) scheduleAutoCloseLocked(gen uint64) {
	if d.closeTimer != nil {
		d.closeTimer.Stop()
	}
	d.closeTimer = time.AfterFunc(d.autoCloseDelay, func() {
		d.autoClose(gen)
	})
}

// autoClose fires when the auto-close delay elapses. A generation mismatch
// means the dialog was closed or reopened in the meantime; the stale timer
// does nothing.
func (d *Dialog) autoClose(gen uint64) {
	d.mu.Lock()
	if d.gen != gen || d.state == StateClosed {
		d.mu.Unlock()
		return
	}
	d.bumpGenerationLocked()
	d.state = StateClosed
	d.display = ""
	d.pending = ""
	d.inFlight = false
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.emit(snap)
	if d.onClosed != nil {
		d.onClosed()
	}
}

// bumpGenerationLocked invalidates all outstanding async completions and
// cancels the auto-close timer. The caller must hold d.mu.
func (d *Dialog) bumpGenerationLocked() {
	d.gen++
	if d.closeTimer != nil {
		d.closeTimer.Stop()
		d.closeTimer = nil
	}
}

func (d *Dialog) snapshotLocked() Snapshot {
	return Snapshot{State: d.state, Display: d.display, Busy: d.inFlight}
}

// emit delivers a snapshot to the observer. Must be called without the lock.
func (d *Dialog) emit(snap Snapshot) {
	if d.observer != nil {
		d.observer(snap)
	}
}

// speak voices text fire-and-forget. Playback errors are logged only; a
// silent reply is an acceptable degradation.
func (d *Dialog) speak(text string) {
	if err := d.syn.Speak(context.Background(), text); err != nil {
		slog.Debug("dialog: speech playback failed", "error", err)
	}
}

// errorDisplay maps the assistant error taxonomy onto user-visible text.
func errorDisplay(err error) string {
	var pe *assistant.ProtocolError
	if errors.As(err, &pe) {
		return pe.Detail
	}
	return networkErrorText
}
