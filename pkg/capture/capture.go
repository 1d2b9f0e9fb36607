// Package capture defines the Recognizer interface for speech capture backends.
//
// A Recognizer wraps a speech-recognition capability (the browser's native
// SpeechRecognition relayed over the presentation bridge, or a local
// whisper.cpp model fed with raw PCM) and produces exactly one finalized
// utterance per activation. There is no partial-result stream: the dialog
// only ever acts on a single committed transcript, mirroring a one-shot
// recognition session.
//
// The microphone is a process-wide singleton. Use [Guard] to enforce that at
// most one capture is active at any time and to drive a UI-visible listening
// indicator.
package capture

import (
	"context"
	"errors"
	"sync/atomic"
)

// Sentinel errors returned by Recognizer implementations.
var (
	// ErrUnavailable indicates the platform has no speech-recognition
	// capability at all. Callers should fall back to text-only input.
	ErrUnavailable = errors.New("capture: speech recognition unavailable")

	// ErrNoSpeech indicates the capture ended without producing an
	// utterance (silence, audio failure, or permission denied). This is the
	// uniform no-result signal: callers must not treat it as fatal.
	ErrNoSpeech = errors.New("capture: no speech recognized")

	// ErrBusy is returned by [Guard.Capture] when a capture is already
	// active. The second activation is a no-op.
	ErrBusy = errors.New("capture: capture already active")
)

// Result is a single finalized utterance produced by a capture activation.
type Result struct {
	// Text is the recognized utterance. Never empty on a nil-error return.
	Text string

	// Confidence is the recognizer's confidence score (0.0–1.0). Zero when
	// the backend does not report one.
	Confidence float64
}

// Recognizer is the abstraction over any speech capture backend.
//
// Capture activates the capability and blocks until exactly one finalized
// utterance is available or the activation ends without a result. It returns
// [ErrNoSpeech] for any recoverable no-result outcome and [ErrUnavailable]
// when the capability is missing entirely. Cancelling ctx aborts the capture
// and releases the underlying audio resources.
//
// Implementations need not guard against concurrent activations themselves;
// wrap them in a [Guard] for that.
type Recognizer interface {
	Capture(ctx context.Context) (Result, error)
}

// StateFunc is notified when listening starts (true) and ends (false).
// The end notification fires whether or not the capture produced a result.
type StateFunc func(listening bool)

// Guard wraps a Recognizer to enforce the single-active-capture invariant
// and to publish listening-state transitions.
//
// Guard is safe for concurrent use.
type Guard struct {
	rec     Recognizer
	onState StateFunc
	active  atomic.Bool
}

// NewGuard wraps rec. onState may be nil.
func NewGuard(rec Recognizer, onState StateFunc) *Guard {
	return &Guard{rec: rec, onState: onState}
}

// Capture activates the underlying recognizer. If a capture is already
// active it returns [ErrBusy] without touching the recognizer. The state
// callback fires on entry and is guaranteed to fire again before Capture
// returns, regardless of outcome.
func (g *Guard) Capture(ctx context.Context) (Result, error) {
	if !g.active.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer func() {
		g.active.Store(false)
		if g.onState != nil {
			g.onState(false)
		}
	}()
	if g.onState != nil {
		g.onState(true)
	}
	return g.rec.Capture(ctx)
}

// Active reports whether a capture is currently in progress.
func (g *Guard) Active() bool {
	return g.active.Load()
}

// Compile-time assertion that Guard satisfies Recognizer.
var _ Recognizer = (*Guard)(nil)
