// Package playback defines the Synthesizer interface for speech playback
// backends.
//
// A Synthesizer wraps a speech-synthesis capability (the browser's
// speechSynthesis relayed over the presentation bridge, or any server-side
// TTS engine). Playback is fire-and-forget from the dialog's point of view
// and follows a most-recent-wins policy: starting a new utterance cancels
// whatever is currently being spoken. There is no queueing.
//
// The synthesis engine is a process-wide singleton per client; [Interrupter]
// serialises Speak calls so at most one utterance plays at a time.
package playback

import (
	"context"
	"strings"
	"sync"
)

// Synthesizer is the abstraction over any speech playback backend.
//
// Speak starts voicing text and returns without waiting for playback to
// finish. Implementations must cancel any utterance still in flight before
// starting the new one, and must treat empty or whitespace-only text as a
// no-op. Errors are advisory: callers log them but never surface them to the
// user, since a silent reply is an acceptable degradation.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Func adapts a function to the Synthesizer interface.
type Func func(ctx context.Context, text string) error

// Speak calls f.
func (f Func) Speak(ctx context.Context, text string) error { return f(ctx, text) }

// Noop is a Synthesizer that does nothing. Used when the platform lacks
// speech synthesis entirely; replies stay text-only.
var Noop Synthesizer = Func(func(context.Context, string) error { return nil })

// Interrupter wraps a Synthesizer and enforces most-recent-wins: each Speak
// cancels the context of the previous one before delegating, so a backend
// honouring cancellation stops the old utterance. Empty text cancels any
// current utterance without starting a new one.
//
// Interrupter is safe for concurrent use.
type Interrupter struct {
	syn Synthesizer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewInterrupter wraps syn.
func NewInterrupter(syn Synthesizer) *Interrupter {
	return &Interrupter{syn: syn}
}

// Speak cancels the in-flight utterance, then voices text. A blank text is a
// pure cancellation.
func (i *Interrupter) Speak(ctx context.Context, text string) error {
	i.mu.Lock()
	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
	if strings.TrimSpace(text) == "" {
		i.mu.Unlock()
		return nil
	}
	speakCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.mu.Unlock()

	return i.syn.Speak(speakCtx, text)
}

// Stop cancels the current utterance, if any.
func (i *Interrupter) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
}

// Compile-time assertion that Interrupter satisfies Synthesizer.
var _ Synthesizer = (*Interrupter)(nil)
