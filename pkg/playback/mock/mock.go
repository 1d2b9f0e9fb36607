// Package mock provides a test double for the playback package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/vaanibank/vaani/pkg/playback"
)

// SpeakCall records a single invocation of Synthesizer.Speak.
type SpeakCall struct {
	// Ctx is the context passed to Speak. Tests inspect it to verify that a
	// newer utterance cancelled this one.
	Ctx context.Context

	// Text is the utterance text.
	Text string
}

// Synthesizer is a mock implementation of playback.Synthesizer that records
// every Speak call.
type Synthesizer struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned by every Speak call.
	SpeakErr error

	// SpeakCalls records every call to Speak in order.
	SpeakCalls []SpeakCall
}

// Speak records the call and returns SpeakErr.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = append(s.SpeakCalls, SpeakCall{Ctx: ctx, Text: text})
	return s.SpeakErr
}

// Spoken returns the texts of all recorded Speak calls. Thread-safe.
func (s *Synthesizer) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.SpeakCalls))
	for i, c := range s.SpeakCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = nil
}

// Compile-time assertion that Synthesizer implements playback.Synthesizer.
var _ playback.Synthesizer = (*Synthesizer)(nil)
