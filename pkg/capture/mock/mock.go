// Package mock provides a test double for the capture package interfaces.
//
// Pre-populate Results with the outcomes each Capture call should produce,
// then inspect CaptureCalls to verify how the consumer drove the recognizer.
package mock

import (
	"context"
	"sync"

	"github.com/vaanibank/vaani/pkg/capture"
)

// CaptureCall records a single invocation of Recognizer.Capture.
type CaptureCall struct {
	// Ctx is the context passed to Capture.
	Ctx context.Context
}

// Outcome is one scripted Capture result.
type Outcome struct {
	Result capture.Result
	Err    error
}

// Recognizer is a mock implementation of capture.Recognizer.
// Each Capture call consumes the next Outcome from Results; when Results is
// exhausted, Capture returns capture.ErrNoSpeech.
type Recognizer struct {
	mu sync.Mutex

	// Results is the scripted outcome queue. Consumed front to back.
	Results []Outcome

	// Block, if non-nil, is closed by the test to release an in-progress
	// Capture call. When nil, Capture returns immediately.
	Block chan struct{}

	// CaptureCalls records every call to Capture.
	CaptureCalls []CaptureCall
}

// Capture records the call and returns the next scripted outcome.
// It honours ctx cancellation while waiting on Block.
func (r *Recognizer) Capture(ctx context.Context) (capture.Result, error) {
	r.mu.Lock()
	r.CaptureCalls = append(r.CaptureCalls, CaptureCall{Ctx: ctx})
	block := r.Block
	var out Outcome
	if len(r.Results) > 0 {
		out = r.Results[0]
		r.Results = r.Results[1:]
	} else {
		out = Outcome{Err: capture.ErrNoSpeech}
	}
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return capture.Result{}, capture.ErrNoSpeech
		}
	}
	return out.Result, out.Err
}

// CallCount returns the number of Capture calls so far. Thread-safe.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.CaptureCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CaptureCalls = nil
}

// Compile-time assertion that Recognizer implements capture.Recognizer.
var _ capture.Recognizer = (*Recognizer)(nil)
