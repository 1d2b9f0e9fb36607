package bridge

import (
	"context"
	"sync"

	"github.com/vaanibank/vaani/pkg/capture"
)

// captureOutcome is one delivered recognition result.
type captureOutcome struct {
	res capture.Result
	err error
}

// remoteRecognizer implements [capture.Recognizer] on top of client-side
// speech recognition. Capture blocks until the client reports an utterance or
// no_speech, or the context ends.
type remoteRecognizer struct {
	mu      sync.Mutex
	pending chan captureOutcome
}

var _ capture.Recognizer = (*remoteRecognizer)(nil)

// Capture waits for the client's recognition verdict. The session sends the
// capture_start/stop events around this call via the capture guard.
func (r *remoteRecognizer) Capture(ctx context.Context) (capture.Result, error) {
	ch := make(chan captureOutcome, 1)
	r.mu.Lock()
	r.pending = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.pending = nil
		r.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return capture.Result{}, ctx.Err()
	case out := <-ch:
		return out.res, out.err
	}
}

// deliver hands a client-reported result to the waiting Capture call.
// A result with no capture in progress is dropped.
func (r *remoteRecognizer) deliver(res capture.Result, err error) {
	r.mu.Lock()
	ch := r.pending
	r.pending = nil
	r.mu.Unlock()
	if ch != nil {
		ch <- captureOutcome{res: res, err: err}
	}
}

// pcmSource buffers binary PCM frames from the client for the whisper
// recognizer. Frames arriving while no capture is draining the channel are
// dropped once the buffer fills; the client streams continuously and only
// the active capture window matters.
type pcmSource struct {
	frames chan []byte
}

func newPCMSource() *pcmSource {
	return &pcmSource{frames: make(chan []byte, 64)}
}

// ReadChunk implements whisper.Source.
func (s *pcmSource) ReadChunk(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk := <-s.frames:
		return chunk, nil
	}
}

// push enqueues one PCM frame, dropping it when the buffer is full.
func (s *pcmSource) push(frame []byte) {
	select {
	case s.frames <- frame:
	default:
	}
}
