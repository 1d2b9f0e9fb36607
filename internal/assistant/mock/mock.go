// Package mock provides a test double for the assistant package interfaces.
//
// Pre-populate Outcomes with the responses each Ask call should produce, then
// inspect AskCalls to verify the exact requests the dialog issued.
package mock

import (
	"context"
	"sync"

	"github.com/vaanibank/vaani/internal/assistant"
)

// AskCall records a single invocation of Querier.Ask.
type AskCall struct {
	// Ctx is the context passed to Ask.
	Ctx context.Context

	// Req is the request passed to Ask. The Password pointer is copied
	// shallowly; tests should read it before the caller wipes the secret.
	Req assistant.Request

	// Password captures the dereferenced credential at call time, since the
	// dialog clears it from memory immediately after use.
	Password string

	// HadPassword records whether Req.Password was non-nil.
	HadPassword bool
}

// Outcome is one scripted Ask result.
type Outcome struct {
	Resp assistant.Response
	Err  error
}

// Querier is a mock implementation of assistant.Querier.
// Each Ask call consumes the next Outcome; an exhausted queue yields an
// empty successful response.
type Querier struct {
	mu sync.Mutex

	// Outcomes is the scripted result queue. Consumed front to back.
	Outcomes []Outcome

	// Block, if non-nil, makes Ask wait until the channel is closed (or ctx
	// is done), simulating a slow network round trip.
	Block chan struct{}

	// AskCalls records every call to Ask in order.
	AskCalls []AskCall
}

// Ask records the call and returns the next scripted outcome.
func (q *Querier) Ask(ctx context.Context, req assistant.Request) (assistant.Response, error) {
	q.mu.Lock()
	call := AskCall{Ctx: ctx, Req: req}
	if req.Password != nil {
		call.Password = *req.Password
		call.HadPassword = true
	}
	q.AskCalls = append(q.AskCalls, call)
	block := q.Block
	var out Outcome
	if len(q.Outcomes) > 0 {
		out = q.Outcomes[0]
		q.Outcomes = q.Outcomes[1:]
	}
	q.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return assistant.Response{}, assistant.ErrNetwork
		}
	}
	return out.Resp, out.Err
}

// CallCount returns the number of Ask calls so far. Thread-safe.
func (q *Querier) CallCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.AskCalls)
}

// LastCall returns the most recent AskCall, or a zero value if none.
func (q *Querier) LastCall() AskCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.AskCalls) == 0 {
		return AskCall{}
	}
	return q.AskCalls[len(q.AskCalls)-1]
}

// Compile-time assertion that Querier implements assistant.Querier.
var _ assistant.Querier = (*Querier)(nil)
