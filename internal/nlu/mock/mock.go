// Package mock provides a test double for the nlu package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/vaanibank/vaani/internal/nlu"
)

// Outcome is one scripted Classify result.
type Outcome struct {
	Intent nlu.Intent
	Err    error
}

// Classifier is a mock implementation of nlu.Classifier.
// Each Classify call consumes the next Outcome; an exhausted queue yields an
// unknown intent.
type Classifier struct {
	mu sync.Mutex

	// Outcomes is the scripted result queue. Consumed front to back.
	Outcomes []Outcome

	// Texts records the utterance of every Classify call in order.
	Texts []string
}

// Classify records the call and returns the next scripted outcome.
func (c *Classifier) Classify(_ context.Context, text string) (nlu.Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Texts = append(c.Texts, text)
	if len(c.Outcomes) == 0 {
		return nlu.Intent{Name: nlu.IntentUnknown, Confidence: 0.3}, nil
	}
	out := c.Outcomes[0]
	c.Outcomes = c.Outcomes[1:]
	return out.Intent, out.Err
}

// CallCount returns the number of Classify calls so far. Thread-safe.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Texts)
}

// Compile-time assertion that Classifier implements nlu.Classifier.
var _ nlu.Classifier = (*Classifier)(nil)
