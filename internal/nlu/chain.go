package nlu

import (
	"context"

	"github.com/vaanibank/vaani/internal/observe"
	"github.com/vaanibank/vaani/internal/resilience"
)

// Chain implements [Classifier] with automatic failover across multiple
// classifiers. Each entry has its own circuit breaker; when a model-backed
// classifier fails or its breaker is open, the next entry is tried. Putting
// the rules classifier last makes the chain effectively infallible.
type Chain struct {
	group *resilience.FallbackGroup[Classifier]
}

// Compile-time interface assertion.
var _ Classifier = (*Chain)(nil)

// NewChain creates a [Chain] with primary as the preferred classifier.
func NewChain(primary Classifier, primaryName string, cfg resilience.FallbackConfig) *Chain {
	return &Chain{
		group: resilience.NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional classifier. Fallbacks are tried in the
// order they are added, after the primary.
func (c *Chain) AddFallback(name string, classifier Classifier) {
	c.group.AddFallback(name, classifier)
}

// SetMetrics counts every classifier failure on m, attributed to the entry
// that failed. nil is ignored. Call it before the chain serves traffic.
func (c *Chain) SetMetrics(m *observe.Metrics) {
	if m == nil {
		return
	}
	c.group.OnFailure(func(name string, _ error) {
		m.RecordClassifierError(context.Background(), name)
	})
}

// Classify returns the verdict of the first healthy classifier.
func (c *Chain) Classify(ctx context.Context, text string) (Intent, error) {
	return resilience.ExecuteWithResult(c.group, func(cl Classifier) (Intent, error) {
		return cl.Classify(ctx, text)
	})
}
