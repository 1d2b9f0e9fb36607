// Package rules provides a deterministic keyword-and-regex intent classifier.
//
// It is the terminal fallback in an NLU chain: it never returns an error, and
// an utterance matching no rule classifies as unknown with low confidence so
// the endpoint asks the user to rephrase.
package rules

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/vaanibank/vaani/internal/nlu"
)

// Confidence values reported by the rule matcher. Rules are trusted less than
// a confident model verdict but far more than a non-match.
const (
	matchConfidence   = 0.8
	noMatchConfidence = 0.3
)

var (
	balanceWords = []string{"balance", "how much", "money left", "account"}
	sendWords    = []string{"send", "transfer", "pay", "give"}
	historyWords = []string{"transaction", "history", "statement", "recent"}

	amountRe   = regexp.MustCompile(`(\d+)`)
	receiverRe = regexp.MustCompile(`to\s+(\w+)`)
	countRe    = regexp.MustCompile(`(\d+)\s+(?:transaction|recent|last|previous)`)
)

// Classifier implements nlu.Classifier with keyword rules.
type Classifier struct{}

// Compile-time interface assertion.
var _ nlu.Classifier = (*Classifier)(nil)

// New creates the rule-based classifier.
func New() *Classifier { return &Classifier{} }

// Classify matches text against the keyword rules. It never returns an error.
func (c *Classifier) Classify(_ context.Context, text string) (nlu.Intent, error) {
	lower := strings.ToLower(text)

	if containsAny(lower, balanceWords) {
		return nlu.Intent{Name: nlu.IntentCheckBalance, Confidence: matchConfidence}, nil
	}

	if containsAny(lower, sendWords) {
		in := nlu.Intent{Name: nlu.IntentSendMoney, Confidence: matchConfidence}
		if m := amountRe.FindStringSubmatch(lower); m != nil {
			in.Amount, _ = strconv.ParseInt(m[1], 10, 64)
		}
		if m := receiverRe.FindStringSubmatch(lower); m != nil {
			in.Receiver = m[1]
		}
		return in, nil
	}

	if containsAny(lower, historyWords) {
		in := nlu.Intent{Name: nlu.IntentHistory, Confidence: matchConfidence}
		if m := countRe.FindStringSubmatch(lower); m != nil {
			in.Count, _ = strconv.Atoi(m[1])
		}
		return in, nil
	}

	return nlu.Intent{Name: nlu.IntentUnknown, Confidence: noMatchConfidence}, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
