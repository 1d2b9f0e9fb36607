// Package teller executes classified banking intents against the bank store.
//
// The teller owns the conversational money path: balance lookups, transaction
// history formatted for voice output, and the two-step transfer flow where
// the first request returns a password challenge and the resubmission
// verifies the credential before moving money.
package teller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vaanibank/vaani/internal/bank"
	"github.com/vaanibank/vaani/internal/nlu"
	"github.com/vaanibank/vaani/internal/observe"
)

// DefaultConfidenceThreshold is the minimum intent confidence acted upon.
// Below it the teller asks the user to rephrase.
const DefaultConfidenceThreshold = 0.55

// Reply is the teller's answer to one utterance. It maps one-to-one onto the
// assistant endpoint's response body.
type Reply struct {
	// Text is the spoken and displayed reply.
	Text string

	// Page is a navigation hint for the presentation layer, empty for none.
	Page string

	// RequirePassword asks the client to resubmit the same utterance with
	// the account credential attached.
	RequirePassword bool

	// Success marks a completed sensitive action.
	Success bool
}

// Fixed reply texts.
const (
	rephraseText      = "I didn't understand. Could you please rephrase or be more specific?"
	passwordPrompt    = "Please confirm with your password"
	badPasswordText   = "Incorrect password. Transaction cancelled."
	insufficientText  = "Insufficient balance."
	needDetailsText   = "I need the amount and the recipient to send money. For example: 'Send 500 rupees to John.'"
	statementsPage    = "statements"
	noTransactionsTxt = "No transactions found."
)

// Option is a functional option for configuring a Teller.
type Option func(*Teller)

// WithConfidenceThreshold overrides [DefaultConfidenceThreshold].
func WithConfidenceThreshold(v float64) Option {
	return func(t *Teller) { t.threshold = v }
}

// WithMetrics enables metric recording for classifications and transfers.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Teller) { t.metrics = m }
}

// Teller classifies utterances and executes the resulting intents.
type Teller struct {
	store      bank.Store
	classifier nlu.Classifier
	threshold  float64
	metrics    *observe.Metrics
}

// New creates a Teller. store and classifier must be non-nil.
func New(store bank.Store, classifier nlu.Classifier, opts ...Option) *Teller {
	t := &Teller{
		store:      store,
		classifier: classifier,
		threshold:  DefaultConfidenceThreshold,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Handle processes one utterance for the given account. password is non-nil
// only on a password-challenge resubmission. Errors are infrastructure
// failures; everything the user can fix comes back as a Reply.
func (t *Teller) Handle(ctx context.Context, userID int64, message string, password *string) (Reply, error) {
	start := time.Now()
	intent, err := t.classifier.Classify(ctx, message)
	if err != nil {
		return Reply{}, fmt.Errorf("classify: %w", err)
	}
	if t.metrics != nil {
		t.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())
	}
	slog.Info("classified utterance",
		"intent", intent.Name, "confidence", intent.Confidence, "user_id", userID)

	if intent.Name == nlu.IntentUnknown || intent.Confidence < t.threshold {
		t.recordIntent(ctx, intent.Name, "low_confidence")
		return Reply{Text: rephraseText}, nil
	}
	t.recordIntent(ctx, intent.Name, "ok")

	switch intent.Name {
	case nlu.IntentCheckBalance:
		return t.checkBalance(ctx, userID)
	case nlu.IntentSendMoney:
		return t.sendMoney(ctx, userID, intent, password)
	case nlu.IntentHistory:
		return t.history(ctx, userID, intent.Count)
	}
	return Reply{Text: rephraseText}, nil
}

func (t *Teller) checkBalance(ctx context.Context, userID int64) (Reply, error) {
	acc, err := t.store.Account(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("look up account: %w", err)
	}
	return Reply{Text: fmt.Sprintf("Your current account balance is ₹%d", acc.Balance)}, nil
}

func (t *Teller) sendMoney(ctx context.Context, userID int64, intent nlu.Intent, password *string) (Reply, error) {
	if intent.Amount <= 0 || intent.Receiver == "" {
		return Reply{Text: needDetailsText}, nil
	}

	acc, err := t.store.Account(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("look up account: %w", err)
	}

	name, contactID, ok := resolveContact(intent.Receiver, acc.Contacts)
	if !ok {
		return Reply{Text: fmt.Sprintf("I couldn't find %s in your contacts.", intent.Receiver)}, nil
	}
	if name != intent.Receiver {
		slog.Debug("fuzzy contact match", "spoken", intent.Receiver, "resolved", name)
	}

	// Sensitive action: the first round trip only issues the challenge.
	if password == nil {
		return Reply{Text: passwordPrompt, RequirePassword: true}, nil
	}

	if err := t.store.VerifyPassword(ctx, userID, *password); err != nil {
		if errors.Is(err, bank.ErrBadPassword) {
			t.recordTransfer(ctx, "bad_password")
			return Reply{Text: badPasswordText}, nil
		}
		return Reply{}, fmt.Errorf("verify password: %w", err)
	}

	if _, err := t.store.Transfer(ctx, userID, contactID, intent.Amount); err != nil {
		if errors.Is(err, bank.ErrInsufficientFunds) {
			t.recordTransfer(ctx, "insufficient_funds")
			return Reply{Text: insufficientText}, nil
		}
		return Reply{}, fmt.Errorf("transfer: %w", err)
	}
	t.recordTransfer(ctx, "ok")

	display := displayName(name)
	return Reply{
		Text:    fmt.Sprintf("Transferred ₹%d to %s successfully.", intent.Amount, display),
		Success: true,
	}, nil
}

func (t *Teller) recordIntent(ctx context.Context, intent, status string) {
	if t.metrics != nil {
		t.metrics.RecordIntent(ctx, intent, status)
	}
}

func (t *Teller) recordTransfer(ctx context.Context, status string) {
	if t.metrics != nil {
		t.metrics.RecordTransfer(ctx, status)
	}
}

func (t *Teller) history(ctx context.Context, userID int64, count int) (Reply, error) {
	txs, err := t.store.Transactions(ctx, userID, count)
	if err != nil {
		return Reply{}, fmt.Errorf("look up transactions: %w", err)
	}
	return Reply{Text: formatTransactions(txs), Page: statementsPage}, nil
}

// formatTransactions renders a ledger for voice output: at most five
// descriptions joined into one sentence, with a count of the remainder.
func formatTransactions(txs []bank.Transaction) string {
	if len(txs) == 0 {
		return noTransactionsTxt
	}

	descriptions := make([]string, len(txs))
	for i, tx := range txs {
		descriptions[i] = tx.Description
	}

	switch {
	case len(descriptions) == 1:
		return descriptions[0]
	case len(descriptions) <= 5:
		return "Your recent transactions: " + strings.Join(descriptions, ". ")
	default:
		return fmt.Sprintf("Your recent transactions: %s (and %d more)",
			strings.Join(descriptions[:5], ". "), len(descriptions)-5)
	}
}

func displayName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
