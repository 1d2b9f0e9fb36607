// Package nlu classifies banking utterances into intents.
//
// A [Classifier] turns free-form text into one of a closed set of intents
// with extracted entities (amount, receiver, transaction count). LLM-backed
// classifiers live in the openai and anyllm subpackages; the rules subpackage
// is the deterministic regex fallback that never fails. [Chain] composes them
// with per-entry circuit breakers so a flaky model degrades to rules instead
// of taking the endpoint down.
package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Intent names. Unknown covers everything outside the banking domain.
const (
	IntentCheckBalance = "check_balance"
	IntentSendMoney    = "send_money"
	IntentHistory      = "transaction_history"
	IntentUnknown      = "unknown"
)

// Intent is a classified utterance. Zero-valued entity fields mean the
// entity was not present in the utterance.
type Intent struct {
	// Name is one of the Intent* constants.
	Name string

	// Amount is the money amount for send_money, in whole rupees.
	Amount int64

	// Receiver is the spoken recipient name for send_money, lowercased.
	Receiver string

	// Count limits transaction_history to the most recent N entries.
	Count int

	// Confidence is the classifier's self-reported certainty in [0, 1].
	Confidence float64
}

// Classifier turns an utterance into an Intent. Implementations return an
// error for infrastructure failures; an utterance the classifier cannot map
// is a successful classification with [IntentUnknown].
type Classifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// ErrLowConfidence is returned by model-backed classifiers when the model's
// own confidence falls below the trust floor, so a chain moves on to the
// next classifier.
var ErrLowConfidence = errors.New("model confidence too low")

// modelTrustFloor is the minimum self-reported confidence at which a model
// verdict is accepted instead of falling through to the next classifier.
const modelTrustFloor = 0.5

// SystemPrompt instructs a chat model to emit exactly one intent JSON object.
const SystemPrompt = `You are a banking intent classifier. Analyze the user's message and return ONLY valid JSON.

Response format:
{
    "intent": "check_balance", "send_money", "transaction_history", or "unknown",
    "amount": number or null,
    "receiver": string or null,
    "transaction_count": number or null,
    "confidence": number between 0.8-0.95
}

Examples:
- "check my balance" -> {"intent": "check_balance", "amount": null, "receiver": null, "transaction_count": null, "confidence": 0.95}
- "send 500 to ravi" -> {"intent": "send_money", "amount": 500, "receiver": "ravi", "transaction_count": null, "confidence": 0.92}
- "show my transactions" -> {"intent": "transaction_history", "amount": null, "receiver": null, "transaction_count": null, "confidence": 0.90}
- "show last 5 transactions" -> {"intent": "transaction_history", "amount": null, "receiver": null, "transaction_count": 5, "confidence": 0.93}
- "what's my balance" -> {"intent": "check_balance", "amount": null, "receiver": null, "transaction_count": null, "confidence": 0.93}
- "transfer 1000 to john" -> {"intent": "send_money", "amount": 1000, "receiver": "john", "transaction_count": null, "confidence": 0.94}

Return ONLY the JSON, no other text.`

// modelOutput is the wire shape the prompt demands. Pointer fields tolerate
// explicit nulls.
type modelOutput struct {
	Intent     *string  `json:"intent"`
	Amount     *float64 `json:"amount"`
	Receiver   *string  `json:"receiver"`
	Count      *float64 `json:"transaction_count"`
	Confidence *float64 `json:"confidence"`
}

// ParseModelOutput extracts the intent JSON from a model completion. Models
// occasionally wrap the object in prose or a code fence, so everything
// outside the outermost braces is discarded. A verdict below the trust floor
// yields [ErrLowConfidence].
func ParseModelOutput(content string) (Intent, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return Intent{}, fmt.Errorf("no JSON object in model output %q", truncate(content))
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return Intent{}, fmt.Errorf("decode model output: %w", err)
	}
	if out.Intent == nil || !validIntent(*out.Intent) {
		return Intent{}, fmt.Errorf("model produced invalid intent %v", out.Intent)
	}

	in := Intent{Name: *out.Intent}
	if out.Amount != nil {
		in.Amount = int64(*out.Amount)
	}
	if out.Receiver != nil {
		in.Receiver = strings.ToLower(strings.TrimSpace(*out.Receiver))
	}
	if out.Count != nil {
		in.Count = int(*out.Count)
	}
	if out.Confidence != nil {
		in.Confidence = *out.Confidence
	}
	if in.Confidence <= modelTrustFloor {
		return Intent{}, fmt.Errorf("%w: %.2f", ErrLowConfidence, in.Confidence)
	}
	return in, nil
}

func validIntent(name string) bool {
	switch name {
	case IntentCheckBalance, IntentSendMoney, IntentHistory, IntentUnknown:
		return true
	}
	return false
}

func truncate(s string) string {
	const max = 120
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
