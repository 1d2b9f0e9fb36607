package rules

import (
	"context"
	"testing"

	"github.com/vaanibank/vaani/internal/nlu"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want nlu.Intent
	}{
		{
			text: "Check my account balance",
			want: nlu.Intent{Name: nlu.IntentCheckBalance, Confidence: 0.8},
		},
		{
			text: "how much money do I have",
			want: nlu.Intent{Name: nlu.IntentCheckBalance, Confidence: 0.8},
		},
		{
			text: "Send 500 to Ravi",
			want: nlu.Intent{Name: nlu.IntentSendMoney, Amount: 500, Receiver: "ravi", Confidence: 0.8},
		},
		{
			text: "transfer 1000 to john",
			want: nlu.Intent{Name: nlu.IntentSendMoney, Amount: 1000, Receiver: "john", Confidence: 0.8},
		},
		{
			text: "pay mom",
			want: nlu.Intent{Name: nlu.IntentSendMoney, Confidence: 0.8},
		},
		{
			text: "Show my recent transactions",
			want: nlu.Intent{Name: nlu.IntentHistory, Confidence: 0.8},
		},
		{
			text: "show last 5 transactions",
			want: nlu.Intent{Name: nlu.IntentHistory, Count: 5, Confidence: 0.8},
		},
		{
			text: "what's the weather like",
			want: nlu.Intent{Name: nlu.IntentUnknown, Confidence: 0.3},
		},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
