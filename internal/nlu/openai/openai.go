// Package openai provides an intent classifier backed by any
// OpenAI-compatible chat completion API.
//
// DeepSeek exposes the same wire protocol, so the original deployment target
// is reached with WithBaseURL("https://api.deepseek.com/v1") and the
// "deepseek-chat" model.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/vaanibank/vaani/internal/nlu"
)

// Classification requests are tiny and deterministic.
const (
	temperature = 0.1
	maxTokens   = 200
)

// Classifier implements nlu.Classifier using a chat completion model.
type Classifier struct {
	client oai.Client
	model  string
}

// Compile-time interface assertion.
var _ nlu.Classifier = (*Classifier)(nil)

// config holds optional configuration for the classifier.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Classifier.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to point
// at any OpenAI-compatible endpoint such as DeepSeek.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a model-backed intent classifier.
func New(apiKey string, model string, opts ...Option) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Classifier{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Classify sends the utterance to the model and parses the intent JSON from
// the completion.
func (c *Classifier) Classify(ctx context.Context, text string) (nlu.Intent, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(nlu.SystemPrompt),
			oai.UserMessage(text),
		},
		Temperature:         param.NewOpt(temperature),
		MaxCompletionTokens: param.NewOpt(int64(maxTokens)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nlu.Intent{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nlu.Intent{}, fmt.Errorf("openai: empty choices in response")
	}

	return nlu.ParseModelOutput(resp.Choices[0].Message.Content)
}
