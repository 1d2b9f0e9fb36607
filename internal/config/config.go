// Package config provides the configuration schema and loader for the Vaani
// voice banking server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Driver selects the bank storage backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// IsValid reports whether d is a recognised bank driver.
func (d Driver) IsValid() bool {
	switch d {
	case DriverMemory, DriverSQLite, DriverPostgres:
		return true
	}
	return false
}

// Defaults applied by [LoadFromReader] for absent fields.
const (
	DefaultListenAddr          = ":8080"
	DefaultUserID              = 1
	DefaultAssistantTimeout    = 10 * time.Second
	DefaultAutoCloseDelay      = 2 * time.Second
	DefaultConfidenceThreshold = 0.55
)

// Config is the root configuration structure for Vaani.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Assistant AssistantConfig `yaml:"assistant"`
	Dialog    DialogConfig    `yaml:"dialog"`
	NLU       NLUConfig       `yaml:"nlu"`
	Capture   CaptureConfig   `yaml:"capture"`
	Bank      BankConfig      `yaml:"bank"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AssistantConfig configures the dialog-side assistant client.
type AssistantConfig struct {
	// EndpointURL is the assistant endpoint the dialog core talks to. Empty
	// selects the endpoint served by this process.
	EndpointURL string `yaml:"endpoint_url"`

	// UserID is the banking customer attached to every assistant request.
	UserID int64 `yaml:"user_id"`

	// Timeout bounds one assistant round trip.
	Timeout time.Duration `yaml:"timeout"`
}

// DialogConfig configures per-session dialog behaviour.
type DialogConfig struct {
	// Greeting overrides the default opening text.
	Greeting string `yaml:"greeting"`

	// AutoCloseDelay is the pause before a successful response dismisses the
	// dialog.
	AutoCloseDelay time.Duration `yaml:"auto_close_delay"`

	// QuickPhrases are the shortcut utterances offered by the presentation.
	QuickPhrases []string `yaml:"quick_phrases"`
}

// NLUConfig configures intent classification.
type NLUConfig struct {
	// ConfidenceThreshold is the minimum intent confidence acted upon.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// Providers lists model-backed classifiers in preference order. The
	// rule-based classifier is always appended as the terminal fallback.
	Providers []ProviderEntry `yaml:"providers"`
}

// ProviderEntry selects one model-backed classifier.
type ProviderEntry struct {
	// Name selects the implementation: "openai" for any OpenAI-compatible
	// endpoint, or an any-llm-go provider name ("anthropic", "ollama",
	// "deepseek", "gemini", "mistral", "groq").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "deepseek-chat").
	Model string `yaml:"model"`
}

// CaptureConfig selects the speech capture implementation.
type CaptureConfig struct {
	// Name selects the recognizer: "browser" uses client-side recognition via
	// the session bridge; "whisper-native" transcribes client PCM in-process.
	Name string `yaml:"name"`

	// ModelPath is the whisper.cpp model file, required for whisper-native.
	ModelPath string `yaml:"model_path"`

	// Language is the transcription language hint (e.g., "en").
	Language string `yaml:"language"`

	// SampleRate is the PCM sample rate clients push, in Hz.
	SampleRate int `yaml:"sample_rate"`
}

// BankConfig selects the account storage backend.
type BankConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver Driver `yaml:"driver"`

	// DSN is the sqlite file path or postgres connection string. Unused for
	// the memory driver.
	DSN string `yaml:"dsn"`
}
