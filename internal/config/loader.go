package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validCaptureNames lists the recognised capture implementations. Used by
// [Validate] to warn about likely typos.
var validCaptureNames = []string{"browser", "whisper-native"}

// validProviderNames lists the recognised NLU provider names.
var validProviderNames = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. ${VAR} references are expanded from the environment
// before parsing, so secrets can live in .env instead of the config file.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills absent fields with the Default* values.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Assistant.UserID == 0 {
		cfg.Assistant.UserID = DefaultUserID
	}
	if cfg.Assistant.Timeout <= 0 {
		cfg.Assistant.Timeout = DefaultAssistantTimeout
	}
	if cfg.Dialog.AutoCloseDelay <= 0 {
		cfg.Dialog.AutoCloseDelay = DefaultAutoCloseDelay
	}
	if cfg.NLU.ConfidenceThreshold <= 0 {
		cfg.NLU.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Capture.Name == "" {
		cfg.Capture.Name = "browser"
	}
	if cfg.Bank.Driver == "" {
		cfg.Bank.Driver = DriverMemory
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// NLU providers
	for i, p := range cfg.NLU.Providers {
		prefix := fmt.Sprintf("nlu.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if !slices.Contains(validProviderNames, p.Name) {
			slog.Warn("unknown NLU provider name — may be a typo",
				"name", p.Name, "known", validProviderNames)
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
	}
	if cfg.NLU.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("nlu.confidence_threshold %.2f is out of range (0, 1]", cfg.NLU.ConfidenceThreshold))
	}
	if len(cfg.NLU.Providers) == 0 {
		slog.Warn("no NLU providers configured; intent classification will use keyword rules only")
	}

	// Capture
	if !slices.Contains(validCaptureNames, cfg.Capture.Name) {
		slog.Warn("unknown capture name — may be a typo",
			"name", cfg.Capture.Name, "known", validCaptureNames)
	}
	if cfg.Capture.Name == "whisper-native" && cfg.Capture.ModelPath == "" {
		errs = append(errs, errors.New("capture.model_path is required when capture.name is whisper-native"))
	}

	// Bank
	if !cfg.Bank.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("bank.driver %q is invalid; valid values: memory, sqlite, postgres", cfg.Bank.Driver))
	}
	if cfg.Bank.Driver != DriverMemory && cfg.Bank.DSN == "" {
		errs = append(errs, fmt.Errorf("bank.dsn is required for driver %q", cfg.Bank.Driver))
	}

	return errors.Join(errs...)
}
