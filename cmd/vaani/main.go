// Command vaani is the main entry point for the Vaani voice banking server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/vaanibank/vaani/internal/assistant"
	"github.com/vaanibank/vaani/internal/bank"
	bankpostgres "github.com/vaanibank/vaani/internal/bank/postgres"
	banksqlite "github.com/vaanibank/vaani/internal/bank/sqlite"
	"github.com/vaanibank/vaani/internal/bridge"
	"github.com/vaanibank/vaani/internal/config"
	"github.com/vaanibank/vaani/internal/dialog"
	"github.com/vaanibank/vaani/internal/health"
	"github.com/vaanibank/vaani/internal/httpserver"
	"github.com/vaanibank/vaani/internal/nlu"
	nluanyllm "github.com/vaanibank/vaani/internal/nlu/anyllm"
	nluopenai "github.com/vaanibank/vaani/internal/nlu/openai"
	"github.com/vaanibank/vaani/internal/nlu/rules"
	"github.com/vaanibank/vaani/internal/observe"
	"github.com/vaanibank/vaani/internal/resilience"
	"github.com/vaanibank/vaani/internal/teller"
)

// version is stamped via -ldflags at release time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vaani: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vaani: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	slog.Info("vaani starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vaani",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Bank store ────────────────────────────────────────────────────────────
	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open bank store", "driver", cfg.Bank.Driver, "err", err)
		return 1
	}
	defer closeStore()
	slog.Info("bank store ready", "driver", cfg.Bank.Driver)

	// ── Intent classification ─────────────────────────────────────────────────
	classifier, err := buildClassifier(cfg, metrics)
	if err != nil {
		slog.Error("failed to build NLU chain", "err", err)
		return 1
	}

	tel := teller.New(store, classifier,
		teller.WithConfidenceThreshold(cfg.NLU.ConfidenceThreshold),
		teller.WithMetrics(metrics),
	)

	// ── Dialog bridge ─────────────────────────────────────────────────────────
	client, err := assistant.NewClient(assistantEndpoint(cfg),
		assistant.WithTimeout(cfg.Assistant.Timeout))
	if err != nil {
		slog.Error("failed to create assistant client", "err", err)
		return 1
	}
	wsHandler := bridge.NewHandler(client, bridge.Config{
		Dialog: dialog.Config{
			UserID:         cfg.Assistant.UserID,
			Greeting:       cfg.Dialog.Greeting,
			AutoCloseDelay: cfg.Dialog.AutoCloseDelay,
		},
		QuickPhrases: cfg.Dialog.QuickPhrases,
		Capture: bridge.CaptureConfig{
			Name:       cfg.Capture.Name,
			ModelPath:  cfg.Capture.ModelPath,
			Language:   cfg.Capture.Language,
			SampleRate: cfg.Capture.SampleRate,
		},
	}, bridge.WithMetrics(metrics))

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := httpserver.New(cfg.Server, tel,
		httpserver.WithMetrics(metrics),
		httpserver.WithHealth(health.New(health.PingChecker("bank", store))),
		httpserver.WithDialogHandler(wsHandler),
	)

	// ── Config watcher: runtime log level ─────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_, next *config.Config) {
		lvl.Set(slogLevel(next.Server.LogLevel))
		slog.Info("log level updated", "log_level", next.Server.LogLevel)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Wiring helpers ────────────────────────────────────────────────────────────

// buildStore opens the configured bank storage backend. The returned closer
// is never nil.
func buildStore(ctx context.Context, cfg *config.Config) (bank.Store, func(), error) {
	switch cfg.Bank.Driver {
	case config.DriverMemory:
		return bank.NewMemStore(), func() {}, nil
	case config.DriverSQLite:
		s, err := banksqlite.New(cfg.Bank.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Warn("sqlite close error", "err", err)
			}
		}, nil
	case config.DriverPostgres:
		s, err := bankpostgres.New(ctx, cfg.Bank.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown bank driver %q", cfg.Bank.Driver)
}

// buildClassifier assembles the NLU failover chain: configured model-backed
// classifiers in preference order, keyword rules as the terminal fallback.
func buildClassifier(cfg *config.Config, m *observe.Metrics) (nlu.Classifier, error) {
	var chain *nlu.Chain
	add := func(name string, c nlu.Classifier) {
		if chain == nil {
			chain = nlu.NewChain(c, name, resilience.FallbackConfig{})
			return
		}
		chain.AddFallback(name, c)
	}

	for _, entry := range cfg.NLU.Providers {
		c, err := buildProviderClassifier(entry)
		if err != nil {
			return nil, fmt.Errorf("create nlu provider %q: %w", entry.Name, err)
		}
		add(entry.Name, c)
		slog.Info("nlu provider created", "name", entry.Name, "model", entry.Model)
	}

	add("rules", rules.New())
	chain.SetMetrics(m)
	return chain, nil
}

// buildProviderClassifier constructs one model-backed classifier.
// "openai" speaks the OpenAI wire protocol directly (and via base_url any
// compatible endpoint such as DeepSeek); every other name goes through
// any-llm-go.
func buildProviderClassifier(entry config.ProviderEntry) (nlu.Classifier, error) {
	if entry.Name == "openai" {
		var opts []nluopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, nluopenai.WithBaseURL(entry.BaseURL))
		}
		return nluopenai.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return nluanyllm.New(entry.Name, entry.Model, opts...)
}

// assistantEndpoint resolves the URL the dialog bridge posts utterances to.
// Empty config means the endpoint served by this very process.
func assistantEndpoint(cfg *config.Config) string {
	if cfg.Assistant.EndpointURL != "" {
		return cfg.Assistant.EndpointURL
	}
	host, port, err := net.SplitHostPort(cfg.Server.ListenAddr)
	if err != nil {
		return "http://localhost:8080/assistant"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	scheme := "http"
	if cfg.Server.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/assistant", scheme, net.JoinHostPort(host, port))
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Vaani — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Listen addr", cfg.Server.ListenAddr)
	printRow("Bank driver", string(cfg.Bank.Driver))
	printRow("Capture", cfg.Capture.Name)
	names := make([]string, 0, len(cfg.NLU.Providers)+1)
	for _, p := range cfg.NLU.Providers {
		names = append(names, p.Name)
	}
	names = append(names, "rules")
	printRow("NLU chain", strings.Join(names, " → "))
	printRow("User", fmt.Sprintf("%d", cfg.Assistant.UserID))
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	} else {
		printRow("TLS", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", key, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
