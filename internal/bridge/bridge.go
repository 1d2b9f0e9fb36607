// Package bridge relays the dialog state machine over a WebSocket.
//
// Each connection owns one [dialog.Dialog]. Client intents (open, close,
// start-capture, quick phrase, password submit/cancel) arrive as JSON text
// messages; state snapshots, speech, navigation hints, and close
// notifications are pushed back the same way. In browser capture mode the
// client performs speech recognition itself and reports the utterance; in
// whisper mode the client streams raw PCM as binary messages and the server
// transcribes in-process.
package bridge

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/vaanibank/vaani/internal/assistant"
	"github.com/vaanibank/vaani/internal/dialog"
	"github.com/vaanibank/vaani/internal/observe"
)

// Capture mode names, matching the config schema.
const (
	CaptureBrowser = "browser"
	CaptureWhisper = "whisper-native"
)

// CaptureConfig selects and parameterises the per-session recognizer.
type CaptureConfig struct {
	// Name is [CaptureBrowser] or [CaptureWhisper]. Empty means browser.
	Name string

	// ModelPath is the whisper.cpp model file, required for whisper mode.
	ModelPath string

	// Language is the transcription language hint for whisper mode.
	Language string

	// SampleRate is the PCM sample rate clients stream, in Hz.
	SampleRate int
}

// Config carries the per-session settings shared by all connections.
type Config struct {
	// Dialog configures each session's state machine.
	Dialog dialog.Config

	// QuickPhrases are pushed to the client on connect for rendering as
	// shortcut buttons.
	QuickPhrases []string

	// Capture selects the recognizer wired into each session.
	Capture CaptureConfig
}

// Option is a functional option for [NewHandler].
type Option func(*Handler)

// WithMetrics overrides the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// Handler upgrades GET /ws/dialog requests and runs one session per
// connection until the peer disconnects.
type Handler struct {
	client  assistant.Querier
	cfg     Config
	metrics *observe.Metrics
}

// NewHandler creates the WebSocket dialog handler. client must be non-nil.
func NewHandler(client assistant.Querier, cfg Config, opts ...Option) *Handler {
	h := &Handler{client: client, cfg: cfg}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The dialog carries no cookies or ambient credentials, so
		// cross-origin pages embedding the widget are acceptable.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("bridge: websocket accept failed", "err", err)
		return
	}

	h.metrics.ActiveDialogs.Add(r.Context(), 1)
	defer h.metrics.ActiveDialogs.Add(context.Background(), -1)

	sess, err := newSession(conn, h.client, h.cfg, h.metrics)
	if err != nil {
		slog.Error("bridge: session setup failed", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}
	defer sess.shutdown()

	slog.Info("bridge: session connected", "remote", r.RemoteAddr)
	sess.run(r.Context())
	slog.Info("bridge: session ended", "remote", r.RemoteAddr)
}
