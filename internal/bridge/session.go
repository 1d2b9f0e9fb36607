package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/vaanibank/vaani/internal/assistant"
	"github.com/vaanibank/vaani/internal/dialog"
	"github.com/vaanibank/vaani/internal/observe"
	"github.com/vaanibank/vaani/pkg/capture"
	"github.com/vaanibank/vaani/pkg/capture/whisper"
	"github.com/vaanibank/vaani/pkg/playback"
)

// writeTimeout bounds one outbound frame. A peer that cannot drain events
// within it is treated as gone.
const writeTimeout = 5 * time.Second

// session binds one WebSocket connection to one dialog.
type session struct {
	conn *websocket.Conn
	cfg  Config
	d    *dialog.Dialog

	remote   *remoteRecognizer // browser mode
	pcm      *pcmSource        // whisper mode
	closeRec func() error      // whisper model teardown, nil otherwise

	writeMu sync.Mutex

	// openMu guards the per-open capture context. Closing the dialog cancels
	// captures but never in-flight assistant calls.
	openMu     sync.Mutex
	openCtx    context.Context
	openCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(conn *websocket.Conn, client assistant.Querier, cfg Config, metrics *observe.Metrics) (*session, error) {
	s := &session{conn: conn, cfg: cfg}

	var rec capture.Recognizer
	switch cfg.Capture.Name {
	case CaptureWhisper:
		s.pcm = newPCMSource()
		opts := []whisper.Option{}
		if cfg.Capture.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Capture.Language))
		}
		if cfg.Capture.SampleRate > 0 {
			opts = append(opts, whisper.WithSampleRate(cfg.Capture.SampleRate))
		}
		wr, err := whisper.New(cfg.Capture.ModelPath, s.pcm, opts...)
		if err != nil {
			return nil, fmt.Errorf("bridge: create whisper recognizer: %w", err)
		}
		rec = wr
		s.closeRec = wr.Close
	case CaptureBrowser, "":
		s.remote = &remoteRecognizer{}
		rec = s.remote
	default:
		return nil, fmt.Errorf("bridge: unknown capture mode %q", cfg.Capture.Name)
	}

	// The guard enforces one active capture and drives the client's
	// listening indicator (and, in whisper mode, its PCM streaming window).
	guard := capture.NewGuard(rec, func(listening bool) {
		ev := evCaptureStop
		if listening {
			ev = evCaptureStart
		}
		s.send(serverMessage{Type: ev})
	})

	synth := playback.Func(func(_ context.Context, text string) error {
		return s.send(serverMessage{Type: evSpeak, Text: text})
	})

	s.d = dialog.New(client, guard, synth, cfg.Dialog,
		dialog.WithObserver(func(snap dialog.Snapshot) {
			s.send(serverMessage{
				Type:    evState,
				State:   snap.State.String(),
				Display: snap.Display,
				Busy:    snap.Busy,
			})
		}),
		dialog.WithNavigator(func(page string) {
			s.send(serverMessage{Type: evNavigate, Page: page})
		}),
		dialog.WithOnClosed(func() {
			s.cancelCapture()
			s.send(serverMessage{Type: evClosed})
		}),
		dialog.WithMetrics(metrics),
	)

	return s, nil
}

// run pumps inbound frames until the peer disconnects or parent ends.
func (s *session) run(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)
	defer s.cancel()

	if len(s.cfg.QuickPhrases) > 0 {
		s.send(serverMessage{Type: evQuickPhrases, Phrases: s.cfg.QuickPhrases})
	}

	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			slog.Debug("bridge: read ended", "err", err)
			return
		}
		switch typ {
		case websocket.MessageBinary:
			if s.pcm != nil {
				s.pcm.push(data)
			}
		case websocket.MessageText:
			s.dispatch(data)
		}
	}
}

// dispatch handles one client intent.
func (s *session) dispatch(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("bridge: discarding malformed client message", "err", err)
		return
	}

	switch msg.Type {
	case msgOpen:
		s.resetCapture()
		s.d.Open()
	case msgClose:
		s.cancelCapture()
		s.d.Close()
	case msgStartCapture:
		s.d.StartCapture(s.captureContext())
	case msgQuickPhrase:
		s.d.QuickPhrase(s.ctx, msg.Text)
	case msgSubmitPassword:
		s.d.SubmitPassword(s.ctx, msg.Password)
	case msgCancelPassword:
		s.d.CancelPassword()
	case msgUtterance:
		if s.remote != nil {
			s.remote.deliver(capture.Result{Text: msg.Text, Confidence: msg.Confidence}, nil)
		}
	case msgNoSpeech:
		if s.remote != nil {
			s.remote.deliver(capture.Result{}, capture.ErrNoSpeech)
		}
	default:
		slog.Debug("bridge: unknown client message type", "type", msg.Type)
	}
}

// resetCapture arms a fresh capture context for a newly opened dialog.
func (s *session) resetCapture() {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	if s.openCancel != nil {
		s.openCancel()
	}
	s.openCtx, s.openCancel = context.WithCancel(s.ctx)
}

// cancelCapture aborts any in-progress capture. Assistant round trips keep
// their own context and are unaffected.
func (s *session) cancelCapture() {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	if s.openCancel != nil {
		s.openCancel()
		s.openCtx, s.openCancel = nil, nil
	}
}

func (s *session) captureContext() context.Context {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	if s.openCtx != nil {
		return s.openCtx
	}
	return s.ctx
}

// send pushes one event frame. Write failures are advisory; the read loop
// notices the dead connection and ends the session.
func (s *session) send(msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	base := s.ctx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, writeTimeout)
	defer cancel()

	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("bridge: write failed", "type", msg.Type, "err", err)
		return err
	}
	return nil
}

// shutdown tears the session down: captures cancelled, dialog closed,
// recognizer released.
func (s *session) shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancelCapture()
	s.d.Close()
	if s.closeRec != nil {
		if err := s.closeRec(); err != nil {
			slog.Warn("bridge: recognizer close failed", "err", err)
		}
	}
	_ = s.conn.Close(websocket.StatusNormalClosure, "session ended")
}
