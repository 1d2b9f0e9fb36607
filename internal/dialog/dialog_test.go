package dialog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/vaanibank/vaani/internal/assistant"
	assistantmock "github.com/vaanibank/vaani/internal/assistant/mock"
	"github.com/vaanibank/vaani/internal/dialog"
	"github.com/vaanibank/vaani/internal/observe"
	"github.com/vaanibank/vaani/pkg/capture"
	capturemock "github.com/vaanibank/vaani/pkg/capture/mock"
	playbackmock "github.com/vaanibank/vaani/pkg/playback/mock"
)

const testAutoClose = 30 * time.Millisecond

type fixture struct {
	d      *dialog.Dialog
	client *assistantmock.Querier
	rec    *capturemock.Recognizer
	syn    *playbackmock.Synthesizer

	mu    sync.Mutex
	pages []string
}

func newFixture(t *testing.T, outcomes ...assistantmock.Outcome) *fixture {
	t.Helper()
	f := &fixture{
		client: &assistantmock.Querier{Outcomes: outcomes},
		rec:    &capturemock.Recognizer{},
		syn:    &playbackmock.Synthesizer{},
	}
	f.d = dialog.New(f.client, f.rec, f.syn,
		dialog.Config{UserID: 1, AutoCloseDelay: testAutoClose},
		dialog.WithNavigator(func(page string) {
			f.mu.Lock()
			f.pages = append(f.pages, page)
			f.mu.Unlock()
		}),
	)
	return f
}

func (f *fixture) navigated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pages...)
}

func waitFor(t *testing.T, d *dialog.Dialog, cond func(dialog.Snapshot) bool) dialog.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := d.Snapshot(); cond(s) {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met in time; last snapshot: %+v", d.Snapshot())
	return dialog.Snapshot{}
}

func settled(s dialog.Snapshot) bool { return !s.Busy && s.State != dialog.StateListening }

func TestOpenResetsToGreeting(t *testing.T) {
	f := newFixture(t, assistantmock.Outcome{
		Resp: assistant.Response{Reply: "Please confirm with your password", RequirePassword: true},
	})
	f.d.Open()

	if s := f.d.Snapshot(); s.State != dialog.StateIdle || s.Display != dialog.DefaultGreeting {
		t.Fatalf("fresh open: got %+v", s)
	}

	// Drive into AwaitingPassword, then reopen: everything must reset.
	f.d.QuickPhrase(context.Background(), "Send 500 to Ravi")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.State == dialog.StateAwaitingPassword })

	f.d.Open()
	s := f.d.Snapshot()
	if s.State != dialog.StateIdle {
		t.Errorf("reopen state = %v, want idle", s.State)
	}
	if s.Display != dialog.DefaultGreeting {
		t.Errorf("reopen display = %q, want greeting", s.Display)
	}

	// The abandoned challenge must be gone: submitting a password now is a no-op.
	f.d.SubmitPassword(context.Background(), "secret")
	time.Sleep(10 * time.Millisecond)
	if got := f.client.CallCount(); got != 1 {
		t.Errorf("stale challenge produced a request: %d calls, want 1", got)
	}
}

func TestNoPasswordResponseLeavesNoChallenge(t *testing.T) {
	f := newFixture(t, assistantmock.Outcome{
		Resp: assistant.Response{Reply: "Your balance is ₹75,420"},
	})
	f.d.Open()
	f.d.QuickPhrase(context.Background(), "Check my account balance")

	s := waitFor(t, f.d, func(s dialog.Snapshot) bool { return settled(s) && s.Display != dialog.DefaultGreeting })
	if s.State != dialog.StateIdle {
		t.Errorf("state = %v, want idle", s.State)
	}
	if s.Display != "Your balance is ₹75,420" {
		t.Errorf("display = %q", s.Display)
	}

	// No challenge was retained.
	f.d.SubmitPassword(context.Background(), "whatever")
	time.Sleep(10 * time.Millisecond)
	if got := f.client.CallCount(); got != 1 {
		t.Errorf("got %d requests, want 1", got)
	}
	// No navigation, and the dialog stays open (success defaulted false).
	if len(f.navigated()) != 0 {
		t.Errorf("unexpected navigation: %v", f.navigated())
	}
	time.Sleep(2 * testAutoClose)
	if s := f.d.Snapshot(); s.State == dialog.StateClosed {
		t.Error("dialog auto-closed without success or navigation")
	}
}

func TestPasswordChallengeResubmission(t *testing.T) {
	f := newFixture(t,
		assistantmock.Outcome{Resp: assistant.Response{Reply: "Please confirm with your password", RequirePassword: true}},
		assistantmock.Outcome{Resp: assistant.Response{Reply: "Transfer complete", Success: true}},
	)
	f.d.Open()
	f.d.QuickPhrase(context.Background(), "Send 500 to Ravi")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.State == dialog.StateAwaitingPassword })

	// Quick phrases and captures are disabled during the challenge.
	f.d.QuickPhrase(context.Background(), "Check my account balance")
	f.d.StartCapture(context.Background())
	if got := f.client.CallCount(); got != 1 {
		t.Fatalf("input during challenge issued a request: %d calls", got)
	}
	if f.rec.CallCount() != 0 {
		t.Fatal("capture started during password challenge")
	}

	f.d.SubmitPassword(context.Background(), "secret")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.Display == "Transfer complete" })

	second := f.client.LastCall()
	if second.Req.Message != "Send 500 to Ravi" {
		t.Errorf("resubmission message = %q, want the original utterance", second.Req.Message)
	}
	if !second.HadPassword || second.Password != "secret" {
		t.Errorf("resubmission credential = %+v, want \"secret\"", second)
	}

	// success=true schedules auto-close.
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.State == dialog.StateClosed })
}

func TestPasswordChallengeCancel(t *testing.T) {
	f := newFixture(t, assistantmock.Outcome{
		Resp: assistant.Response{Reply: "Please confirm with your password", RequirePassword: true},
	})
	f.d.Open()
	f.d.QuickPhrase(context.Background(), "Send 500 to Ravi")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.State == dialog.StateAwaitingPassword })

	f.d.CancelPassword()
	s := f.d.Snapshot()
	if s.State != dialog.StateIdle {
		t.Errorf("state after cancel = %v, want idle", s.State)
	}
	if s.Display != "Transaction cancelled." {
		t.Errorf("display = %q", s.Display)
	}
	time.Sleep(10 * time.Millisecond)
	if got := f.client.CallCount(); got != 1 {
		t.Errorf("cancel sent a request: %d calls, want 1", got)
	}
}

func TestEmptyPasswordIgnored(t *testing.T) {
	f := newFixture(t, assistantmock.Outcome{
		Resp: assistant.Response{Reply: "Please confirm with your password", RequirePassword: true},
	})
	f.d.Open()
	f.d.QuickPhrase(context.Background(), "Send 500 to Ravi")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.State == dialog.StateAwaitingPassword })

	f.d.SubmitPassword(context.Background(), "")
	time.Sleep(10 * time.Millisecond)
	if got := f.client.CallCount(); got != 1 {
		t.Errorf("empty password issued a request: %d calls", got)
	}
	if s := f.d.Snapshot(); s.State != dialog.StateAwaitingPassword {
		t.Errorf("state = %v, challenge should survive an empty submit", s.State)
	}
}

func TestAutoClosePolicy(t *testing.T) {
	tests := []struct {
		name      string
		resp      assistant.Response
		wantClose bool
	}{
		{"success flag", assistant.Response{Reply: "Done", Success: true}, true},
		{"navigation to transfer", assistant.Response{Reply: "Opening transfers", Page: "transfer"}, true},
		{"navigation to statements", assistant.Response{Reply: "Here you go", Page: "statements"}, false},
		{"plain reply", assistant.Response{Reply: "Your balance is ₹75,420"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, assistantmock.Outcome{Resp: tt.resp})
			f.d.Open()
			f.d.QuickPhrase(context.Background(), "do it")
			waitFor(t, f.d, func(s dialog.Snapshot) bool { return settled(s) && s.Display != dialog.DefaultGreeting })

			time.Sleep(3 * testAutoClose)
			closed := f.d.Snapshot().State == dialog.StateClosed
			if closed != tt.wantClose {
				t.Errorf("closed = %v, want %v", closed, tt.wantClose)
			}
			if tt.resp.Page != "" {
				if pages := f.navigated(); len(pages) != 1 || pages[0] != tt.resp.Page {
					t.Errorf("navigated = %v, want [%s]", pages, tt.resp.Page)
				}
			}
		})
	}
}

func TestErrorsNeverAutoClose(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantDisplay string
	}{
		{"network", assistant.ErrNetwork, "Connection error. Please try again."},
		{"protocol", &assistant.ProtocolError{Status: 502, Detail: "Wit.ai error"}, "Wit.ai error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, assistantmock.Outcome{Err: tt.err})
			f.d.Open()
			f.d.QuickPhrase(context.Background(), "Check my account balance")

			s := waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.State == dialog.StateError })
			if s.Display != tt.wantDisplay {
				t.Errorf("display = %q, want %q", s.Display, tt.wantDisplay)
			}
			if len(f.navigated()) != 0 {
				t.Errorf("error response navigated: %v", f.navigated())
			}
			time.Sleep(3 * testAutoClose)
			if f.d.Snapshot().State == dialog.StateClosed {
				t.Error("dialog auto-closed after an error")
			}

			// The error state stays interactive: a retry goes straight through.
			f.d.QuickPhrase(context.Background(), "retry")
			waitFor(t, f.d, func(s dialog.Snapshot) bool { return f.client.CallCount() == 2 })
		})
	}
}

func TestSecondCaptureWhileListeningIsNoop(t *testing.T) {
	f := newFixture(t)
	f.rec.Block = make(chan struct{})
	f.rec.Results = []capturemock.Outcome{{Result: capture.Result{Text: "Check my account balance"}}}
	f.d.Open()

	f.d.StartCapture(context.Background())
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.State == dialog.StateListening })

	f.d.StartCapture(context.Background())
	time.Sleep(10 * time.Millisecond)
	if got := f.rec.CallCount(); got != 1 {
		t.Errorf("recognizer invoked %d times, want 1", got)
	}
	if s := f.d.Snapshot(); s.State != dialog.StateListening {
		t.Errorf("state = %v, want listening", s.State)
	}

	close(f.rec.Block)
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return settled(s) })
	if got := f.client.CallCount(); got != 1 {
		t.Errorf("capture produced %d requests, want 1", got)
	}
	if f.client.LastCall().Req.Message != "Check my account balance" {
		t.Errorf("request message = %q", f.client.LastCall().Req.Message)
	}
}

func TestCaptureNoSpeechApology(t *testing.T) {
	f := newFixture(t)
	f.rec.Results = []capturemock.Outcome{{Err: capture.ErrNoSpeech}}
	f.d.Open()
	f.d.StartCapture(context.Background())

	s := waitFor(t, f.d, func(s dialog.Snapshot) bool {
		return s.State == dialog.StateIdle && s.Display != dialog.DefaultGreeting
	})
	if s.Display != "Sorry, I didn't catch that. Please try again." {
		t.Errorf("display = %q", s.Display)
	}
	if f.client.CallCount() != 0 {
		t.Error("no-result capture should not reach the assistant")
	}
}

func TestCaptureUnavailableFallsBackSilently(t *testing.T) {
	f := newFixture(t, assistantmock.Outcome{Resp: assistant.Response{Reply: "ok"}})
	f.rec.Results = []capturemock.Outcome{{Err: capture.ErrUnavailable}}
	f.d.Open()
	f.d.StartCapture(context.Background())

	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.State == dialog.StateIdle && s.Display != dialog.DefaultGreeting })
	// Quick phrases still work as the text-only fallback.
	f.d.QuickPhrase(context.Background(), "Check my account balance")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.Display == "ok" })
}

func TestStaleResponseDiscardedAfterReopen(t *testing.T) {
	f := newFixture(t, assistantmock.Outcome{
		Resp: assistant.Response{Reply: "Old session reply", Success: true},
	})
	f.client.Block = make(chan struct{})
	f.d.Open()
	f.d.QuickPhrase(context.Background(), "Send 500 to Ravi")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.Busy })

	// Close and reopen while the request is still in flight.
	f.d.Close()
	f.d.Open()
	close(f.client.Block)

	time.Sleep(20 * time.Millisecond)
	s := f.d.Snapshot()
	if s.Display != dialog.DefaultGreeting {
		t.Errorf("stale response leaked into fresh session: display %q", s.Display)
	}
	time.Sleep(3 * testAutoClose)
	if f.d.Snapshot().State == dialog.StateClosed {
		t.Error("stale success response scheduled an auto-close on the fresh session")
	}
}

func TestCloseCancelsAutoClose(t *testing.T) {
	f := newFixture(t, assistantmock.Outcome{
		Resp: assistant.Response{Reply: "Done", Success: true},
	})
	f.d.Open()
	f.d.QuickPhrase(context.Background(), "do it")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return settled(s) && s.Display == "Done" })

	// Reopen before the timer fires; the stale timer must not close the
	// fresh session.
	f.d.Close()
	f.d.Open()
	time.Sleep(3 * testAutoClose)
	if s := f.d.Snapshot(); s.State != dialog.StateIdle {
		t.Errorf("stale auto-close fired: state %v", s.State)
	}
}

func TestRepliesAreSpoken(t *testing.T) {
	f := newFixture(t, assistantmock.Outcome{
		Resp: assistant.Response{Reply: "Your balance is ₹75,420"},
	})
	f.d.Open()
	f.d.QuickPhrase(context.Background(), "Check my account balance")
	waitFor(t, f.d, func(s dialog.Snapshot) bool { return s.Display == "Your balance is ₹75,420" })

	waitFor(t, f.d, func(dialog.Snapshot) bool { return len(f.syn.Spoken()) == 1 })
	if spoken := f.syn.Spoken(); spoken[0] != "Your balance is ₹75,420" {
		t.Errorf("spoken = %v", spoken)
	}
}

func TestLatencyHistogramsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	client := &assistantmock.Querier{Outcomes: []assistantmock.Outcome{
		{Resp: assistant.Response{Reply: "ok"}},
	}}
	rec := &capturemock.Recognizer{Results: []capturemock.Outcome{
		{Result: capture.Result{Text: "Check my account balance"}},
	}}
	d := dialog.New(client, rec, &playbackmock.Synthesizer{},
		dialog.Config{UserID: 1, AutoCloseDelay: time.Hour},
		dialog.WithMetrics(m),
	)
	d.Open()
	d.StartCapture(context.Background())
	waitFor(t, d, func(s dialog.Snapshot) bool { return settled(s) && s.Display == "ok" })

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, name := range []string{"vaani.capture.duration", "vaani.assistant.duration"} {
		if got := histogramCount(t, rm, name); got != 1 {
			t.Errorf("%s count = %d, want 1", name, got)
		}
	}
}

// histogramCount sums the observation counts of the named float64 histogram.
func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			h, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			var n uint64
			for _, dp := range h.DataPoints {
				n += dp.Count
			}
			return n
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

func TestEventsIgnoredWhileClosed(t *testing.T) {
	f := newFixture(t)
	f.d.StartCapture(context.Background())
	f.d.QuickPhrase(context.Background(), "hello")
	f.d.SubmitPassword(context.Background(), "secret")
	f.d.CancelPassword()
	f.d.Close()

	time.Sleep(10 * time.Millisecond)
	if f.client.CallCount() != 0 || f.rec.CallCount() != 0 {
		t.Error("closed dialog processed events")
	}
	if s := f.d.Snapshot(); s.State != dialog.StateClosed {
		t.Errorf("state = %v, want closed", s.State)
	}
}
