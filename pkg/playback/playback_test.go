package playback_test

import (
	"context"
	"testing"

	"github.com/vaanibank/vaani/pkg/playback"
	"github.com/vaanibank/vaani/pkg/playback/mock"
)

func TestInterrupter_MostRecentWins(t *testing.T) {
	syn := &mock.Synthesizer{}
	i := playback.NewInterrupter(syn)

	if err := i.Speak(context.Background(), "first reply"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if err := i.Speak(context.Background(), "second reply"); err != nil {
		t.Fatalf("speak: %v", err)
	}

	if len(syn.SpeakCalls) != 2 {
		t.Fatalf("expected 2 speak calls, got %d", len(syn.SpeakCalls))
	}
	first := syn.SpeakCalls[0]
	second := syn.SpeakCalls[1]
	if first.Ctx.Err() == nil {
		t.Error("first utterance context should be cancelled by the second Speak")
	}
	if second.Ctx.Err() != nil {
		t.Error("second utterance context should still be live")
	}
}

func TestInterrupter_BlankTextIsNoop(t *testing.T) {
	syn := &mock.Synthesizer{}
	i := playback.NewInterrupter(syn)

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := i.Speak(context.Background(), text); err != nil {
			t.Errorf("Speak(%q) returned error: %v", text, err)
		}
	}
	if len(syn.SpeakCalls) != 0 {
		t.Errorf("blank text should never reach the backend, got %d calls", len(syn.SpeakCalls))
	}
}

func TestInterrupter_BlankTextCancelsCurrent(t *testing.T) {
	syn := &mock.Synthesizer{}
	i := playback.NewInterrupter(syn)

	_ = i.Speak(context.Background(), "long announcement")
	_ = i.Speak(context.Background(), "")

	if len(syn.SpeakCalls) != 1 {
		t.Fatalf("expected 1 speak call, got %d", len(syn.SpeakCalls))
	}
	if syn.SpeakCalls[0].Ctx.Err() == nil {
		t.Error("blank Speak should cancel the in-flight utterance")
	}
}

func TestInterrupter_Stop(t *testing.T) {
	syn := &mock.Synthesizer{}
	i := playback.NewInterrupter(syn)

	_ = i.Speak(context.Background(), "reply")
	i.Stop()

	if syn.SpeakCalls[0].Ctx.Err() == nil {
		t.Error("Stop should cancel the in-flight utterance")
	}
	// Stop with nothing in flight must not panic.
	i.Stop()
}

func TestNoop(t *testing.T) {
	if err := playback.Noop.Speak(context.Background(), "anything"); err != nil {
		t.Errorf("noop synthesizer returned error: %v", err)
	}
}
