package session

import (
	"testing"
	"time"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
)

func TestStartResetsState(t *testing.T) {
	s := New()

	s.Start(time.Minute)
	s.AddFrame(domain.LabelConfident)
	s.AppendTranscript(CleanTranscript("hello"))
	s.AddMarkers(2, 1)
	s.AddFillers([]string{"um"})
	s.AppendFeedback("note")

	id2, _ := s.Start(time.Minute)

	snap := s.Snapshot()
	if snap.ID != id2 {
		t.Fatalf("snapshot id=%q, want %q", snap.ID, id2)
	}
	if snap.TotalFrames != 0 || snap.ConfidentFrames != 0 {
		t.Fatalf("frame counters survived restart: %+v", snap)
	}
	if snap.Transcript != "" || len(snap.Feedback) != 0 {
		t.Fatalf("transcript or feedback survived restart: %+v", snap)
	}
	if snap.ConfidentMarkers != 0 || snap.UnconfidentMarkers != 0 || len(snap.FillerWords) != 0 {
		t.Fatalf("verbal state survived restart: %+v", snap)
	}
}

func TestStartCancelsPreviousRun(t *testing.T) {
	s := New()
	_, ctx1 := s.Start(time.Minute)
	s.Start(time.Minute)

	select {
	case <-ctx1.Done():
	default:
		t.Fatal("previous run context not cancelled by restart")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New()
	_, ctx := s.Start(time.Minute)

	s.Stop()
	s.Stop()

	if s.IsRunning() {
		t.Fatal("session still running after stop")
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatal("run context not cancelled by stop")
	}
	if s.Snapshot().Status != domain.StatusStopped {
		t.Fatalf("status=%q, want stopped", s.Snapshot().Status)
	}
}

func TestFrameCounterInvariant(t *testing.T) {
	s := New()
	s.Start(time.Minute)

	s.AddFrame(domain.LabelConfident)
	s.AddFrame(domain.LabelConfident)
	s.AddFrame(domain.LabelNotConfident)
	s.AddUnclassifiedFrame()

	snap := s.Snapshot()
	if snap.TotalFrames != 4 {
		t.Fatalf("total frames=%d, want 4", snap.TotalFrames)
	}
	if snap.ConfidentFrames != 2 || snap.NotConfidentFrames != 1 {
		t.Fatalf("classified=(%d,%d), want (2,1)", snap.ConfidentFrames, snap.NotConfidentFrames)
	}
	if snap.ConfidentFrames+snap.NotConfidentFrames > snap.TotalFrames {
		t.Fatalf("classified frames exceed total: %+v", snap)
	}
}

func TestAppendTranscriptAccumulates(t *testing.T) {
	s := New()
	s.Start(time.Minute)

	s.AppendTranscript(CleanTranscript("hello   world"))
	s.AppendTranscript(CleanTranscript("HELLO WORLD"))

	if got := s.Snapshot().Transcript; got != "Hello world hello world" {
		t.Fatalf("transcript=%q, want %q", got, "Hello world hello world")
	}
}

func TestAddFillersDeduplicatesInOrder(t *testing.T) {
	s := New()
	s.Start(time.Minute)

	s.AddFillers([]string{"um", "like"})
	s.AddFillers([]string{"like", "so", "um"})

	got := s.Snapshot().FillerWords
	want := []string{"um", "like", "so"}
	if len(got) != len(want) {
		t.Fatalf("fillers=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fillers=%v, want %v", got, want)
		}
	}
}

func TestRunContextFollowsCurrentRun(t *testing.T) {
	s := New()

	select {
	case <-s.RunContext().Done():
	default:
		t.Fatal("idle session run context not cancelled")
	}

	s.Start(time.Minute)
	first := s.RunContext()
	select {
	case <-first.Done():
		t.Fatal("live run context already cancelled")
	default:
	}

	s.Start(time.Minute)
	select {
	case <-first.Done():
	default:
		t.Fatal("restart did not cancel the previous run context")
	}
	second := s.RunContext()
	select {
	case <-second.Done():
		t.Fatal("new run context cancelled by restart")
	default:
	}

	s.Stop()
	select {
	case <-second.Done():
	default:
		t.Fatal("stop did not cancel the run context")
	}
}

func TestTranscriptTail(t *testing.T) {
	s := New()
	s.Start(time.Minute)
	s.AppendTranscript(CleanTranscript("one two three"))

	if got := s.TranscriptTail(5); got != "three" {
		t.Fatalf("tail=%q, want %q", got, "three")
	}
	if got := s.TranscriptTail(100); got != "One two three" {
		t.Fatalf("tail=%q, want full transcript", got)
	}
}

func TestTailKeepsMultibyteRunesIntact(t *testing.T) {
	if got := Tail("héllo wörld", 5); got != "wörld" {
		t.Fatalf("tail=%q, want %q", got, "wörld")
	}
	if got := Tail("日本語のテキスト", 4); got != "テキスト" {
		t.Fatalf("tail=%q, want %q", got, "テキスト")
	}
	if got := Tail("short", 100); got != "short" {
		t.Fatalf("tail=%q, want input unchanged", got)
	}
}

func TestTimeRemaining(t *testing.T) {
	s := New()
	if got := s.TimeRemaining(); got != 0 {
		t.Fatalf("idle time remaining=%f, want 0", got)
	}

	s.Start(time.Minute)
	if got := s.TimeRemaining(); got <= 0 || got > 60 {
		t.Fatalf("time remaining=%f, want (0,60]", got)
	}

	s.Stop()
	if got := s.TimeRemaining(); got != 0 {
		t.Fatalf("stopped time remaining=%f, want 0", got)
	}
}

func TestRunTimerStopsExpiredSession(t *testing.T) {
	s := New()
	_, ctx := s.Start(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.RunTimer(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not stop the session")
	}
	if s.IsRunning() {
		t.Fatal("session still running after duration limit")
	}
}

func TestRunTimerExitsOnExplicitStop(t *testing.T) {
	s := New()
	_, ctx := s.Start(time.Hour)

	done := make(chan struct{})
	go func() {
		s.RunTimer(ctx, 5*time.Millisecond)
		close(done)
	}()

	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not exit after stop")
	}
}
