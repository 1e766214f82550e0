package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Shreyas21A/ConfidenceVoice/internal/session"
	"github.com/Shreyas21A/ConfidenceVoice/internal/verbal"
)

// scriptedMic returns one canned capture per Listen call and cancels the run
// context once the script is exhausted.
type scriptedMic struct {
	captures   [][]byte
	errs       []error
	calls      int
	calibrated bool
	closed     bool
	cancel     context.CancelFunc
}

func (m *scriptedMic) Calibrate(ctx context.Context, duration time.Duration) error {
	m.calibrated = true
	return nil
}

func (m *scriptedMic) Listen(ctx context.Context, listenTimeout, phraseLimit time.Duration) ([]byte, error) {
	if m.calls >= len(m.captures) {
		m.cancel()
		return nil, ctx.Err()
	}
	i := m.calls
	m.calls++
	return m.captures[i], m.errs[i]
}

func (m *scriptedMic) Close() error {
	m.closed = true
	return nil
}

type scriptedTranscriber struct {
	texts []string
	errs  []error
	calls int
}

func (t *scriptedTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	i := t.calls
	if i >= len(t.texts) {
		i = len(t.texts) - 1
	}
	t.calls++
	return t.texts[i], t.errs[i]
}

type recordedFeedback struct {
	lines []string
}

func (r *recordedFeedback) PublishFeedback(sessionID string, lines []string) {
	r.lines = append(r.lines, lines...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runLoop(t *testing.T, mic *scriptedMic, tr SegmentTranscriber, events FeedbackPublisher) *session.Session {
	t.Helper()
	sess := session.New()
	_, ctx := sess.Start(time.Minute)
	runCtx, cancel := context.WithCancel(ctx)
	mic.cancel = cancel
	defer sess.Stop()

	loop := NewLoop(LoopConfig{IdleDelay: time.Millisecond}, tr, verbal.NewAnalyzer(), events, testLogger())

	done := make(chan struct{})
	go func() {
		loop.Run(runCtx, sess, mic)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit after context cancellation")
	}
	return sess
}

func TestLoopAccumulatesTranscript(t *testing.T) {
	mic := &scriptedMic{
		captures: [][]byte{[]byte("wav1"), []byte("wav2")},
		errs:     []error{nil, nil},
	}
	tr := &scriptedTranscriber{
		texts: []string{"hello   world", "HELLO WORLD"},
		errs:  []error{nil, nil},
	}

	sess := runLoop(t, mic, tr, nil)

	snap := sess.Snapshot()
	if snap.Transcript != "Hello world hello world" {
		t.Fatalf("transcript=%q, want %q", snap.Transcript, "Hello world hello world")
	}
	if !mic.calibrated {
		t.Fatal("microphone never calibrated")
	}
	if !mic.closed {
		t.Fatal("microphone not released after run")
	}
}

func TestLoopRecordsMarkersAndFillers(t *testing.T) {
	mic := &scriptedMic{
		captures: [][]byte{[]byte("wav")},
		errs:     []error{nil},
	}
	tr := &scriptedTranscriber{
		texts: []string{"um I am definitely sure"},
		errs:  []error{nil},
	}
	events := &recordedFeedback{}

	sess := runLoop(t, mic, tr, events)

	snap := sess.Snapshot()
	if snap.ConfidentMarkers == 0 {
		t.Fatalf("confident markers=%d, want >0", snap.ConfidentMarkers)
	}
	if snap.UnconfidentMarkers == 0 {
		t.Fatalf("unconfident markers=%d, want >0 (um)", snap.UnconfidentMarkers)
	}
	if len(snap.FillerWords) != 1 || snap.FillerWords[0] != "um" {
		t.Fatalf("fillers=%v, want [um]", snap.FillerWords)
	}
	if len(snap.Feedback) == 0 {
		t.Fatal("analyzer feedback not appended to session")
	}
	if len(events.lines) != len(snap.Feedback) {
		t.Fatalf("published %d lines, session has %d", len(events.lines), len(snap.Feedback))
	}
}

func TestLoopMapsTranscriberErrorsToFeedback(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"not understood", ErrNotUnderstood, feedbackNotUnderstood},
		{"service unavailable", ErrServiceUnavailable, feedbackServiceUnavailable},
		{"other failure", errors.New("boom"), feedbackCaptureError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mic := &scriptedMic{
				captures: [][]byte{[]byte("wav")},
				errs:     []error{nil},
			}
			tr := &scriptedTranscriber{texts: []string{""}, errs: []error{c.err}}

			sess := runLoop(t, mic, tr, nil)

			snap := sess.Snapshot()
			if len(snap.Feedback) != 1 || snap.Feedback[0] != c.want {
				t.Fatalf("feedback=%v, want [%q]", snap.Feedback, c.want)
			}
			if snap.Transcript != "" {
				t.Fatalf("transcript=%q, want empty", snap.Transcript)
			}
		})
	}
}

func TestLoopRecordsCaptureErrors(t *testing.T) {
	mic := &scriptedMic{
		captures: [][]byte{nil},
		errs:     []error{errors.New("device unplugged")},
	}
	tr := &scriptedTranscriber{texts: []string{""}, errs: []error{nil}}

	sess := runLoop(t, mic, tr, nil)

	snap := sess.Snapshot()
	if len(snap.Feedback) != 1 || snap.Feedback[0] != feedbackCaptureError {
		t.Fatalf("feedback=%v, want [%q]", snap.Feedback, feedbackCaptureError)
	}
	if !mic.closed {
		t.Fatal("microphone not released after run")
	}
}
