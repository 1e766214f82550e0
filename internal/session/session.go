package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
)

// Session is the single shared record for one analysis run. All three drivers
// (video pipeline, speech loop, timer) mutate it only through these methods,
// each of which holds the lock for the whole mutation, so callers never
// observe torn counters or a half-appended transcript.
type Session struct {
	mu sync.Mutex

	id            string
	status        domain.SessionStatus
	startedAt     time.Time
	durationLimit time.Duration

	totalFrames        int
	confidentFrames    int
	notConfidentFrames int

	transcript         string
	feedback           []string
	confidentMarkers   int
	unconfidentMarkers int
	fillerSeen         map[string]struct{}
	fillerOrder        []string

	runCtx context.Context
	cancel context.CancelFunc
}

func New() *Session {
	// Idle sessions expose an already-cancelled run context so consumers
	// waiting on it never block on a run that does not exist.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return &Session{
		status:     domain.StatusIdle,
		fillerSeen: map[string]struct{}{},
		runCtx:     ctx,
	}
}

// Start resets all counters and collections and flips the session to running.
// A previous run still winding down is cancelled first. The returned context
// is cancelled when the session stops, whatever the reason.
func (s *Session) Start(durationLimit time.Duration) (string, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.runCtx = ctx
	s.cancel = cancel

	s.id = uuid.NewString()
	s.status = domain.StatusRunning
	s.startedAt = time.Now()
	s.durationLimit = durationLimit
	s.totalFrames = 0
	s.confidentFrames = 0
	s.notConfidentFrames = 0
	s.transcript = ""
	s.feedback = nil
	s.confidentMarkers = 0
	s.unconfidentMarkers = 0
	s.fillerSeen = map[string]struct{}{}
	s.fillerOrder = nil

	return s.id, ctx
}

// Stop flips the session to stopped and cancels the run context. Calling it
// again is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusRunning {
		return
	}
	s.status = domain.StatusStopped
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == domain.StatusRunning
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// RunContext returns the context of the current run. It is cancelled by Stop,
// by a restart, or already cancelled when no run has started yet, so stream
// consumers bound to one run always observe that run ending.
func (s *Session) RunContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}

// AddFrame records one classified face region.
func (s *Session) AddFrame(label domain.FrameLabel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalFrames++
	if label == domain.LabelConfident {
		s.confidentFrames++
	} else {
		s.notConfidentFrames++
	}
}

// AddUnclassifiedFrame records a frame in which no face was detected. It
// counts toward totalFrames but contributes no classification.
func (s *Session) AddUnclassifiedFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFrames++
}

// AppendTranscript concatenates a cleaned segment and re-cleans the whole
// transcript, so capitalization is applied once per append.
func (s *Session) AppendTranscript(segment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = CleanTranscript(s.transcript + " " + segment)
}

func (s *Session) AppendFeedback(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, lines...)
}

func (s *Session) AddMarkers(confident, unconfident int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confidentMarkers += confident
	s.unconfidentMarkers += unconfident
}

// AddFillers merges segment fillers into the session's distinct set,
// preserving first-seen order for stable rendering.
func (s *Session) AddFillers(fillers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fillers {
		if _, ok := s.fillerSeen[f]; ok {
			continue
		}
		s.fillerSeen[f] = struct{}{}
		s.fillerOrder = append(s.fillerOrder, f)
	}
}

// TimeRemaining reports seconds left in the analysis window, zero once
// stopped or expired.
func (s *Session) TimeRemaining() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusRunning {
		return 0
	}
	left := s.durationLimit - time.Since(s.startedAt)
	if left < 0 {
		return 0
	}
	return left.Seconds()
}

// TranscriptTail returns the trailing n runes of the transcript for overlay
// and status excerpts.
func (s *Session) TranscriptTail(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Tail(s.transcript, n)
}

// Tail returns the trailing n runes of text, never splitting a multi-byte
// character at the cut point.
func Tail(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}

// Snapshot copies the whole record under the lock.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SessionSnapshot{
		ID:                 s.id,
		Status:             s.status,
		StartedAt:          s.startedAt,
		DurationLimit:      s.durationLimit,
		TotalFrames:        s.totalFrames,
		ConfidentFrames:    s.confidentFrames,
		NotConfidentFrames: s.notConfidentFrames,
		Transcript:         s.transcript,
		Feedback:           append([]string(nil), s.feedback...),
		ConfidentMarkers:   s.confidentMarkers,
		UnconfidentMarkers: s.unconfidentMarkers,
		FillerWords:        append([]string(nil), s.fillerOrder...),
	}
}

// RunTimer polls elapsed time and stops the session once the duration limit
// is reached. It exits early if the run context is cancelled by an explicit
// stop.
func (s *Session) RunTimer(ctx context.Context, poll time.Duration) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			expired := s.status == domain.StatusRunning && time.Since(s.startedAt) >= s.durationLimit
			s.mu.Unlock()
			if expired {
				s.Stop()
				return
			}
		}
	}
}
