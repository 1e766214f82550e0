package speech

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Shreyas21A/ConfidenceVoice/internal/session"
	"github.com/Shreyas21A/ConfidenceVoice/internal/verbal"
)

const (
	feedbackNotUnderstood      = "Partial speech not understood"
	feedbackServiceUnavailable = "Speech recognition service unavailable"
	feedbackCaptureError       = "Error capturing speech"
)

// Microphone is the exclusive audio lease the loop owns for its lifetime.
type Microphone interface {
	Calibrate(ctx context.Context, duration time.Duration) error
	Listen(ctx context.Context, listenTimeout, phraseLimit time.Duration) ([]byte, error)
	Close() error
}

type SegmentTranscriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type FeedbackPublisher interface {
	PublishFeedback(sessionID string, lines []string)
}

type LoopConfig struct {
	ListenTimeout   time.Duration // max wait for speech to start
	PhraseLimit     time.Duration // max utterance length
	CalibrateWindow time.Duration
	IdleDelay       time.Duration
}

// Loop runs one speech capture cycle after another for the lifetime of a
// session. Every failure inside a cycle degrades to a feedback note; nothing
// in here may end the session.
type Loop struct {
	cfg         LoopConfig
	transcriber SegmentTranscriber
	analyzer    *verbal.Analyzer
	events      FeedbackPublisher
	logger      *slog.Logger
}

func NewLoop(cfg LoopConfig, transcriber SegmentTranscriber, analyzer *verbal.Analyzer, events FeedbackPublisher, logger *slog.Logger) *Loop {
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = 5 * time.Second
	}
	if cfg.PhraseLimit <= 0 {
		cfg.PhraseLimit = 15 * time.Second
	}
	if cfg.CalibrateWindow <= 0 {
		cfg.CalibrateWindow = time.Second
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 100 * time.Millisecond
	}
	return &Loop{
		cfg:         cfg,
		transcriber: transcriber,
		analyzer:    analyzer,
		events:      events,
		logger:      logger,
	}
}

// Run blocks until the session context is cancelled. mic ownership transfers
// to the loop; it is released on every exit path.
func (l *Loop) Run(ctx context.Context, sess *session.Session, mic Microphone) {
	defer func() {
		if err := mic.Close(); err != nil {
			l.logger.Warn("release microphone failed", "error", err)
		}
	}()

	if err := mic.Calibrate(ctx, l.cfg.CalibrateWindow); err != nil {
		l.logger.Warn("ambient noise calibration failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.cycle(ctx, sess, mic)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.IdleDelay):
		}
	}
}

func (l *Loop) cycle(ctx context.Context, sess *session.Session, mic Microphone) {
	wav, err := mic.Listen(ctx, l.cfg.ListenTimeout, l.cfg.PhraseLimit)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("audio capture failed", "error", err)
		l.appendFeedback(sess, feedbackCaptureError)
		return
	}

	text, err := l.transcriber.Transcribe(ctx, wav)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		switch {
		case errors.Is(err, ErrNotUnderstood):
			l.logger.Debug("speech not understood")
			l.appendFeedback(sess, feedbackNotUnderstood)
		case errors.Is(err, ErrServiceUnavailable):
			l.logger.Warn("transcription service unavailable", "error", err)
			l.appendFeedback(sess, feedbackServiceUnavailable)
		default:
			l.logger.Warn("transcription failed", "error", err)
			l.appendFeedback(sess, feedbackCaptureError)
		}
		return
	}

	l.logger.Info("speech recognized", "text", text)
	sess.AppendTranscript(session.CleanTranscript(text))

	res := l.analyzer.Analyze(text)
	sess.AddMarkers(res.ConfidentHits, res.UnconfidentHits)
	sess.AddFillers(res.Fillers)
	if len(res.Feedback) > 0 {
		l.appendFeedback(sess, res.Feedback...)
	}
}

func (l *Loop) appendFeedback(sess *session.Session, lines ...string) {
	sess.AppendFeedback(lines...)
	if l.events != nil {
		l.events.PublishFeedback(sess.ID(), lines)
	}
}
