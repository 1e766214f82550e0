package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Shreyas21A/ConfidenceVoice/internal/auth"
	"github.com/Shreyas21A/ConfidenceVoice/internal/config"
	"github.com/Shreyas21A/ConfidenceVoice/internal/db"
	"github.com/Shreyas21A/ConfidenceVoice/internal/device"
	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
	"github.com/Shreyas21A/ConfidenceVoice/internal/events"
	"github.com/Shreyas21A/ConfidenceVoice/internal/session"
	"github.com/Shreyas21A/ConfidenceVoice/internal/speech"
	"github.com/Shreyas21A/ConfidenceVoice/internal/verbal"
	"github.com/Shreyas21A/ConfidenceVoice/internal/vision"
)

// resultStore is the subset of db.Store the handlers need.
type resultStore interface {
	InsertEmotionResult(ctx context.Context, userID, sessionID string, result domain.ConfidenceResult) error
	ListEmotionResults(ctx context.Context, userID string, limit int) ([]domain.StoredResult, error)
}

type server struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	sess     *session.Session
	authc    *auth.Client
	store    resultStore
	devices  *device.Client
	pipeline *vision.Pipeline
	speech   *speech.Loop
	events   *events.Publisher
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("connect db failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate db failed", "error", err)
		os.Exit(1)
	}

	publisher := events.NewPublisher(events.PublisherConfig{
		BrokerURL:   cfg.MQTTBrokerURL,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
	}, logger)
	if err := publisher.Start(ctx); err != nil {
		logger.Error("start mqtt publisher failed", "error", err)
		os.Exit(1)
	}
	if publisher.Enabled() {
		logger.Info("mqtt events enabled", "broker", cfg.MQTTBrokerURL, "prefix", cfg.MQTTTopicPrefix)
	}

	visionClient := vision.NewClient(cfg.VisionBaseURL, 3*time.Second)
	s := &server{
		cfg:      cfg,
		logger:   logger,
		sess:     session.New(),
		authc:    auth.NewClient(cfg.AuthBaseURL, 5*time.Second),
		store:    store,
		devices:  device.NewClient(cfg.CaptureBaseURL, 5*time.Second),
		pipeline: vision.NewPipeline(visionClient, visionClient, logger),
		speech: speech.NewLoop(speech.LoopConfig{
			ListenTimeout:   cfg.ListenTimeout,
			PhraseLimit:     cfg.PhraseLimit,
			CalibrateWindow: cfg.CalibrateWindow,
			IdleDelay:       cfg.IdleDelay,
		}, speech.NewTranscriber(cfg.STTBaseURL, 10*time.Second), verbal.NewAnalyzer(), publisher, logger),
		events: publisher,
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("confidence server started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	s.sess.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/video_feed", s.handleVideoFeed)
	r.Get("/results", s.handleResults)
	r.Post("/stop", s.handleStop)
	r.Get("/status", s.handleStatus)
	r.Get("/reports", s.handleReports)
	return r
}

// authorize validates the bearer token (or, for the stream, the token query
// parameter) and writes the 401 response itself on failure.
func (s *server) authorize(w http.ResponseWriter, r *http.Request, allowQuery bool) (string, bool) {
	token, ok := auth.TokenFromRequest(r, allowQuery)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
		return "", false
	}

	userID, err := s.authc.ValidateToken(r.Context(), token)
	if err != nil {
		s.logger.Warn("token validation failed", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": unauthorizedMessage(err)})
		return "", false
	}
	return userID, true
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, false); !ok {
		return
	}

	sessionID, runCtx := s.sess.Start(s.cfg.AnalysisDuration)
	s.logger.Info("analysis started", "session_id", sessionID, "duration", s.cfg.AnalysisDuration)

	go s.sess.RunTimer(runCtx, s.cfg.TimerPoll)
	go s.runSpeechLoop(runCtx)
	go func() {
		<-runCtx.Done()
		s.events.PublishStatus(sessionID, "stopped", 0)
	}()
	s.events.PublishStatus(sessionID, "started", s.cfg.AnalysisDuration.Seconds())

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Analysis started",
		"duration": int(s.cfg.AnalysisDuration.Seconds()),
	})
}

func (s *server) runSpeechLoop(runCtx context.Context) {
	mic, err := s.openMicrophone(runCtx)
	if err != nil {
		if runCtx.Err() == nil {
			s.logger.Error("open microphone failed", "error", err)
		}
		return
	}
	s.speech.Run(runCtx, s.sess, mic)
}

// openMicrophone retries the exclusive lease for a short window. A restart
// can reach the gateway before the previous loop's release lands, in which
// case the first opens are refused with a conflict.
func (s *server) openMicrophone(runCtx context.Context) (*device.Microphone, error) {
	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		if attempt > 0 {
			select {
			case <-runCtx.Done():
				return nil, runCtx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
		mic, err := s.devices.OpenMicrophone(runCtx)
		if err == nil {
			return mic, nil
		}
		lastErr = err
		s.logger.Warn("open microphone attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (s *server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, true); !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.WriteHeader(http.StatusOK)

	if !s.sess.IsRunning() {
		return
	}

	// The stream belongs to the run it joined. Ending that run (stop, expiry
	// or a restart) must end the stream rather than let it feed frames into
	// the next run, so the pipeline context follows both the request and the
	// run context.
	streamCtx, cancelStream := context.WithCancel(r.Context())
	defer cancelStream()
	stopWatch := context.AfterFunc(s.sess.RunContext(), cancelStream)
	defer stopWatch()

	cam, err := s.devices.OpenCamera(streamCtx)
	if err != nil {
		s.logger.Error("open camera failed", "error", err)
		return
	}

	emit := func(frame []byte) error {
		if _, err := io.WriteString(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	s.pipeline.Run(streamCtx, s.sess, cam, emit)
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorize(w, r, false)
	if !ok {
		return
	}

	if s.sess.IsRunning() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Analysis still running"})
		return
	}

	snap := s.sess.Snapshot()
	result := session.Aggregate(snap)
	s.persist(r.Context(), userID, snap.ID, result)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorize(w, r, false)
	if !ok {
		return
	}

	if !s.sess.IsRunning() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "No analysis running"})
		return
	}

	s.sess.Stop()

	snap := s.sess.Snapshot()
	result := session.Aggregate(snap)
	if result.TranscribedSpeech == session.NoSpeechPlaceholder {
		result.TranscribedSpeech = session.PartialSpeechPlaceholder
	}
	s.persist(r.Context(), userID, snap.ID, result)
	s.logger.Info("analysis stopped", "session_id", snap.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, false); !ok {
		return
	}

	snap := s.sess.Snapshot()
	visual := 0.0
	if snap.TotalFrames > 0 {
		visual = float64(snap.ConfidentFrames) / float64(snap.TotalFrames) * 100
	}
	recent := session.Tail(snap.Transcript, 100)
	feedback := snap.Feedback
	if len(feedback) > 5 {
		feedback = feedback[len(feedback)-5:]
	}
	if len(feedback) == 0 {
		feedback = []string{"No feedback yet"}
	}
	fillers := "None"
	if len(snap.FillerWords) > 0 {
		fillers = strings.Join(snap.FillerWords, ", ")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"running":           snap.Status == domain.StatusRunning,
		"frames_analyzed":   snap.TotalFrames,
		"visual_confidence": math.Round(visual*100) / 100,
		"speech_length":     len(verbal.Tokenize(snap.Transcript)),
		"recent_speech":     recent,
		"speech_feedback":   feedback,
		"filler_words":      fillers,
		"time_remaining":    math.Round(s.sess.TimeRemaining()*10) / 10,
	})
}

func (s *server) handleReports(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorize(w, r, false)
	if !ok {
		return
	}

	reports, err := s.store.ListEmotionResults(r.Context(), userID, s.cfg.ReportsLimit)
	if err != nil {
		s.logger.Error("fetch reports failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Failed to fetch reports"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reports": reports})
}

// persist stores the finished result; failures are logged and never change
// the HTTP response.
func (s *server) persist(ctx context.Context, userID, sessionID string, result domain.ConfidenceResult) {
	if err := s.store.InsertEmotionResult(ctx, userID, sessionID, result); err != nil {
		s.logger.Error("store analysis results failed", "session_id", sessionID, "error", err)
	}
}

func unauthorizedMessage(err error) string {
	if msg, ok := strings.CutPrefix(err.Error(), auth.ErrUnauthorized.Error()+": "); ok && msg != "" {
		return msg
	}
	return "Invalid token"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
