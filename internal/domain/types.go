package domain

import "time"

type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"
	StatusRunning SessionStatus = "running"
	StatusStopped SessionStatus = "stopped"
)

type FrameLabel string

const (
	LabelConfident    FrameLabel = "Confident"
	LabelNotConfident FrameLabel = "Not Confident"
)

// FrameClassification is the per-face outcome of one classifier call. It is
// folded into the session counters and never stored individually.
type FrameClassification struct {
	Label FrameLabel
	Score float64
}

// FaceRegion is one rectangular detection returned by the face detector,
// in pixel coordinates of the source frame.
type FaceRegion struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// EmotionScores is the probability vector returned by the emotion classifier.
type EmotionScores struct {
	Happy     float64 `json:"happy"`
	Surprised float64 `json:"surprised"`
	Neutral   float64 `json:"neutral"`
	Sad       float64 `json:"sad"`
	Angry     float64 `json:"angry"`
	Fearful   float64 `json:"fearful"`
	Disgusted float64 `json:"disgusted"`
}

// SessionSnapshot is a consistent copy of the session record taken under its
// lock. Readers never see the live mutable fields.
type SessionSnapshot struct {
	ID                 string
	Status             SessionStatus
	StartedAt          time.Time
	DurationLimit      time.Duration
	TotalFrames        int
	ConfidentFrames    int
	NotConfidentFrames int
	Transcript         string
	Feedback           []string
	ConfidentMarkers   int
	UnconfidentMarkers int
	FillerWords        []string
}

type FacialAnalysis struct {
	TotalFrames        int `json:"total_frames"`
	ConfidentFrames    int `json:"confident_frames"`
	NotConfidentFrames int `json:"not_confident_frames"`
}

type VerbalAnalysis struct {
	ConfidentWords   int `json:"confident_words"`
	UnconfidentWords int `json:"unconfident_words"`
}

// ConfidenceResult is the terminal read of a stopped session.
type ConfidenceResult struct {
	ConfidentPercentage float64        `json:"confident_percentage"`
	VisualConfidence    float64        `json:"visual_confidence"`
	VerbalConfidence    float64        `json:"verbal_confidence"`
	OverallConfidence   float64        `json:"overall_confidence"`
	TranscribedSpeech   string         `json:"transcribed_speech"`
	SpeechFeedback      []string       `json:"speech_feedback"`
	FillerWords         string         `json:"filler_words"`
	FacialAnalysis      FacialAnalysis `json:"facial_analysis"`
	VerbalAnalysis      VerbalAnalysis `json:"verbal_analysis"`
}

// StoredResult is one persisted emotion_results row.
type StoredResult struct {
	ID                  int64     `json:"id"`
	UserID              string    `json:"user_id"`
	SessionID           string    `json:"session_id"`
	ConfidentPercentage float64   `json:"confident_percentage"`
	VisualConfidence    float64   `json:"visual_confidence"`
	VerbalConfidence    float64   `json:"verbal_confidence"`
	OverallConfidence   float64   `json:"overall_confidence"`
	TranscribedSpeech   string    `json:"transcribed_speech"`
	FillerWords         string    `json:"filler_words"`
	Timestamp           time.Time `json:"timestamp"`
}

// Auth service payloads.

type TokenValidation struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	User    *TokenUser `json:"user,omitempty"`
}

type TokenUser struct {
	ID string `json:"id"`
}

// MQTT payloads

type SessionStatusEvent struct {
	SessionID     string  `json:"session_id"`
	Status        string  `json:"status"`
	TimeRemaining float64 `json:"time_remaining,omitempty"`
}

type SessionFeedbackEvent struct {
	SessionID string   `json:"session_id"`
	Lines     []string `json:"lines"`
}
