package session

import (
	"math"
	"strings"
	"unicode"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
)

const (
	NoSpeechPlaceholder      = "No speech detected"
	PartialSpeechPlaceholder = "Partial speech detected"
	noFeedbackPlaceholder    = "No specific feedback available"
	noFillersPlaceholder     = "None"
)

// CleanTranscript collapses whitespace and capitalizes the first letter,
// lowercasing the rest. Applied per segment and again after each append.
func CleanTranscript(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	runes := []rune(strings.ToLower(text))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Aggregate computes the final confidence result from a frozen snapshot.
// Pure: calling it twice on the same snapshot yields identical results.
func Aggregate(snap domain.SessionSnapshot) domain.ConfidenceResult {
	visual := 0.0
	if snap.TotalFrames > 0 {
		visual = float64(snap.ConfidentFrames) / float64(snap.TotalFrames) * 100
	}

	markers := snap.ConfidentMarkers + snap.UnconfidentMarkers
	verbal := 50.0
	if markers > 0 {
		verbal = float64(snap.ConfidentMarkers) / float64(markers) * 100
	}

	// The neutral 50 default is presentation only. A signal that was never
	// produced does not participate in the overall blend or its fallback.
	var overall float64
	switch {
	case snap.TotalFrames > 0 && markers > 0:
		overall = visual*0.6 + verbal*0.4
	case snap.TotalFrames > 0:
		overall = visual
	case markers > 0:
		overall = verbal
	default:
		overall = 0
	}

	transcript := snap.Transcript
	if transcript == "" {
		transcript = NoSpeechPlaceholder
	}
	feedback := snap.Feedback
	if len(feedback) == 0 {
		feedback = []string{noFeedbackPlaceholder}
	}
	fillers := noFillersPlaceholder
	if len(snap.FillerWords) > 0 {
		fillers = strings.Join(snap.FillerWords, ", ")
	}

	return domain.ConfidenceResult{
		ConfidentPercentage: round2(overall),
		VisualConfidence:    round2(visual),
		VerbalConfidence:    round2(verbal),
		OverallConfidence:   round2(overall),
		TranscribedSpeech:   transcript,
		SpeechFeedback:      feedback,
		FillerWords:         fillers,
		FacialAnalysis: domain.FacialAnalysis{
			TotalFrames:        snap.TotalFrames,
			ConfidentFrames:    snap.ConfidentFrames,
			NotConfidentFrames: snap.NotConfidentFrames,
		},
		VerbalAnalysis: domain.VerbalAnalysis{
			ConfidentWords:   snap.ConfidentMarkers,
			UnconfidentWords: snap.UnconfidentMarkers,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
