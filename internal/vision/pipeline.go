package vision

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
	"github.com/Shreyas21A/ConfidenceVoice/internal/session"
)

const transcriptOverlayTail = 50

// Camera is the exclusive frame source the pipeline owns for one stream.
type Camera interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

type FaceDetector interface {
	DetectFaces(ctx context.Context, frameJPEG []byte) ([]domain.FaceRegion, error)
}

type EmotionClassifier interface {
	ClassifyEmotion(ctx context.Context, faceJPEG []byte) (domain.EmotionScores, error)
}

// Classify labels one probability vector. Confident wins only on strict
// inequality; exact ties go to NotConfident.
func Classify(scores domain.EmotionScores) domain.FrameClassification {
	confident := scores.Happy + scores.Surprised + scores.Neutral
	notConfident := scores.Sad

	label := domain.LabelNotConfident
	if confident > notConfident {
		label = domain.LabelConfident
	}
	score := notConfident
	if confident > score {
		score = confident
	}
	return domain.FrameClassification{Label: label, Score: score}
}

// Pipeline classifies and annotates frames for one consumer-driven stream.
type Pipeline struct {
	detector   FaceDetector
	classifier EmotionClassifier
	logger     *slog.Logger
}

func NewPipeline(detector FaceDetector, classifier EmotionClassifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{detector: detector, classifier: classifier, logger: logger}
}

// Run pulls frames while the session is running and the consumer keeps
// accepting chunks. Ownership of cam transfers to Run; the device is
// released on every exit path. An emit error means the consumer went away
// and is not reported as a failure.
func (p *Pipeline) Run(ctx context.Context, sess *session.Session, cam Camera, emit func(frameJPEG []byte) error) {
	defer func() {
		p.logger.Info("releasing camera")
		if err := cam.Close(); err != nil {
			p.logger.Warn("release camera failed", "error", err)
		}
	}()

	for sess.IsRunning() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frameJPEG, err := cam.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("frame read failed", "error", err)
			}
			return
		}

		frame, err := jpeg.Decode(bytes.NewReader(frameJPEG))
		if err != nil {
			p.logger.Warn("frame decode failed", "error", err)
			continue
		}

		annotated := p.processFrame(ctx, sess, frame, frameJPEG)

		out, err := annotate(frame, annotated, sess.TranscriptTail(transcriptOverlayTail), sess.TimeRemaining())
		if err != nil {
			p.logger.Warn("frame encode failed", "error", err)
			continue
		}
		if err := emit(out); err != nil {
			return
		}
	}
}

// processFrame detects and classifies faces, updating the session counters.
// Detector or classifier failures degrade the frame, never the session.
func (p *Pipeline) processFrame(ctx context.Context, sess *session.Session, frame image.Image, frameJPEG []byte) []annotatedFace {
	faces, err := p.detector.DetectFaces(ctx, frameJPEG)
	if err != nil {
		p.logger.Warn("face detection failed", "error", err)
		sess.AddUnclassifiedFrame()
		return nil
	}
	if len(faces) == 0 {
		sess.AddUnclassifiedFrame()
		return nil
	}

	out := make([]annotatedFace, 0, len(faces))
	for _, region := range faces {
		result := p.classifyRegion(ctx, frame, region)
		sess.AddFrame(result.Label)
		out = append(out, annotatedFace{Region: region, Result: result})
	}
	return out
}

func (p *Pipeline) classifyRegion(ctx context.Context, frame image.Image, region domain.FaceRegion) domain.FrameClassification {
	crop, err := cropFace(frame, region)
	if err != nil {
		p.logger.Warn("face crop failed", "error", err)
		return domain.FrameClassification{Label: domain.LabelNotConfident, Score: 0}
	}
	scores, err := p.classifier.ClassifyEmotion(ctx, crop)
	if err != nil {
		p.logger.Warn("emotion classification failed", "error", err)
		return domain.FrameClassification{Label: domain.LabelNotConfident, Score: 0}
	}
	return Classify(scores)
}
