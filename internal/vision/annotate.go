package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
)

// annotatedFace pairs a detected region with its classification for drawing.
type annotatedFace struct {
	Region domain.FaceRegion
	Result domain.FrameClassification
}

// annotate draws per-face bounding boxes and labels, the trailing transcript
// excerpt, and the remaining time onto the frame, and re-encodes it as JPEG.
func annotate(frame image.Image, faces []annotatedFace, transcriptTail string, timeLeft float64) ([]byte, error) {
	dc := gg.NewContextForImage(frame)
	dc.SetFontFace(basicfont.Face7x13)

	for _, f := range faces {
		if f.Result.Label == domain.LabelConfident {
			dc.SetRGB255(0, 255, 0)
		} else {
			dc.SetRGB255(255, 0, 0)
		}
		dc.DrawRectangle(float64(f.Region.X), float64(f.Region.Y), float64(f.Region.W), float64(f.Region.H))
		dc.SetLineWidth(2)
		dc.Stroke()
		dc.DrawString(fmt.Sprintf("%s: %.2f", f.Result.Label, f.Result.Score), float64(f.Region.X), float64(f.Region.Y-10))
	}

	dc.SetRGB255(255, 255, 255)
	dc.DrawString("Speech: "+transcriptTail, 10, 30)
	dc.SetRGB255(255, 255, 0)
	dc.DrawString(fmt.Sprintf("Time left: %.1fs", timeLeft), 10, float64(dc.Height()-10))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cropFace copies the region of interest out of the frame, clamped to the
// frame bounds, and encodes it for the classifier.
func cropFace(frame image.Image, region domain.FaceRegion) ([]byte, error) {
	r := image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H).Intersect(frame.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("face region %+v outside frame bounds %v", region, frame.Bounds())
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), frame, r.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
