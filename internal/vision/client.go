package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
)

// Client talks to the external face-detection and emotion-classification
// service. Frames are posted as raw JPEG bodies; the classifiers themselves
// are opaque.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type detectResponse struct {
	Faces []domain.FaceRegion `json:"faces"`
}

func (c *Client) DetectFaces(ctx context.Context, frameJPEG []byte) ([]domain.FaceRegion, error) {
	body, err := c.post(ctx, "/v1/faces/detect", frameJPEG)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	var out detectResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("detect faces decode: %w", err)
	}
	return out.Faces, nil
}

func (c *Client) ClassifyEmotion(ctx context.Context, faceJPEG []byte) (domain.EmotionScores, error) {
	body, err := c.post(ctx, "/v1/emotion/classify", faceJPEG)
	if err != nil {
		return domain.EmotionScores{}, fmt.Errorf("classify emotion: %w", err)
	}
	var out domain.EmotionScores
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.EmotionScores{}, fmt.Errorf("classify emotion decode: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, jpeg []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jpeg))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
