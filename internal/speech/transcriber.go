package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotUnderstood means the service received audio but could not
	// recognize any speech in it.
	ErrNotUnderstood = errors.New("speech not understood")
	// ErrServiceUnavailable means the transcription service could not be
	// reached or refused the request.
	ErrServiceUnavailable = errors.New("transcription service unavailable")
)

// Transcriber sends captured utterances to the external speech-to-text
// service as multipart WAV uploads.
type Transcriber struct {
	baseURL string
	http    *http.Client
}

func NewTranscriber(baseURL string, timeout time.Duration) *Transcriber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Transcriber{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (t *Transcriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("file", "segment.wav")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(wav); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/transcribe", &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return "", ErrNotUnderstood
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status=%d body=%s", ErrServiceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("transcribe status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out transcribeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("transcribe decode: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", ErrNotUnderstood
	}
	return out.Text, nil
}
