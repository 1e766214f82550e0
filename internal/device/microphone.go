package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Microphone is an exclusive lease on the audio capture device. Listen blocks
// on the gateway for up to the listen timeout plus the phrase limit, so it
// runs on an unbounded HTTP client and is limited per call via context.
type Microphone struct {
	c        *Client
	long     *http.Client
	deviceID string
}

type listenRequest struct {
	TimeoutMS     int64 `json:"timeout_ms"`
	PhraseLimitMS int64 `json:"phrase_limit_ms"`
}

type calibrateRequest struct {
	DurationMS int64 `json:"duration_ms"`
}

func (c *Client) OpenMicrophone(ctx context.Context) (*Microphone, error) {
	deviceID, err := c.open(ctx, "/v1/microphone/open")
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	return &Microphone{c: c, long: &http.Client{}, deviceID: deviceID}, nil
}

// Calibrate samples ambient noise for the given duration so the gateway can
// set its energy threshold.
func (m *Microphone) Calibrate(ctx context.Context, duration time.Duration) error {
	body, _ := json.Marshal(calibrateRequest{DurationMS: duration.Milliseconds()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.c.baseURL+"/v1/microphone/"+m.deviceID+"/calibrate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calibrate status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Listen blocks until one utterance is captured and returns it as WAV bytes.
// The gateway bounds the wait with the listen timeout (time to start
// speaking) and the phrase limit (maximum utterance length).
func (m *Microphone) Listen(ctx context.Context, listenTimeout, phraseLimit time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, listenTimeout+phraseLimit+2*time.Second)
	defer cancel()

	body, _ := json.Marshal(listenRequest{
		TimeoutMS:     listenTimeout.Milliseconds(),
		PhraseLimitMS: phraseLimit.Milliseconds(),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.c.baseURL+"/v1/microphone/"+m.deviceID+"/listen", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.long.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("listen status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return io.ReadAll(resp.Body)
}

func (m *Microphone) Close() error {
	return m.c.release(context.Background(), "/v1/microphone/"+m.deviceID)
}
