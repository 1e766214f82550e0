package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the local capture-device gateway that owns the physical
// camera and microphone. Each Open* call takes an exclusive lease on the
// device; the returned handle must be closed on every exit path.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type openResponse struct {
	DeviceID string `json:"device_id"`
}

// Camera is an exclusive lease on the capture device. ReadFrame pulls one
// encoded JPEG frame.
type Camera struct {
	c        *Client
	deviceID string
}

func (c *Client) OpenCamera(ctx context.Context) (*Camera, error) {
	deviceID, err := c.open(ctx, "/v1/camera/open")
	if err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}
	return &Camera{c: c, deviceID: deviceID}, nil
}

func (cam *Camera) ReadFrame(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cam.c.baseURL+"/v1/camera/"+cam.deviceID+"/frame", nil)
	if err != nil {
		return nil, err
	}
	resp, err := cam.c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("camera frame status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

func (cam *Camera) Close() error {
	return cam.c.release(context.Background(), "/v1/camera/"+cam.deviceID)
}

func (c *Client) open(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out openResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.DeviceID == "" {
		return "", fmt.Errorf("gateway returned empty device_id")
	}
	return out.DeviceID, nil
}

// release is deliberately not bound to the caller's context: the lease must
// be returned even when the run context is already cancelled.
func (c *Client) release(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("release status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
