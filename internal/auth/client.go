package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

// Client validates bearer tokens against the external auth service.
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

// ValidateToken returns the authenticated user id, or ErrUnauthorized with a
// service-provided message when validation fails.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/validate-token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: validate token: %v", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out domain.TokenValidation
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: invalid auth response: %v", ErrUnauthorized, err)
	}
	if !out.Success || out.User == nil || out.User.ID == "" {
		msg := out.Message
		if msg == "" {
			msg = "Invalid token"
		}
		return "", fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}
	return out.User.ID, nil
}

// TokenFromRequest extracts the bearer token from the Authorization header,
// falling back to the token query parameter when allowQuery is set (the
// streaming endpoint cannot always send headers).
func TokenFromRequest(r *http.Request, allowQuery bool) (string, bool) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token, true
		}
	}
	if allowQuery {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, true
		}
	}
	return "", false
}
