package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/validate-token" {
			t.Fatalf("path=%q", r.URL.Path)
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch in["token"] {
		case "good":
			w.Write([]byte(`{"success":true,"user":{"id":"user-42"}}`))
		default:
			w.Write([]byte(`{"success":false,"message":"Token expired"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	userID, err := c.ValidateToken(context.Background(), "good")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("user id=%q, want user-42", userID)
	}

	_, err = c.ValidateToken(context.Background(), "expired")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v, want ErrUnauthorized", err)
	}
	if !strings.Contains(err.Error(), "Token expired") {
		t.Fatalf("err=%v, want service message preserved", err)
	}
}

func TestValidateTokenUnreachableService(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.ValidateToken(context.Background(), "any")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v, want ErrUnauthorized", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	withHeader := httptest.NewRequest(http.MethodGet, "/results", nil)
	withHeader.Header.Set("Authorization", "Bearer abc123")
	if token, ok := TokenFromRequest(withHeader, false); !ok || token != "abc123" {
		t.Fatalf("token=%q ok=%v, want abc123 from header", token, ok)
	}

	withQuery := httptest.NewRequest(http.MethodGet, "/video_feed?token=xyz", nil)
	if token, ok := TokenFromRequest(withQuery, true); !ok || token != "xyz" {
		t.Fatalf("token=%q ok=%v, want xyz from query", token, ok)
	}
	if _, ok := TokenFromRequest(withQuery, false); ok {
		t.Fatal("query token accepted without allowQuery")
	}

	bare := httptest.NewRequest(http.MethodGet, "/results", nil)
	if _, ok := TokenFromRequest(bare, true); ok {
		t.Fatal("token found on bare request")
	}
}
