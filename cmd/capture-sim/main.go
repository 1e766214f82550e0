// capture-sim is a local stand-in for the capture-device gateway: it leases a
// fake camera that produces synthetic JPEG frames and a fake microphone that
// returns short silent WAV clips. Useful for running the confidence server
// without hardware.
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image/jpeg"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fogleman/gg"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/image/font/basicfont"
)

const (
	frameWidth  = 640
	frameHeight = 480
)

type gateway struct {
	logger *slog.Logger

	mu     sync.Mutex
	leases map[string]string // device_id -> kind
	frames int
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	addr := getenvDefault("CAPTURE_SIM_HTTP_ADDR", ":9020")

	g := &gateway{logger: logger, leases: map[string]string{}}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Post("/v1/camera/open", g.handleOpen("camera"))
	r.Get("/v1/camera/{deviceID}/frame", g.handleFrame)
	r.Delete("/v1/camera/{deviceID}", g.handleRelease("camera"))
	r.Post("/v1/microphone/open", g.handleOpen("microphone"))
	r.Post("/v1/microphone/{deviceID}/calibrate", g.handleCalibrate)
	r.Post("/v1/microphone/{deviceID}/listen", g.handleListen)
	r.Delete("/v1/microphone/{deviceID}", g.handleRelease("microphone"))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("capture simulator started", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

// handleOpen grants an exclusive lease per device kind.
func (g *gateway) handleOpen(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()

		for _, k := range g.leases {
			if k == kind {
				writeJSON(w, http.StatusConflict, map[string]any{"error": kind + " already leased"})
				return
			}
		}

		deviceID := uuid.NewString()
		g.leases[deviceID] = kind
		g.logger.Info("device leased", "kind", kind, "device_id", deviceID)
		writeJSON(w, http.StatusOK, map[string]any{"device_id": deviceID})
	}
}

func (g *gateway) handleRelease(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := chi.URLParam(r, "deviceID")

		g.mu.Lock()
		defer g.mu.Unlock()

		if g.leases[deviceID] != kind {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown device"})
			return
		}
		delete(g.leases, deviceID)
		g.logger.Info("device released", "kind", kind, "device_id", deviceID)
		writeJSON(w, http.StatusOK, map[string]any{"released": true})
	}
}

func (g *gateway) handleFrame(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	g.mu.Lock()
	if g.leases[deviceID] != "camera" {
		g.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown device"})
		return
	}
	g.frames++
	n := g.frames
	g.mu.Unlock()

	frame, err := renderFrame(n)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(frame)
}

func (g *gateway) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	if !g.holdsLease(deviceID, "microphone") {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown device"})
		return
	}

	var in struct {
		DurationMS int64 `json:"duration_ms"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	sleepWithin(r.Context(), time.Duration(in.DurationMS)*time.Millisecond)
	writeJSON(w, http.StatusOK, map[string]any{"calibrated": true})
}

// handleListen waits briefly, as a real listen call would, then returns one
// second of silence.
func (g *gateway) handleListen(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	if !g.holdsLease(deviceID, "microphone") {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown device"})
		return
	}

	var in struct {
		TimeoutMS     int64 `json:"timeout_ms"`
		PhraseLimitMS int64 `json:"phrase_limit_ms"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	wait := time.Duration(in.TimeoutMS) * time.Millisecond
	if wait <= 0 || wait > time.Second {
		wait = time.Second
	}
	sleepWithin(r.Context(), wait)

	w.Header().Set("Content-Type", "audio/wav")
	_, _ = w.Write(silentWAV(time.Second))
}

func (g *gateway) holdsLease(deviceID, kind string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leases[deviceID] == kind
}

// renderFrame draws a synthetic scene with a moving square that a detector
// stub can be pointed at.
func renderFrame(n int) ([]byte, error) {
	dc := gg.NewContext(frameWidth, frameHeight)
	dc.SetRGB255(40, 40, 40)
	dc.Clear()

	x := float64((n * 7) % (frameWidth - 120))
	dc.SetRGB255(200, 180, 150)
	dc.DrawRectangle(x, 140, 120, 160)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB255(255, 255, 255)
	dc.DrawString("frame "+strconv.Itoa(n), 10, 20)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// silentWAV builds a 16 kHz mono PCM16 clip of zeros.
func silentWAV(d time.Duration) []byte {
	const sampleRate = 16000
	samples := int(d.Seconds() * sampleRate)
	dataLen := samples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

func sleepWithin(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
