package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	HTTPAddr       string
	AuthBaseURL    string
	DBDSN          string
	CaptureBaseURL string
	VisionBaseURL  string
	STTBaseURL     string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	AnalysisDuration time.Duration
	ListenTimeout    time.Duration
	PhraseLimit      time.Duration
	CalibrateWindow  time.Duration
	IdleDelay        time.Duration
	TimerPoll        time.Duration
	ReportsLimit     int
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddr:       getenvDefault("CONFIDENCE_HTTP_ADDR", ":5002"),
		AuthBaseURL:    getenvDefault("AUTH_BASE_URL", "http://localhost:3003"),
		DBDSN:          os.Getenv("DB_DSN"),
		CaptureBaseURL: getenvDefault("CAPTURE_BASE_URL", "http://localhost:9020"),
		VisionBaseURL:  os.Getenv("VISION_BASE_URL"),
		STTBaseURL:     os.Getenv("STT_BASE_URL"),

		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:    getenvDefault("MQTT_CLIENT_ID", "confidence-server"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "confidence"),

		AnalysisDuration: time.Duration(getenvIntDefault("ANALYSIS_DURATION_SECONDS", 60)) * time.Second,
		ListenTimeout:    time.Duration(getenvIntDefault("LISTEN_TIMEOUT_SECONDS", 5)) * time.Second,
		PhraseLimit:      time.Duration(getenvIntDefault("PHRASE_LIMIT_SECONDS", 15)) * time.Second,
		CalibrateWindow:  time.Duration(getenvIntDefault("CALIBRATE_WINDOW_MS", 1000)) * time.Millisecond,
		IdleDelay:        time.Duration(getenvIntDefault("SPEECH_IDLE_DELAY_MS", 100)) * time.Millisecond,
		TimerPoll:        time.Duration(getenvIntDefault("TIMER_POLL_MS", 100)) * time.Millisecond,
		ReportsLimit:     getenvIntDefault("REPORTS_LIMIT", 50),
	}

	if cfg.DBDSN == "" {
		return ServerConfig{}, fmt.Errorf("DB_DSN is required")
	}
	if cfg.VisionBaseURL == "" {
		return ServerConfig{}, fmt.Errorf("VISION_BASE_URL is required")
	}
	if cfg.STTBaseURL == "" {
		return ServerConfig{}, fmt.Errorf("STT_BASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}
