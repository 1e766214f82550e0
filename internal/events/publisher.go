package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
)

type PublisherConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Publisher pushes live session events over MQTT for companion displays.
// It is optional: with no broker configured every publish is a no-op.
type Publisher struct {
	cfg    PublisherConfig
	client paho.Client
	logger *slog.Logger
}

func NewPublisher(cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "confidence"
	}
	return &Publisher{cfg: cfg, logger: logger}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.cfg.BrokerURL != ""
}

func (p *Publisher) Start(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	opts := paho.NewClientOptions().
		AddBroker(p.cfg.BrokerURL).
		SetClientID(p.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.logger.Error("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		p.client.Disconnect(100)
	}()

	return nil
}

// PublishStatus announces a session lifecycle change (started, stopped,
// expired). Fire and forget.
func (p *Publisher) PublishStatus(sessionID, status string, timeRemaining float64) {
	if !p.Enabled() || sessionID == "" {
		return
	}
	p.publish(topicStatus(p.cfg.TopicPrefix, sessionID), domain.SessionStatusEvent{
		SessionID:     sessionID,
		Status:        status,
		TimeRemaining: timeRemaining,
	})
}

// PublishFeedback forwards freshly generated feedback lines.
func (p *Publisher) PublishFeedback(sessionID string, lines []string) {
	if !p.Enabled() || sessionID == "" || len(lines) == 0 {
		return
	}
	p.publish(topicFeedback(p.cfg.TopicPrefix, sessionID), domain.SessionFeedbackEvent{
		SessionID: sessionID,
		Lines:     lines,
	})
}

func (p *Publisher) publish(topic string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("marshal event failed", "topic", topic, "error", err)
		return
	}
	if token := p.client.Publish(topic, 0, false, body); token.Wait() && token.Error() != nil {
		p.logger.Warn("publish event failed", "topic", topic, "error", token.Error())
	}
}

func topicStatus(prefix, sessionID string) string {
	return fmt.Sprintf("%s/session/%s/status", prefix, sessionID)
}

func topicFeedback(prefix, sessionID string) string {
	return fmt.Sprintf("%s/session/%s/feedback", prefix, sessionID)
}
