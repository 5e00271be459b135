package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Login topics.
const (
	TopicLoginSucceeded      = "login.succeeded"
	TopicLoginFailed         = "login.failed"
	TopicLoginSignupRequired = "login.signup_required"
)

// LoginTopics lists every topic a LoginEvent can be published on.
var LoginTopics = []string{TopicLoginSucceeded, TopicLoginFailed, TopicLoginSignupRequired}

// LoginEvent describes the end of one login attempt. It never carries
// credentials or tokens.
type LoginEvent struct {
	Topic    string    `json:"-"`
	Method   string    `json:"method"`
	UID      string    `json:"uid,omitempty"`
	Email    string    `json:"email,omitempty"`
	Complete bool      `json:"complete,omitempty"`
	Stage    string    `json:"stage,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// LoginPublisher publishes login events onto a Bus.
type LoginPublisher struct {
	bus *Bus
}

// NewLoginPublisher creates a publisher on bus.
func NewLoginPublisher(bus *Bus) *LoginPublisher {
	return &LoginPublisher{bus: bus}
}

// PublishLogin publishes ev on ev.Topic.
func (p *LoginPublisher) PublishLogin(ctx context.Context, ev LoginEvent) error {
	if ev.Topic == "" {
		return fmt.Errorf("login event has no topic")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode login event: %w", err)
	}
	return p.bus.Publish(ctx, ev.Topic, payload, map[string]string{"method": ev.Method})
}

// DecodeLoginEvent reads a LoginEvent back from a bus message.
func DecodeLoginEvent(topic string, msg *message.Message) (LoginEvent, error) {
	var ev LoginEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return LoginEvent{}, fmt.Errorf("decode login event: %w", err)
	}
	ev.Topic = topic
	return ev, nil
}

// LogLoginEvents subscribes a handler to every login topic that writes each
// event to logger as an audit line.
func LogLoginEvents(ctx context.Context, bus *Bus, logger *slog.Logger) error {
	for _, topic := range LoginTopics {
		err := bus.Subscribe(ctx, topic, func(ctx context.Context, msg *message.Message) error {
			ev, err := DecodeLoginEvent(topic, msg)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "Login event",
				"event", ev.Topic,
				"method", ev.Method,
				"uid", ev.UID,
				"complete", ev.Complete,
				"stage", ev.Stage,
				"reason", ev.Reason,
			)
			return nil
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}
