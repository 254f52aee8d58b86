package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-fieldroute/internal/tracking"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const (
	Exchange             = "tracking"
	RoutingSessionClosed = "session.closed"
	TypeSessionClosed    = "tracking.session_closed"

	publishTimeout = 5 * time.Second
)

type SessionClosedEvent struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"sessionId"`
	SalespersonID string    `json:"salespersonId"`
	EndedAt       time.Time `json:"endedAt"`
	TotalKm       float64   `json:"totalKm"`
	PointCount    int       `json:"pointCount"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher emits domain events to a topic exchange. A nil *Publisher drops
// events silently, which is how the service runs without AMQP_URL.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	log      *log.Entry
}

// Dial connects to RabbitMQ and declares the durable topic exchange.
// An empty url yields a nil Publisher.
func Dial(url string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare exchange: %w", err)
	}
	p := newPublisher(ch)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel) *Publisher {
	return &Publisher{ch: ch, exchange: Exchange, log: log.WithField("component", "events")}
}

func (p *Publisher) SessionClosed(ctx context.Context, session tracking.Session) error {
	if p == nil {
		return nil
	}
	if session.EndedAt == nil || session.TotalKm == nil {
		return errors.New("session is not closed")
	}
	return p.publish(ctx, RoutingSessionClosed, SessionClosedEvent{
		Type:          TypeSessionClosed,
		SessionID:     session.ID,
		SalespersonID: session.SalespersonID,
		EndedAt:       *session.EndedAt,
		TotalKm:       *session.TotalKm,
		PointCount:    len(session.Points),
	})
}

func (p *Publisher) publish(ctx context.Context, key string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.log.WithField("routing_key", key).Debug("event published")
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
