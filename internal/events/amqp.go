package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPPublisher sends events to a durable topic exchange, routed by type.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
}

// DialAMQP connects and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, env Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := publishing(env, body)
	if err := ch.PublishWithContext(ctx, p.exchange, string(env.Meta.Type), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", env.Meta.Type, err)
	}
	log.Debug().Str("module", "events").Str("exchange", p.exchange).Str("key", string(env.Meta.Type)).Msg("published")
	return nil
}

// Close closes the broker connection.
func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

func publishing(env Envelope, body []byte) amqp.Publishing {
	cid := env.Meta.ID
	if env.Meta.CorrelationID != nil {
		cid = *env.Meta.CorrelationID
	}
	ts := env.Meta.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: cid,
		Timestamp:     ts,
		Type:          string(env.Meta.Type),
		Body:          body,
	}
}
