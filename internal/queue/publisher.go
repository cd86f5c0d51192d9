package queue // queue publishes notification messages to RabbitMQ

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/authcore/internal/service"
)

// Publisher sends notifications to a durable RabbitMQ queue. Each Send opens
// its own connection, so the API server holds no broker state between
// requests.
type Publisher struct {
	url   string
	queue string
	log   zerolog.Logger
	now   func() time.Time
}

func NewPublisher(url, queue string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, log: log, now: time.Now}
}

// Send publishes a persistent notification. Errors are logged and returned so
// the caller can decide to ignore them.
func (p *Publisher) Send(ctx context.Context, to string, variant service.Variant, data map[string]string) error {
	body, err := p.encode(to, variant, data)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error().Err(err).Msg("rabbitmq: dial failed")
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error().Err(err).Msg("rabbitmq: channel open failed")
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.log.Error().Err(err).Str("queue", p.queue).Msg("rabbitmq: queue declare failed")
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Type:         string(variant),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.log.Error().Err(err).Str("queue", p.queue).Msg("rabbitmq: publish failed")
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *Publisher) encode(to string, variant service.Variant, data map[string]string) ([]byte, error) {
	return json.Marshal(NotificationMessage{
		To:          to,
		Variant:     string(variant),
		Data:        data,
		RequestedAt: p.now().UTC(),
	})
}
