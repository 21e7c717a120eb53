// Package mailqueue delivers mail events through RabbitMQ. The engine
// publishes authcore.MailEvent messages to a durable queue and a background
// consumer renders them for delivery.
package mailqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/keshvara/authcore"
)

// QueueName is the durable queue mail events are published to.
const QueueName = "auth.mail"

// Publisher implements authcore.MailSink on top of a RabbitMQ connection.
// Publish failures are returned to the caller; the engine treats mail
// delivery as best effort and will not fail the request flow.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials the broker and declares the mail queue. Durable so
// messages survive broker restarts.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("mailqueue: dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mailqueue: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		QueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("mailqueue: queue declare: %w", err)
	}

	return &Publisher{conn: conn, ch: ch}, nil
}

// Send publishes the event as a persistent JSON message on the mail queue.
func (p *Publisher) Send(ctx context.Context, event authcore.MailEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("mailqueue: marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx,
		"",        // default exchange
		QueueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		log.Printf("mailqueue: publish failed: %v", err)
		return err
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
