package mailqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/keshvara/authcore"
)

// StartConsumer connects to the broker and consumes mail events from the
// auth.mail queue, handing each one to deliver. It runs a reconnect loop
// with exponential backoff and never returns; processing errors are logged
// and the offending message is rejected without requeue.
func StartConsumer(url string, deliver func(authcore.MailEvent) error) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("mail-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, deliver); err != nil {
			log.Printf("mail-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, deliver func(authcore.MailEvent) error) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("mail-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, deliver); err != nil {
			log.Printf("mail-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, deliver func(authcore.MailEvent) error) error {
	var ev authcore.MailEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return deliver(ev)
}

// LogDelivery is a deliver function that writes a single structured line per
// message. It stands in for a real mail provider in development.
func LogDelivery(ev authcore.MailEvent) error {
	log.Printf("mail: kind=%s to=%s name=%q token=%s expires=%s",
		ev.Kind, ev.To, ev.Name, ev.Token, ev.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}
