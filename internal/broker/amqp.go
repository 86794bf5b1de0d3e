package broker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"gowa-keeper/internal/notify"
)

// Publisher mirrors instance notifications onto a RabbitMQ topic exchange so
// other services can react to session lifecycle changes.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
}

func New(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, exchange: exchange}, nil
}

// Attach subscribes the publisher to every instance event on the notifier.
// Routing key is the event name, so consumers bind with patterns like
// "instance.ready" or "instance.*".
func (p *Publisher) Attach(notifier *notify.Notifier) error {
	return notifier.SubscribeAll(func(n notify.Notification) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.publish(ctx, n.Event, n); err != nil {
			log.Printf("broker: publish %s failed: %v", n.Event, err)
		}
	})
}

func (p *Publisher) publish(ctx context.Context, key string, n notify.Notification) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
