// Package events carries click events from the API service to the
// analytics worker over RabbitMQ. The pipeline is best-effort fan-out:
// the store's atomic LogClick is the source of truth for click counts,
// and a publish failure is logged and dropped, never surfaced.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"github.com/linkpulse/linkpulse/internal"
)

// Click is the wire form of one recorded redirect.
type Click struct {
	Slug      string `json:"slug"`
	Timestamp int64  `json:"timestamp"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Country   string `json:"country"`
}

// FromEvent converts a stored click event to its wire form.
func FromEvent(slug string, event internal.ClickEvent) Click {
	return Click{
		Slug:      slug,
		Timestamp: event.Timestamp,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		Country:   event.Country,
	}
}

// Publisher emits click events. Broker-less deployments run without one.
type Publisher interface {
	PublishClick(ctx context.Context, click Click)
}

// QueuePublisher publishes to a durable RabbitMQ queue.
type QueuePublisher struct {
	ch    *amqp091.Channel
	queue string
}

// NewQueuePublisher declares the durable queue and returns a publisher
// bound to it.
func NewQueuePublisher(ch *amqp091.Channel, queue string) (*QueuePublisher, error) {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return nil, err
	}
	return &QueuePublisher{ch: ch, queue: queue}, nil
}

func (p *QueuePublisher) PublishClick(ctx context.Context, click Click) {
	body, err := json.Marshal(click)
	if err != nil {
		slog.Error("marshalling click event", "slug", click.Slug, "err", err)
		return
	}
	err = p.ch.PublishWithContext(ctx,
		"", p.queue, false, false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		slog.Error("publishing click event", "slug", click.Slug, "err", err)
	}
}
