package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Veraticus/spice-ledger/internal/service"
)

// ErrChannelClosed is returned when the broker closes the delivery channel.
var ErrChannelClosed = errors.New("delivery channel closed")

// Subscriber applies revalidations announced by other instances to a local
// revalidator, usually the view cache.
type Subscriber struct {
	local  service.Revalidator
	source string
}

// NewSubscriber creates a subscriber that skips events published by source.
func NewSubscriber(local service.Revalidator, source string) *Subscriber {
	return &Subscriber{local: local, source: source}
}

// Run consumes events from an exclusive queue bound to the exchange until
// ctx is done.
func (s *Subscriber) Run(ctx context.Context, conn *amqp091.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, exchange); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		"",    // name, server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "listening for revalidations", "exchange", exchange, "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return ErrChannelClosed
			}
			s.handle(ctx, delivery.Body)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, body []byte) {
	event, err := EventFromJSON(body)
	if err != nil {
		slog.WarnContext(ctx, "dropping malformed revalidation", "error", err)
		return
	}
	if event.Source == s.source || len(event.Views) == 0 {
		return
	}
	s.local.Revalidate(ctx, event.Views...)
}
