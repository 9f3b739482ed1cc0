package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// channel is the part of *amqp091.Channel used here.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher announces revalidations to other instances. It implements
// service.Revalidator; delivery failures are logged and never surface to
// the caller.
type Publisher struct {
	conn     *amqp091.Connection
	ch       channel
	exchange string
	source   string
}

// Dial connects to the broker and declares the fanout exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := newPublisher(ch, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string) (*Publisher, error) {
	if err := declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		source:   uuid.NewString(),
	}, nil
}

func declareExchange(ch channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// Source identifies this process in published events.
func (p *Publisher) Source() string {
	return p.source
}

// Connection returns the underlying connection, nil in tests.
func (p *Publisher) Connection() *amqp091.Connection {
	return p.conn
}

// Revalidate publishes the stale views.
func (p *Publisher) Revalidate(ctx context.Context, views ...string) {
	if len(views) == 0 {
		return
	}
	if err := p.publish(ctx, NewEvent(p.source, views)); err != nil {
		slog.WarnContext(ctx, "failed to broadcast revalidation", "views", views, "error", err)
	}
}

func (p *Publisher) publish(ctx context.Context, event *Event) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange, // exchange
		"",         // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   event.IssuedAt,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	slog.DebugContext(ctx, "published revalidation", "views", event.Views, "exchange", p.exchange)
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
