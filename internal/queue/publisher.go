package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BookingEventsQueue is the durable queue booking events are routed to.
const BookingEventsQueue = "booking.events"

const (
	defaultBuffer      = 256
	defaultDialTimeout = 5 * time.Second
	publishTimeout     = 5 * time.Second
)

// Publisher sends booking events to RabbitMQ.  PublishBookingEvent only
// enqueues; Run owns the single broker connection and drains the buffer.
// Events enqueued while the broker is down stay buffered until Run
// reconnects.
type Publisher struct {
	URL         string
	DialTimeout time.Duration
	Log         *slog.Logger

	events chan BookingEvent
}

// NewPublisher returns a Publisher for the broker at url with the default
// buffer size.
func NewPublisher(url string, log *slog.Logger) *Publisher {
	return NewPublisherSize(url, defaultBuffer, log)
}

// NewPublisherSize returns a Publisher whose buffer holds size events.
func NewPublisherSize(url string, size int, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	if size <= 0 {
		size = defaultBuffer
	}
	return &Publisher{
		URL:         url,
		DialTimeout: defaultDialTimeout,
		Log:         log,
		events:      make(chan BookingEvent, size),
	}
}

// PublishBookingEvent hands ev to the background sender.  It blocks only
// while the buffer is full and returns ctx's error once ctx is done.
func (p *Publisher) PublishBookingEvent(ctx context.Context, ev BookingEvent) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", ev.Type, ctx.Err())
	}
}

// Pending reports how many events wait in the buffer.
func (p *Publisher) Pending() int { return len(p.events) }

// Run connects to the broker and publishes buffered events until ctx is
// cancelled.  A failed publish keeps the event and retries it on the next
// connection.
func (p *Publisher) Run(ctx context.Context) error {
	backoff := time.Second
	var pending *BookingEvent
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.DialConfig(p.URL, amqp.Config{
			Dial:      amqp.DefaultDial(p.DialTimeout),
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
		})
		if err != nil {
			p.Log.Warn("booking-publisher: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		pending, err = p.drain(ctx, conn, pending)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.Log.Warn("booking-publisher: publish loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

// drain publishes events on one connection.  It returns the event that
// failed to go out, if any, so Run can retry it.
func (p *Publisher) drain(ctx context.Context, conn *amqp.Connection, pending *BookingEvent) (*BookingEvent, error) {
	ch, err := conn.Channel()
	if err != nil {
		return pending, fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent. Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		BookingEventsQueue, // name
		true,               // durable
		false,              // autoDelete
		false,              // exclusive
		false,              // noWait
		nil,                // args
	); err != nil {
		return pending, fmt.Errorf("queue declare: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		if pending != nil {
			if err := p.send(ctx, ch, *pending); err != nil {
				return pending, err
			}
			pending = nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case amqpErr := <-closed:
			return nil, fmt.Errorf("connection closed: %v", amqpErr)
		case ev := <-p.events:
			pending = &ev
		}
	}
}

func (p *Publisher) send(ctx context.Context, ch *amqp.Channel, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(pctx,
		"",                 // default exchange
		BookingEventsQueue, // routing key = queue name
		false,              // mandatory
		false,              // immediate
		pub,
	); err != nil {
		p.Log.Warn("booking-publisher: publish failed", "error", err, "event", ev.Type, "booking_id", ev.BookingID)
		return err
	}
	return nil
}
