package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second

	// maxHandlerFailures consecutive handler errors drop the event.
	maxHandlerFailures = 5
)

// Client publishes and consumes ledger events on a direct exchange bound to
// one durable queue.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	breaker *breaker

	// retryDelay overrides exponentialBackoff between handler retries.
	retryDelay func(failures int) time.Duration
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		breaker:      newBreaker(maxFailures, openTimeout),
	}

	if _, err := client.getChannel(); err != nil {
		return nil, err
	}
	return client, nil
}

// getChannel returns the open channel, dialing again when the previous
// connection was lost.
func (c *Client) getChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return channel, nil
}

// setup declares the durable direct exchange and queue and binds them with
// the queue name as routing key.
func (c *Client) setup(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(c.exchangeName, amqp091.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", c.exchangeName, err)
	}
	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", c.queueName, err)
	}
	if err := ch.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind %q to %q: %w", c.queueName, c.exchangeName, err)
	}
	return nil
}

// PublishLedgerEvent publishes a ledger change event. While the circuit
// breaker is open the call fails fast without touching the broker.
func (c *Client) PublishLedgerEvent(ctx context.Context, ev *LedgerEvent) error {
	if !c.breaker.allow() {
		return fmt.Errorf("%w, skipping publish", ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.getChannel()
	if err != nil {
		c.breaker.failure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    ev.Timestamp,
		Type:         string(ev.Kind),
		Body:         body,
	}
	err = ch.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, msg)
	if err != nil {
		c.breaker.failure()
		if isConnectionError(err) {
			c.reset()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.breaker.success()

	slog.InfoContext(ctx, "Published ledger event",
		"kind", ev.Kind,
		"tx_id", ev.TransactionID,
		"revision", ev.Revision,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ConsumeLedgerEvents delivers events to handler until ctx is cancelled,
// reconnecting with exponential backoff when the broker goes away.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *LedgerEvent) error) error {
	attempt := 0
	for {
		err := c.consume(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			"error", err,
			"attempt", attempt,
			"backoff", wait)
		c.reset()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, handler func(context.Context, *LedgerEvent) error, connected func()) error {
	ch, err := c.getChannel()
	if err != nil {
		return err
	}

	// Manual acks: a delivery is acked only after handler succeeded.
	deliveries, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()
	slog.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed: %w", amqp091.ErrClosed)
			}
			failures = c.dispatch(ctx, d, handler, failures)
		}
	}
}

// dispatch drops malformed messages and requeues the ones the handler failed
// after a backoff. failures counts consecutive handler errors; the updated
// count is returned. Once it reaches maxHandlerFailures the event is dropped.
func (c *Client) dispatch(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *LedgerEvent) error, failures int) int {
	ev, err := LedgerEventFromJSON(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed ledger event", "error", err)
		_ = d.Nack(false, false)
		return failures
	}

	if err := handler(ctx, ev); err != nil {
		failures++
		if failures >= maxHandlerFailures {
			slog.ErrorContext(ctx, "Ledger event keeps failing, dropping it",
				"error", err,
				"kind", ev.Kind,
				"revision", ev.Revision,
				"attempts", failures)
			_ = d.Nack(false, false)
			return 0
		}

		wait := c.handlerBackoff(failures)
		slog.ErrorContext(ctx, "Ledger event handler failed, requeueing",
			"error", err,
			"kind", ev.Kind,
			"revision", ev.Revision,
			"retry_in", wait)
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
		_ = d.Nack(false, true)
		return failures
	}

	_ = d.Ack(false)
	slog.DebugContext(ctx, "Processed ledger event", "kind", ev.Kind, "revision", ev.Revision)
	return 0
}

func (c *Client) handlerBackoff(failures int) time.Duration {
	if c.retryDelay != nil {
		return c.retryDelay(failures)
	}
	return exponentialBackoff(failures - 1)
}

// exponentialBackoff returns 1s, 2s, 4s... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.channel, c.conn = nil, nil
	return err
}
