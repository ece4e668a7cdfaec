package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, maxBackoff, maxBackoff}
	for attempt, w := range want {
		if got := exponentialBackoff(attempt); got != w {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, w)
		}
	}
	if got := exponentialBackoff(-3); got != time.Second {
		t.Errorf("negative attempt: got %v", got)
	}
}

func TestIsConnectionError(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":            {nil, false},
		"amqp closed":    {fmt.Errorf("consume: %w", amqp091.ErrClosed), true},
		"refused":        {errors.New("dial tcp: connection refused"), true},
		"eof":            {errors.New("unexpected EOF"), true},
		"broken pipe":    {errors.New("write: broken pipe"), true},
		"closed network": {errors.New("use of closed network connection"), true},
		"decode":         {errors.New("invalid character"), false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := isConnectionError(tc.err); got != tc.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := newBreaker(3, 30*time.Second)
	b.now = clock.now

	for i := 0; i < 2; i++ {
		b.failure()
	}
	if !b.allow() || b.current() != stateClosed {
		t.Fatalf("breaker opened before the threshold: %v", b.current())
	}

	b.failure()
	if b.allow() {
		t.Fatal("breaker should reject calls once open")
	}

	clock.advance(31 * time.Second)
	if !b.allow() || b.current() != stateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %v", b.current())
	}

	b.failure()
	if b.current() != stateOpen {
		t.Fatalf("failure while half-open should reopen, got %v", b.current())
	}

	clock.advance(31 * time.Second)
	b.allow()
	b.success()
	if b.current() != stateClosed || b.failures != 0 {
		t.Fatalf("success should close and reset, got %v with %d failures", b.current(), b.failures)
	}
}

func TestPublishFailsFastWhenOpen(t *testing.T) {
	c := &Client{exchangeName: "bilancio", queueName: "ledger_events", breaker: newBreaker(1, time.Minute)}
	c.breaker.failure()

	err := c.PublishLedgerEvent(context.Background(), NewLedgerEvent(EventTransactionAdded, 1, 1))
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	c := &Client{exchangeName: "bilancio", queueName: "ledger_events", breaker: newBreaker(maxFailures, openTimeout)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.PublishLedgerEvent(ctx, NewLedgerEvent(EventTransactionRemoved, 1, 2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c.breaker.current() != stateClosed {
		t.Fatal("a cancelled publish must not count as a broker failure")
	}
}

func TestLedgerEventWireFormat(t *testing.T) {
	ev := &LedgerEvent{
		Kind:          EventTransactionAdded,
		TransactionID: 1709283600000,
		Revision:      4,
		Timestamp:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	b, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	for _, want := range []string{`"kind":"transaction_added"`, `"transaction_id":1709283600000`, `"revision":4`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("missing %s in %s", want, b)
		}
	}

	back, err := LedgerEventFromJSON(b)
	if err != nil {
		t.Fatalf("LedgerEventFromJSON: %v", err)
	}
	if back.Kind != ev.Kind || back.TransactionID != ev.TransactionID || back.Revision != ev.Revision || !back.Timestamp.Equal(ev.Timestamp) {
		t.Fatalf("decoded %+v, want %+v", back, ev)
	}

	replaced, _ := NewLedgerEvent(EventLedgerReplaced, 0, 1).ToJSON()
	if strings.Contains(string(replaced), "transaction_id") {
		t.Errorf("zero transaction id should be omitted: %s", replaced)
	}
}

func TestLedgerEventFromJSONRejects(t *testing.T) {
	for _, body := range []string{`not json`, `{"revision":3}`} {
		if _, err := LedgerEventFromJSON([]byte(body)); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}

// recordingAck captures how a delivery was settled.
type recordingAck struct {
	acks     int
	requeues int
	drops    int
}

func (a *recordingAck) Ack(uint64, bool) error { a.acks++; return nil }

func (a *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeues++
	} else {
		a.drops++
	}
	return nil
}

func (a *recordingAck) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func TestDispatchBacksOffThenDrops(t *testing.T) {
	var waits []int
	c := &Client{retryDelay: func(failures int) time.Duration {
		waits = append(waits, failures)
		return time.Millisecond
	}}
	body, err := NewLedgerEvent(EventTransactionAdded, 1, 1).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	ack := &recordingAck{}
	failing := func(context.Context, *LedgerEvent) error { return errors.New("sheets unavailable") }

	failures := 0
	for i := 0; i < maxHandlerFailures; i++ {
		failures = c.dispatch(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: body}, failing, failures)
	}

	if ack.requeues != maxHandlerFailures-1 || ack.drops != 1 {
		t.Fatalf("requeues = %d, drops = %d", ack.requeues, ack.drops)
	}
	if len(waits) != maxHandlerFailures-1 || waits[0] != 1 || waits[len(waits)-1] != maxHandlerFailures-1 {
		t.Fatalf("backoff calls = %v", waits)
	}
	if failures != 0 {
		t.Fatalf("failure count after drop = %d, want 0", failures)
	}
}

func TestDispatchSuccessResetsFailures(t *testing.T) {
	c := &Client{retryDelay: func(int) time.Duration { return 0 }}
	body, _ := NewLedgerEvent(EventTransactionRemoved, 2, 3).ToJSON()
	ack := &recordingAck{}

	got := c.dispatch(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: body},
		func(context.Context, *LedgerEvent) error { return nil }, 3)
	if got != 0 || ack.acks != 1 {
		t.Fatalf("failures = %d, acks = %d", got, ack.acks)
	}

	got = c.dispatch(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{")},
		func(context.Context, *LedgerEvent) error { return nil }, 2)
	if got != 2 || ack.drops != 1 {
		t.Fatalf("malformed: failures = %d, drops = %d", got, ack.drops)
	}
}
