package notify

import (
	"context"
	"log/slog"
	"sync"
)

const defaultBuffer = 64

// Dispatcher decouples reconciliation from notification delivery. Dispatch
// enqueues without blocking; a background goroutine drains the inbox and
// pushes through the sender. When the inbox is full the message is dropped
// and counted, never queued at the caller.
type Dispatcher struct {
	sender Sender
	inbox  chan Message
	logger *slog.Logger

	disabledOnce sync.Once
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithBuffer sets the inbox capacity.
func WithBuffer(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.inbox = make(chan Message, n)
		}
	}
}

// NewDispatcher creates a dispatcher around sender. A nil sender disables
// delivery; Dispatch logs one warning and drops everything after it.
func NewDispatcher(sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		inbox:  make(chan Message, defaultBuffer),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch enqueues a message for delivery. It never blocks and never fails.
func (d *Dispatcher) Dispatch(msg Message) {
	if d.sender == nil {
		d.disabledOnce.Do(func() {
			d.logger.Warn("notifications disabled, no credentials configured")
		})
		return
	}

	select {
	case d.inbox <- msg:
	default:
		recordNotification("dropped")
		d.logger.Warn("notification dropped, inbox full",
			"title", msg.Title, "event_type", msg.EventType)
	}
}

// Run drains the inbox until ctx is cancelled. Push failures are logged and
// counted; the loop never stops on them.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.sender == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.inbox:
			if err := d.sender.Push(msg); err != nil {
				recordNotification("failed")
				d.logger.Error("notification delivery failed",
					"error", err, "title", msg.Title, "event_type", msg.EventType)
				continue
			}
			recordNotification("sent")
		}
	}
}
