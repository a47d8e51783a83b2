package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const deliveryTimeout = 5 * time.Second

// Relay decouples notification delivery from the caller. Send enqueues onto a
// buffered channel and returns immediately; a worker goroutine hands messages
// to the underlying sink. Delivery failures are logged, never propagated, so
// a slow or dead sink cannot block or fail a ledger operation.
type Relay struct {
	sink   Notifier
	logger *slog.Logger
	queue  chan Message
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRelay starts a relay draining into sink. Buffer bounds the number of
// undelivered messages held in memory; when it is full new messages are
// dropped with a warning.
func NewRelay(sink Notifier, logger *slog.Logger, buffer int) *Relay {
	if buffer <= 0 {
		buffer = 64
	}
	r := &Relay{
		sink:   sink,
		logger: logger,
		queue:  make(chan Message, buffer),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Send enqueues the message for asynchronous delivery. It never blocks and
// never returns an error.
func (r *Relay) Send(_ context.Context, message Message) error {
	select {
	case r.queue <- message:
	default:
		r.logger.Warn("notification dropped, relay queue full",
			"kind", message.Kind, "recipient", message.Recipient)
	}
	return nil
}

// Close stops accepting messages, drains the queue, and waits for the worker
// to finish.
func (r *Relay) Close() {
	r.once.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()
}

func (r *Relay) run() {
	defer r.wg.Done()
	for message := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := r.sink.Send(ctx, message); err != nil {
			r.logger.Warn("notification delivery failed",
				"kind", message.Kind, "recipient", message.Recipient, "error", err)
		}
		cancel()
	}
}
