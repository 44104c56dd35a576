package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/chordline-io/cadenza/internal/eventbus"
)

// Handler applies every event kind of one domain to persisted aggregate
// state. A nil return acknowledges the message; ErrMalformedEvent (or any
// other non-transient error) drops it; errors wrapped with Transient are
// requeued when the dispatcher runs in requeue mode.
type Handler interface {
	Domain() string
	Handle(ctx context.Context, routingKey string, body []byte) error
}

// Options tunes dispatch behavior shared by both dispatcher variants.
type Options struct {
	// RequeueTransient switches the failure policy. Off by default: any
	// handler failure is nacked without requeue and the message is lost,
	// which avoids poison-message loops at the cost of dropping events on
	// transient store failures.
	RequeueTransient bool
	// HandlerTimeout bounds a single handler invocation.
	HandlerTimeout time.Duration
}

// Dispatcher consumes one durable queue and routes each message to the
// handler owning the domain encoded in its routing key.
//
// Per message the flow is received -> decoded -> handled -> acked, or a nack
// on decode or handler failure. Decoding happens inside the handler so that
// each domain validates its own required fields.
type Dispatcher struct {
	bus      eventbus.EventBus
	logger   *slog.Logger
	queue    string
	binding  string
	handlers map[string]Handler
	opts     Options
}

// NewDispatcher builds the per-domain variant: a queue bound to
// metrics.<domain>.* feeding exactly one handler.
func NewDispatcher(bus eventbus.EventBus, logger *slog.Logger, handler Handler, opts Options) *Dispatcher {
	domain := handler.Domain()
	return &Dispatcher{
		bus:      bus,
		logger:   logger,
		queue:    fmt.Sprintf("cadenza.metrics.%s", domain),
		binding:  fmt.Sprintf("%s.%s.*", eventbus.TopicPrefix, domain),
		handlers: map[string]Handler{domain: handler},
		opts:     withDefaults(opts),
	}
}

// NewFirehoseDispatcher builds the coarse variant: one queue receives every
// metric event and demultiplexing by routing-key prefix happens here instead
// of in broker bindings. Handler behavior is identical to the per-domain
// variant.
func NewFirehoseDispatcher(bus eventbus.EventBus, logger *slog.Logger, handlers []Handler, opts Options) *Dispatcher {
	byDomain := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		byDomain[h.Domain()] = h
	}
	return &Dispatcher{
		bus:      bus,
		logger:   logger,
		queue:    "cadenza.metrics.firehose",
		binding:  eventbus.TopicPrefix + ".#",
		handlers: byDomain,
		opts:     withDefaults(opts),
	}
}

func withDefaults(opts Options) Options {
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 30 * time.Second
	}
	return opts
}

// Run consumes until ctx is cancelled or the delivery stream closes. On
// cancellation it stops pulling new messages; anything in flight that was not
// acknowledged is redelivered by the broker.
func (d *Dispatcher) Run(ctx context.Context) error {
	deliveries, err := d.bus.Consume(ctx, d.queue, d.binding)
	if err != nil {
		return fmt.Errorf("dispatcher %s: %w", d.queue, err)
	}

	d.logger.Info("Dispatcher consuming",
		slog.String("queue", d.queue),
		slog.String("binding", d.binding),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			d.process(ctx, msg)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, msg amqp.Delivery) {
	domain, _, err := eventbus.SplitTopic(msg.RoutingKey)
	if err != nil {
		d.logger.Error("Dropping message with unroutable key",
			slog.String("routing_key", msg.RoutingKey),
			slog.Any("error", err),
		)
		d.nack(msg, false)
		return
	}

	handler, ok := d.handlers[domain]
	if !ok {
		d.logger.Error("Dropping message for unhandled domain",
			slog.String("routing_key", msg.RoutingKey),
			slog.String("domain", domain),
		)
		d.nack(msg, false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, d.opts.HandlerTimeout)
	err = handler.Handle(hctx, msg.RoutingKey, msg.Body)
	cancel()

	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			d.logger.Error("Failed to ack message", slog.Any("error", ackErr))
		}
	case d.opts.RequeueTransient && IsTransient(err):
		d.logger.Warn("Requeueing message after transient failure",
			slog.String("routing_key", msg.RoutingKey),
			slog.Any("error", err),
		)
		d.nack(msg, true)
	default:
		d.logger.Error("Dropping message after handler failure",
			slog.String("routing_key", msg.RoutingKey),
			slog.Any("error", err),
		)
		d.nack(msg, false)
	}
}

func (d *Dispatcher) nack(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		d.logger.Error("Failed to nack message", slog.Any("error", err))
	}
}
