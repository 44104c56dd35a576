package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ExchangeType string

const (
	DirectExchangeType ExchangeType = "direct"
	FanoutExchangeType ExchangeType = "fanout"
	TopicExchangeType  ExchangeType = "topic"
)

// EventBus is an interface that defines the contract for any event bus implementation.
// Publish accepts a dot-delimited routing key; Consume declares a durable queue
// bound to the exchange under the given binding pattern and returns the raw
// delivery stream. Acknowledgement is left to the caller so that consumers can
// decide between ack, drop and requeue per message.
type EventBus interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Consume(ctx context.Context, queue, bindingKey string) (<-chan amqp.Delivery, error)
	Close()
}

// RabbitMQEventBus is a concrete implementation of EventBus that uses RabbitMQ.
type RabbitMQEventBus struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	prefetch int
}

// NewRabbitMQEventBus creates and returns a new RabbitMQEventBus instance.
// It connects to the RabbitMQ server and declares a durable exchange.
func NewRabbitMQEventBus(amqpURI, exchange string, exchangeType ExchangeType, prefetch int) (*RabbitMQEventBus, error) {
	conn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare a durable exchange shared by producers and consumers
	err = ch.ExchangeDeclare(
		exchange,             // name
		string(exchangeType), // type
		true,                 // durable
		false,                // auto-deleted
		false,                // internal
		false,                // no-wait
		nil,                  // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQEventBus{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		prefetch: prefetch,
	}, nil
}

// Publish serializes the event and sends it to the RabbitMQ exchange.
func (eb *RabbitMQEventBus) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent, // Make message persistent
	}

	return eb.channel.PublishWithContext(
		ctx,
		eb.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		publishing,
	)
}

// Consume declares a durable queue, binds it to the exchange under bindingKey
// and starts delivering messages on the returned channel. Each consumer gets a
// dedicated AMQP channel so that prefetch limits apply per queue. The delivery
// stream closes when ctx is cancelled or the connection drops; messages left
// unacknowledged at that point are redelivered by the broker.
func (eb *RabbitMQEventBus) Consume(ctx context.Context, queue, bindingKey string) (<-chan amqp.Delivery, error) {
	ch, err := eb.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}

	if err := ch.QueueBind(queue, bindingKey, eb.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue %q to %q: %w", queue, bindingKey, err)
	}

	if err := ch.Qos(eb.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch on queue %q: %w", queue, err)
	}

	deliveries, err := ch.ConsumeWithContext(
		ctx,
		queue, // queue
		"",    // consumer tag, server generated
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming queue %q: %w", queue, err)
	}

	return deliveries, nil
}

// Close closes the RabbitMQ channel and connection.
func (eb *RabbitMQEventBus) Close() {
	if eb.channel != nil {
		eb.channel.Close()
	}
	if eb.conn != nil {
		eb.conn.Close()
	}
}
