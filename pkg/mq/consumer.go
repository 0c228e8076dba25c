package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"scrumboard/pkg/metrics"
	"scrumboard/pkg/otel"
	"scrumboard/pkg/trace"
)

// Delivery is the part of an AMQP delivery handlers see.
type Delivery struct {
	Queue      string
	RoutingKey string
	MessageID  string
	Body       json.RawMessage
	Headers    map[string]interface{}
}

// MessageHandler returning nil acks the message; an error nacks and requeues it.
type MessageHandler func(ctx context.Context, d Delivery) error

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger
}

// NewConsumer creates a durable queue bound to routingKey (a topic pattern
// such as "issue.#") with a matching dead letter queue.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(format string, err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf(format, err)
	}

	if err := DeclareTopology(ch); err != nil {
		return fail("%w", err)
	}
	if _, err := DeclareDLQQueue(ch, queueName, routingKey); err != nil {
		return fail("%w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fail("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return fail("failed to bind queue: %w", err)
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return fail("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Queue() string {
	return c.queue.Name
}

// IsConnected reports whether both the connection and channel are open.
func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is cancelled or the broker closes the
// delivery channel. Every message is acked or nacked exactly once.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"",    // consumer tag generated by the server
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopping", zap.String("queue", c.queue.Name))
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel closed for queue %s", c.queue.Name)
			}
			c.dispatch(ctx, msg)
		}
	}
}

// dispatch acks or nacks every message exactly once.
func (c *Consumer) dispatch(ctx context.Context, msg amqp091.Delivery) {
	start := time.Now()
	d := Delivery{
		Queue:      c.queue.Name,
		RoutingKey: msg.RoutingKey,
		MessageID:  msg.MessageId,
		Body:       msg.Body,
		Headers:    msg.Headers,
	}

	ctx = otel.ExtractMQHeaders(ctx, msg.Headers)
	if traceID, ok := msg.Headers[trace.HeaderName].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, span := otel.MQConsumeSpan(ctx, msg.RoutingKey, c.queue.Name)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
	)
	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	defer func() {
		metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, time.Since(start))
	}()

	// a panicking handler still nacks its message
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			metrics.IncrementMQConsumed(c.queue.Name, "requeue")
			if err := msg.Nack(false, true); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	if err := c.handler(ctx, d); err != nil {
		log.Error("Handler error", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncrementMQConsumed(c.queue.Name, "requeue")
		// handler failure: nack and requeue so the broker redelivers
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	metrics.IncrementMQConsumed(c.queue.Name, "ack")
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
		return
	}
	log.Debug("Message processed successfully")
}
