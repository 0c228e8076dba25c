package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// DLQExchangeName receives messages a handler gave up on, under their
// original routing key.
const DLQExchangeName = ExchangeName + ".dlq"

// DLQQueueName returns the dead letter queue paired with queue.
func DLQQueueName(queue string) string {
	return fmt.Sprintf("%s.dlq", queue)
}

// DeclareDLQQueue declares the dead letter queue for queue and binds it to
// the DLQ exchange with the same pattern as the live queue.
func DeclareDLQQueue(ch *amqp091.Channel, queue, bindingKey string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		DLQQueueName(queue),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, bindingKey, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	return q, nil
}

// PublishToDLQ publishes a message to the dead letter exchange, recording
// why and where it failed in the headers.
func (p *Publisher) PublishToDLQ(ctx context.Context, d Delivery, originalError string) error {
	extra := amqp091.Table{
		"x-original-error":   originalError,
		"x-failed-queue":     d.Queue,
		"x-original-routing": d.RoutingKey,
	}
	return p.publish(ctx, DLQExchangeName, d.RoutingKey, buildPublishing(ctx, d.MessageID, d.Body, extra))
}
