package mq

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"scrumboard/pkg/metrics"
)

// Board events travel on one durable topic exchange; routing keys are
// "<aggregate>.<verb>" (issue.created, sprint.overdue, ...).
const (
	ExchangeName = "board.events"
	ExchangeKind = amqp091.ExchangeTopic
)

// NewConnection creates a new RabbitMQ connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareTopology declares the board exchange and its dead letter exchange.
func DeclareTopology(ch *amqp091.Channel) error {
	for _, name := range []string{ExchangeName, DLQExchangeName} {
		if err := ch.ExchangeDeclare(name, ExchangeKind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// Connectivity is satisfied by Publisher and Consumer.
type Connectivity interface {
	IsConnected() bool
}

// WatchConnections polls conns every interval until ctx is done, logging
// when a connection drops or comes back and exporting mq_connection_up.
func WatchConnections(ctx context.Context, interval time.Duration, logger *zap.Logger, conns map[string]Connectivity) error {
	up := make(map[string]bool, len(conns))
	checkConnections(up, conns, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			checkConnections(up, conns, logger)
		}
	}
}

// checkConnections updates up in place. A name missing from up has not been
// checked yet and only logs when it starts out disconnected.
func checkConnections(up map[string]bool, conns map[string]Connectivity, logger *zap.Logger) {
	names := make([]string, 0, len(conns))
	for name := range conns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		now := conns[name].IsConnected()
		was, seen := up[name]
		up[name] = now
		metrics.SetMQConnectionUp(name, now)

		switch {
		case !now && (!seen || was):
			logger.Error("MQ connection lost", zap.String("connection", name))
		case now && seen && !was:
			logger.Info("MQ connection restored", zap.String("connection", name))
		}
	}
}
