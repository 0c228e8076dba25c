package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scrumboard/pkg/circuitbreaker"
	"scrumboard/pkg/metrics"
	"scrumboard/pkg/trace"
)

// Store 是 Dispatcher 需要的 Repository 方法
type Store interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int, cause string) (string, error)
}

// Publisher 由 *mq.Publisher 实现
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey, messageID string, body []byte) error
}

// Dispatcher 负责从 outbox 中读取事件并发布到 MQ
type Dispatcher struct {
	store      Store
	publisher  Publisher
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

// NewDispatcher 创建新的 Dispatcher
func NewDispatcher(store Store, publisher Publisher, logger *zap.Logger) *Dispatcher {
	cbCfg := circuitbreaker.DefaultConfig()
	cbCfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Outbox publisher circuit breaker changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		breaker:    circuitbreaker.NewCircuitBreaker(cbCfg),
		logger:     logger,
		maxRetries: 5,               // 默认最大重试5次
		interval:   1 * time.Second, // 默认每秒扫描一次
		batchSize:  100,             // 默认每次处理100个事件
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// WithCircuitBreaker 替换默认的发布熔断器
func (d *Dispatcher) WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) *Dispatcher {
	d.breaker = cb
	return d
}

// Start 运行 Dispatcher 直到 ctx 取消
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return nil
		case <-ticker.C:
			if _, err := d.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("Failed to process pending events", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 发布一批到期事件，返回成功发送的数量
func (d *Dispatcher) ProcessOnce(ctx context.Context) (int, error) {
	events, err := d.store.GetPendingEvents(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	sent := 0
	for _, event := range events {
		err := d.breaker.Execute(ctx, func(ctx context.Context) error {
			return d.publishEvent(ctx, event)
		})

		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			// 熔断期间不消耗重试次数，等待下一轮
			d.logger.Warn("Publisher circuit open, deferring remaining events",
				zap.Int("remaining", len(events)-sent),
			)
			return sent, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			d.handlePublishFailure(ctx, event, err)
			continue
		}

		if err := d.store.MarkAsSent(ctx, event.ID); err != nil {
			d.logger.Error("Failed to mark event as sent",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.IncrementOutboxPublished(StatusSent)
		sent++
		d.logger.Debug("Event published successfully",
			zap.Int64("event_id", event.ID),
			zap.String("routing_key", event.RoutingKey),
		)
	}

	return sent, nil
}

func (d *Dispatcher) handlePublishFailure(ctx context.Context, event *Event, cause error) {
	d.logger.Error("Failed to publish event",
		zap.Int64("event_id", event.ID),
		zap.String("routing_key", event.RoutingKey),
		zap.Int("retry_count", event.RetryCount),
		zap.Error(cause),
	)

	status, err := d.store.MarkAsFailed(ctx, event.ID, d.maxRetries, cause.Error())
	if err != nil {
		d.logger.Error("Failed to mark event as failed",
			zap.Int64("event_id", event.ID),
			zap.Error(err),
		)
		return
	}
	if status == StatusFailed {
		metrics.IncrementOutboxPublished(StatusFailed)
		d.logger.Warn("Outbox event exhausted retries",
			zap.Int64("event_id", event.ID),
			zap.String("routing_key", event.RoutingKey),
		)
		return
	}
	metrics.IncrementOutboxPublished("retry")
}

// publishEvent 发布单个事件到 MQ，payload 中的 trace_id 随消息头传播
func (d *Dispatcher) publishEvent(ctx context.Context, event *Event) error {
	return publish(ctx, d.publisher, event)
}

func publish(ctx context.Context, p Publisher, event *Event) error {
	fields := headerFields(event.Payload)
	if fields.TraceID != "" {
		ctx = trace.WithContext(ctx, fields.TraceID)
	}
	if err := p.PublishWithContext(ctx, event.RoutingKey, fields.EventID, event.Payload); err != nil {
		return fmt.Errorf("failed to publish to MQ: %w", err)
	}
	return nil
}
