package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "scrumboard/contracts/mq"
	"scrumboard/internal/model"
	"scrumboard/pkg/logger"
	"scrumboard/pkg/mq"
	"scrumboard/pkg/util"
)

// 写入 activity_log 的队列及其绑定的 topic 模式
const (
	IssueActivityQueue   = "activity.issue.q"
	IssueActivityBinding = "issue.#"

	SprintActivityQueue   = "activity.sprint.q"
	SprintActivityBinding = "sprint.#"
)

const (
	activityHandlerName = "activity"
	maxRetries          = 5 // 最大重试次数
)

type ActivityStore interface {
	InsertActivity(ctx context.Context, a *model.Activity) (bool, error)
}

type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, d mq.Delivery, originalError string) error
}

type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type OnceGuard interface {
	AcquireOnce(ctx context.Context, handler, id string) bool
	Release(ctx context.Context, handler, id string)
}

// ActivityHandler 将看板事件写入 activity_log
type ActivityHandler struct {
	store   ActivityStore
	dlq     DeadLetterPublisher
	retries RetryTracker
	deduper OnceGuard
	logger  *zap.Logger
}

func NewActivityHandler(store ActivityStore, dlq DeadLetterPublisher, retries RetryTracker, deduper OnceGuard, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		store:   store,
		dlq:     dlq,
		retries: retries,
		deduper: deduper,
		logger:  logger,
	}
}

// Handle 实现 mq.MessageHandler
// 只有可重试且未超过 maxRetries 的错误才返回 error（消息重新入队），
// 其余情况一律 ack，无法记录的消息发送到 DLQ
func (h *ActivityHandler) Handle(ctx context.Context, d mq.Delivery) error {
	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("routing_key", d.RoutingKey),
		zap.String("message_id", d.MessageID),
	)

	activity, err := BuildActivity(d.RoutingKey, d.Body)
	if err != nil {
		// 不可重试，发送到 DLQ
		log.Error("Failed to decode event (non-retryable, sending to DLQ)", zap.Error(err))
		h.deadLetter(ctx, log, d, err)
		return nil
	}
	log = log.With(zap.String("event_id", activity.EventID))

	// Redis 去重：避免同一事件并发处理
	if !h.deduper.AcquireOnce(ctx, activityHandlerName, activity.EventID) {
		log.Debug("Skipped duplicated event")
		return nil
	}

	inserted, err := h.store.InsertActivity(ctx, activity)
	if err != nil {
		h.deduper.Release(ctx, activityHandlerName, activity.EventID)
		return h.handleStoreError(ctx, log, d, activity.EventID, err)
	}

	// 之前失败过的事件：记录重试次数后清零
	retryKey := util.FormatRetryKey(activityHandlerName, activity.EventID)
	attempts, err := h.retries.Get(ctx, retryKey)
	if err != nil {
		log.Warn("Failed to get retry count", zap.Error(err))
	}
	if attempts > 0 {
		log.Info("Activity recorded after retries", zap.Int64("retry_count", attempts))
	}
	if err := h.retries.Reset(ctx, retryKey); err != nil {
		log.Warn("Failed to reset retry count", zap.Error(err))
	}

	if !inserted {
		log.Debug("Activity already recorded")
		return nil
	}
	log.Info("Activity recorded",
		zap.String("kind", activity.Kind),
		zap.String("organization_id", activity.OrganizationID),
	)
	return nil
}

func (h *ActivityHandler) handleStoreError(ctx context.Context, log *zap.Logger, d mq.Delivery, eventID string, err error) error {
	isRetryable, errType := util.IsRetryableError(err)
	log = log.With(zap.String("error_type", errType), zap.Bool("retryable", isRetryable))

	if !isRetryable {
		log.Error("Failed to record activity, sending to DLQ", zap.Error(err))
		h.deadLetter(ctx, log, d, err)
		return nil
	}

	retryKey := util.FormatRetryKey(activityHandlerName, eventID)
	retryCount, rerr := h.retries.IncrementAndGet(ctx, retryKey)
	if rerr != nil {
		// Redis 错误不影响处理，按第一次处理
		log.Warn("Failed to get retry count, continuing anyway", zap.Error(rerr))
		retryCount = 1
	}

	if util.ShouldRetry(retryCount, maxRetries, isRetryable) {
		log.Warn("Failed to record activity, will retry",
			zap.Int64("retry_count", retryCount),
			zap.Error(err),
		)
		return err
	}

	log.Error("Max retries exceeded, sending to DLQ",
		zap.Int64("retry_count", retryCount),
		zap.Error(err),
	)
	h.deadLetter(ctx, log, d, err)
	if err := h.retries.Reset(ctx, retryKey); err != nil {
		log.Warn("Failed to reset retry count", zap.Error(err))
	}
	return nil
}

func (h *ActivityHandler) deadLetter(ctx context.Context, log *zap.Logger, d mq.Delivery, cause error) {
	if err := h.dlq.PublishToDLQ(ctx, d, cause.Error()); err != nil {
		log.Error("Failed to publish to DLQ", zap.Error(err))
	}
}

// BuildActivity 将事件 body 解码为对应的 activity 记录
func BuildActivity(routingKey string, body json.RawMessage) (*model.Activity, error) {
	var env mqcontracts.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		return nil, fmt.Errorf("%w: event_id %q", util.ErrNonRetryable, env.EventID)
	}
	if env.OrganizationID == "" {
		return nil, fmt.Errorf("%w: missing organization_id", util.ErrNonRetryable)
	}

	a := &model.Activity{
		EventID:        env.EventID,
		OrganizationID: env.OrganizationID,
		Kind:           routingKey,
		ActorID:        env.ActorID,
		OccurredAt:     env.OccurredAt,
	}

	switch routingKey {
	case mqcontracts.RoutingIssueCreated:
		var p mqcontracts.IssueCreatedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		a.ProjectID, a.SprintID, a.IssueID = optional(p.ProjectID), optional(p.SprintID), optional(p.IssueID)
		a.Message = fmt.Sprintf("created issue %q", p.Title)

	case mqcontracts.RoutingIssueUpdated:
		var p mqcontracts.IssueUpdatedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		a.ProjectID, a.SprintID, a.IssueID = optional(p.ProjectID), optional(p.SprintID), optional(p.IssueID)
		switch {
		case p.FromStatusID != "" && p.FromStatusID != p.StatusID:
			a.Message = fmt.Sprintf("moved %q to another column", p.Title)
		case p.FromPriority != "" && p.FromPriority != p.Priority:
			a.Message = fmt.Sprintf("changed priority of %q from %s to %s", p.Title, p.FromPriority, p.Priority)
		default:
			a.Message = fmt.Sprintf("updated %q", p.Title)
		}

	case mqcontracts.RoutingIssueDeleted:
		var p mqcontracts.IssueDeletedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		// issue 已删除，不保留 issue_id，避免动态流链接到不存在的记录
		a.ProjectID, a.SprintID = optional(p.ProjectID), optional(p.SprintID)
		a.Message = fmt.Sprintf("deleted issue %q", p.Title)

	case mqcontracts.RoutingIssueReordered:
		var p mqcontracts.IssueReorderedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		a.ProjectID, a.SprintID, a.IssueID = optional(p.ProjectID), optional(p.SprintID), optional(p.IssueID)
		if len(p.Changed) == 1 {
			a.Message = "reordered 1 issue"
		} else {
			a.Message = fmt.Sprintf("reordered %d issues", len(p.Changed))
		}

	case mqcontracts.RoutingSprintCreated:
		var p mqcontracts.SprintCreatedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		a.ProjectID, a.SprintID = optional(p.ProjectID), optional(p.SprintID)
		a.Message = fmt.Sprintf("created sprint %q (%s to %s)", p.Name,
			p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))

	case mqcontracts.RoutingSprintStatusChanged:
		var p mqcontracts.SprintStatusChangedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		a.ProjectID, a.SprintID = optional(p.ProjectID), optional(p.SprintID)
		a.Message = fmt.Sprintf("changed sprint %q from %s to %s", p.Name, p.From, p.To)

	case mqcontracts.RoutingSprintOverdue:
		var p mqcontracts.SprintOverduePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		a.ProjectID, a.SprintID = optional(p.ProjectID), optional(p.SprintID)
		a.Message = fmt.Sprintf("sprint %q is still active after its end date %s", p.Name,
			p.EndDate.Format("2006-01-02"))

	default:
		return nil, fmt.Errorf("%w: unknown routing key %q", util.ErrNonRetryable, routingKey)
	}
	return a, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
