package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "scrumboard/contracts/mq"
	"scrumboard/internal/model"
	"scrumboard/pkg/metrics"
	"scrumboard/pkg/outbox"
	"scrumboard/pkg/trace"
)

const overdueHandlerName = "sprint_overdue"

// overdueNamespace seeds the per-sprint, per-day event ids so a rescan on
// the same day produces the same event id.
var overdueNamespace = uuid.MustParse("5b0f6a1e-1d2c-4f0a-9c1b-7e3d2a4b6c8d")

type OverdueFinder interface {
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]model.SprintRef, error)
}

type EventEnqueuer interface {
	Enqueue(ctx context.Context, event *outbox.Event) error
}

type OnceGuard interface {
	AcquireOnce(ctx context.Context, handler, id string) bool
	Release(ctx context.Context, handler, id string)
}

// OverdueScanner emits sprint.overdue once per day for every ACTIVE sprint
// whose end date has passed.
type OverdueScanner struct {
	sprints OverdueFinder
	events  EventEnqueuer
	guard   OnceGuard
	loc     *time.Location
	limit   int
	now     func() time.Time
	logger  *zap.Logger
}

func NewOverdueScanner(sprints OverdueFinder, events EventEnqueuer, guard OnceGuard, loc *time.Location, limit int, logger *zap.Logger) *OverdueScanner {
	if loc == nil {
		loc = time.UTC
	}
	return &OverdueScanner{
		sprints: sprints,
		events:  events,
		guard:   guard,
		loc:     loc,
		limit:   limit,
		now:     time.Now,
		logger:  logger,
	}
}

// OverdueEventID is the event id used for sprintID on day (YYYY-MM-DD).
func OverdueEventID(sprintID, day string) string {
	return uuid.NewSHA1(overdueNamespace, []byte(sprintID+"/"+day)).String()
}

// Scan enqueues overdue events and returns how many were enqueued.
func (s *OverdueScanner) Scan(ctx context.Context) (int, error) {
	ctx, traceID := trace.Ensure(ctx)
	log := s.logger.With(zap.String("trace_id", traceID))

	now := s.now().In(s.loc)
	day := now.Format("2006-01-02")

	sprints, err := s.sprints.FindOverdue(ctx, now, s.limit)
	if err != nil {
		log.Error("Failed to find overdue sprints", zap.Error(err))
		return 0, err
	}

	enqueued := 0
	for i := range sprints {
		sp := &sprints[i]
		key := sp.ID + ":" + day
		if !s.guard.AcquireOnce(ctx, overdueHandlerName, key) {
			continue
		}

		if err := s.enqueue(ctx, sp, day, traceID); err != nil {
			s.guard.Release(ctx, overdueHandlerName, key)
			log.Error("Failed to enqueue overdue event",
				zap.String("sprint_id", sp.ID),
				zap.Error(err),
			)
			return enqueued, err
		}
		metrics.IncrementSprintOverdue()
		enqueued++
	}

	if enqueued > 0 {
		log.Info("Overdue sprints flagged",
			zap.Int("count", enqueued),
			zap.String("day", day),
		)
	}
	return enqueued, nil
}

func (s *OverdueScanner) enqueue(ctx context.Context, sp *model.SprintRef, day, traceID string) error {
	payload := mqcontracts.SprintOverduePayload{
		Envelope: mqcontracts.Envelope{
			EventID:        OverdueEventID(sp.ID, day),
			OrganizationID: sp.OrganizationID,
			OccurredAt:     s.now().UTC(),
			TraceID:        traceID,
		},
		SprintID:  sp.ID,
		ProjectID: sp.ProjectID,
		Name:      sp.Name,
		EndDate:   sp.EndDate,
		Day:       day,
	}
	event, err := outbox.NewEvent(mqcontracts.AggregateSprint, sp.ID, mqcontracts.RoutingSprintOverdue, payload)
	if err != nil {
		return err
	}
	return s.events.Enqueue(ctx, event)
}
