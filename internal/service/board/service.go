package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	contracts "scrumboard/contracts/mq"
	"scrumboard/internal/model"
	"scrumboard/internal/ordering"
	"scrumboard/internal/repository"
	"scrumboard/pkg/logger"
	"scrumboard/pkg/metrics"
	"scrumboard/pkg/outbox"
	"scrumboard/pkg/rbac"
)

const (
	KindMove      = "move"
	KindApply     = "apply"
	KindNormalize = "normalize"
)

// Store persists placements of a sprint's issues.
type Store interface {
	Reorder(ctx context.Context, sprintID string, plan repository.ReorderPlan) ([]model.Placement, error)
	Placements(ctx context.Context, sprintID string) ([]model.Placement, error)
}

// StatusLister lists the organization's board columns.
type StatusLister interface {
	ListByOrganization(ctx context.Context, orgID string) ([]model.Status, error)
}

// Service defines board reordering operations
type Service interface {
	// Move relocates the issue at From to To and renumbers the affected buckets.
	Move(ctx context.Context, actor rbac.Principal, req MoveRequest) (*Result, error)
	// Apply stores caller-computed placements after validating them.
	Apply(ctx context.Context, actor rbac.Principal, req ApplyRequest) (*Result, error)
	// Normalize closes gaps left by deletes and status edits.
	Normalize(ctx context.Context, sprintID string) (*Result, error)
	// Check lists buckets whose orders are not 0..n-1.
	Check(ctx context.Context, sprintID string) ([]ordering.Violation, error)
}

// MoveRequest addresses positions by status id and index in the status's
// sorted list of issues.
type MoveRequest struct {
	SprintID string
	From     ordering.Position
	To       ordering.Position
}

// ApplyRequest carries the post-move state of the affected issues.
type ApplyRequest struct {
	SprintID string
	Items    []model.Placement
}

type Result struct {
	Changed []model.Placement `json:"changed"`
}

type service struct {
	store    Store
	statuses StatusLister
	logger   *zap.Logger
}

func NewService(store Store, statuses StatusLister, logger *zap.Logger) Service {
	return &service{store: store, statuses: statuses, logger: logger}
}

func (s *service) Move(ctx context.Context, actor rbac.Principal, req MoveRequest) (*Result, error) {
	if err := validateSprintID(req.SprintID); err != nil {
		return nil, err
	}
	valid, err := s.statusSet(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	for _, b := range []string{req.From.Bucket, req.To.Bucket} {
		if _, ok := valid[b]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, b)
		}
	}

	var moved string
	changed, err := s.store.Reorder(ctx, req.SprintID, func(sprint *model.SprintRef, current []model.Placement) ([]model.Placement, *outbox.Event, error) {
		if err := authorize(actor, sprint); err != nil {
			return nil, nil, err
		}
		items := toItems(current)
		res, err := ordering.Move(items, req.From, req.To)
		if err != nil {
			return nil, nil, err
		}
		moved = ordering.Bucket(items, req.From.Bucket)[req.From.Index].ID
		return s.plan(ctx, actor, sprint, KindMove, moved, res.Changed)
	})
	return s.finish(ctx, KindMove, req.SprintID, changed, err)
}

func (s *service) Apply(ctx context.Context, actor rbac.Principal, req ApplyRequest) (*Result, error) {
	if err := validateSprintID(req.SprintID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyBatch
	}
	valid, err := s.statusSet(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}

	changed, err := s.store.Reorder(ctx, req.SprintID, func(sprint *model.SprintRef, current []model.Placement) ([]model.Placement, *outbox.Event, error) {
		if err := authorize(actor, sprint); err != nil {
			return nil, nil, err
		}
		res, err := ordering.Apply(toItems(current), toItems(req.Items), func(b string) bool {
			_, ok := valid[b]
			return ok
		})
		if err != nil {
			return nil, nil, err
		}
		return s.plan(ctx, actor, sprint, KindApply, "", res.Changed)
	})
	return s.finish(ctx, KindApply, req.SprintID, changed, err)
}

func (s *service) Normalize(ctx context.Context, sprintID string) (*Result, error) {
	if err := validateSprintID(sprintID); err != nil {
		return nil, err
	}
	changed, err := s.store.Reorder(ctx, sprintID, func(sprint *model.SprintRef, current []model.Placement) ([]model.Placement, *outbox.Event, error) {
		res := ordering.Normalize(toItems(current))
		system := rbac.Principal{OrganizationID: sprint.OrganizationID}
		return s.plan(ctx, system, sprint, KindNormalize, "", res.Changed)
	})
	return s.finish(ctx, KindNormalize, sprintID, changed, err)
}

func (s *service) Check(ctx context.Context, sprintID string) ([]ordering.Violation, error) {
	if err := validateSprintID(sprintID); err != nil {
		return nil, err
	}
	current, err := s.store.Placements(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	return ordering.Check(toItems(current)), nil
}

// plan turns the changed items into placements and the reorder event.
func (s *service) plan(ctx context.Context, actor rbac.Principal, sprint *model.SprintRef, kind, issueID string, changed []ordering.Item) ([]model.Placement, *outbox.Event, error) {
	if len(changed) == 0 {
		return nil, nil, nil
	}
	placements := toPlacements(changed)

	payload := contracts.IssueReorderedPayload{
		Envelope:  contracts.NewEnvelope(ctx, sprint.OrganizationID, actor.UserID),
		ProjectID: sprint.ProjectID,
		SprintID:  sprint.ID,
		Kind:      kind,
		IssueID:   issueID,
		Changed:   make([]contracts.ReorderedIssue, len(placements)),
	}
	for i, p := range placements {
		payload.Changed[i] = contracts.ReorderedIssue{IssueID: p.IssueID, StatusID: p.StatusID, Order: p.Order}
	}

	event, err := outbox.NewEvent(contracts.AggregateSprint, sprint.ID, contracts.RoutingIssueReordered, payload)
	if err != nil {
		return nil, nil, err
	}
	return placements, event, nil
}

func (s *service) finish(ctx context.Context, kind, sprintID string, changed []model.Placement, err error) (*Result, error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.String("kind", kind), zap.String("sprint_id", sprintID))

	if err != nil {
		err = mapStoreError(err)
		result := "error"
		if isRejection(err) {
			result = "rejected"
			log.Info("board reorder rejected", zap.Error(err))
		} else {
			log.Error("board reorder failed", zap.Error(err))
		}
		metrics.RecordBoardReorder(kind, result, 0)
		return nil, err
	}

	result := "ok"
	if len(changed) == 0 {
		result = "noop"
		changed = []model.Placement{}
	}
	metrics.RecordBoardReorder(kind, result, len(changed))
	log.Info("board reordered", zap.Int("changed", len(changed)))
	return &Result{Changed: changed}, nil
}

func (s *service) statusSet(ctx context.Context, orgID string) (map[string]struct{}, error) {
	statuses, err := s.statuses.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	set := make(map[string]struct{}, len(statuses))
	for _, st := range statuses {
		set[st.ID] = struct{}{}
	}
	return set, nil
}

func authorize(actor rbac.Principal, sprint *model.SprintRef) error {
	if sprint.OrganizationID != actor.OrganizationID {
		return ErrSprintNotFound
	}
	return CheckReorderable(sprint.Status)
}

func validateSprintID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidSprintID
	}
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrSprintNotFound
	case errors.Is(err, repository.ErrStaleIssue):
		return fmt.Errorf("%w: %v", ErrIssueNotFound, err)
	case errors.Is(err, repository.ErrOrderConflict):
		return ErrOrderConflict
	}
	return err
}

func isRejection(err error) bool {
	for _, target := range []error{
		ErrSprintNotFound, ErrSprintNotStarted, ErrSprintCompleted, ErrUnknownStatus,
		ordering.ErrIndexOutOfRange, ordering.ErrUnknownItem, ordering.ErrUnknownBucket,
		ordering.ErrDuplicateItem, ordering.ErrDuplicatePosition, ordering.ErrNegativeOrder, ordering.ErrNotDense,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func toItems(placements []model.Placement) []ordering.Item {
	items := make([]ordering.Item, len(placements))
	for i, p := range placements {
		items[i] = ordering.Item{ID: p.IssueID, Bucket: p.StatusID, Order: p.Order}
	}
	return items
}

func toPlacements(items []ordering.Item) []model.Placement {
	out := make([]model.Placement, len(items))
	for i, it := range items {
		out[i] = model.Placement{IssueID: it.ID, StatusID: it.Bucket, Order: it.Order}
	}
	return out
}
