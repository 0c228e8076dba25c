package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"scrumboard/pkg/circuitbreaker"
	"scrumboard/pkg/trace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu      sync.Mutex
	pending []*Event
	byID    map[int64]*Event
	sent    []int64
	failed  map[int64]int
	getErr  error
}

func newFakeStore(events ...*Event) *fakeStore {
	s := &fakeStore{byID: map[int64]*Event{}, failed: map[int64]int{}}
	for _, e := range events {
		s.pending = append(s.pending, e)
		s.byID[e.ID] = e
	}
	return s
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []*Event
	for _, e := range s.pending {
		if e.Status == StatusPending && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, e := range s.pending {
		if e.Status == StatusFailed && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) GetEventByID(_ context.Context, id int64) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].Status = StatusSent
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, maxRetries int, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byID[id]
	e.RetryCount++
	s.failed[id]++
	if e.RetryCount >= maxRetries {
		e.Status = StatusFailed
	}
	return e.Status, nil
}

type published struct {
	routingKey string
	messageID  string
	traceID    string
	body       string
}

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []published
	errOn map[string]error
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, routingKey, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errOn[routingKey]; err != nil {
		return err
	}
	p.msgs = append(p.msgs, published{
		routingKey: routingKey,
		messageID:  messageID,
		traceID:    trace.FromContext(ctx),
		body:       string(body),
	})
	return nil
}

func event(id int64, routingKey string, payload map[string]any) *Event {
	body, _ := json.Marshal(payload)
	return &Event{ID: id, RoutingKey: routingKey, Payload: body, Status: StatusPending}
}

func TestDispatcher_PublishesAndMarksSent(t *testing.T) {
	store := newFakeStore(
		event(1, "issue.created", map[string]any{"event_id": "e-1", "trace_id": "t-1"}),
		event(2, "issue.reordered", map[string]any{"event_id": "e-2"}),
	)
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, zap.NewNop())

	sent, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2}, store.sent)
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, published{
		routingKey: "issue.created",
		messageID:  "e-1",
		traceID:    "t-1",
		body:       `{"event_id":"e-1","trace_id":"t-1"}`,
	}, pub.msgs[0])
	assert.Equal(t, "", pub.msgs[1].traceID)
}

func TestDispatcher_FailureSchedulesRetryThenFails(t *testing.T) {
	store := newFakeStore(event(1, "sprint.overdue", map[string]any{"event_id": "e-1"}))
	pub := &fakePublisher{errOn: map[string]error{"sprint.overdue": errors.New("channel closed")}}
	d := NewDispatcher(store, pub, zap.NewNop()).
		WithMaxRetries(2).
		WithCircuitBreaker(circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 100}))

	_, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, store.byID[1].Status)

	_, err = d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, store.byID[1].Status)
	assert.Equal(t, 2, store.failed[1])
	assert.Empty(t, store.sent)
}

func TestDispatcher_OpenBreakerDefersWithoutSpendingRetries(t *testing.T) {
	var events []*Event
	for i := int64(1); i <= 5; i++ {
		events = append(events, event(i, "issue.updated", map[string]any{}))
	}
	store := newFakeStore(events...)
	pub := &fakePublisher{errOn: map[string]error{"issue.updated": errors.New("broker down")}}
	d := NewDispatcher(store, pub, zap.NewNop()).
		WithCircuitBreaker(circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			FailureThreshold: 2,
			Timeout:          time.Hour,
		}))

	sent, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	assert.Equal(t, 1, store.failed[1])
	assert.Equal(t, 1, store.failed[2])
	assert.Zero(t, store.failed[3], "events after the breaker opens keep their retry budget")
	assert.Zero(t, store.failed[5])
}

func TestDispatcher_GetPendingError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("db down")
	d := NewDispatcher(store, &fakePublisher{}, zap.NewNop())

	_, err := d.ProcessOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestDispatcher_StartStopsOnCancel(t *testing.T) {
	store := newFakeStore(event(1, "issue.created", map[string]any{"event_id": "e-1"}))
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, zap.NewNop()).WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestReplayService(t *testing.T) {
	failed := event(7, "issue.deleted", map[string]any{"event_id": "e-7"})
	failed.Status = StatusFailed
	store := newFakeStore(failed, event(8, "issue.created", map[string]any{}))
	pub := &fakePublisher{}
	s := NewReplayService(store, pub, zap.NewNop())

	n, err := s.ReplayFailedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusSent, store.byID[7].Status)
	assert.Equal(t, "e-7", pub.msgs[0].messageID)

	err = s.ReplayEvent(context.Background(), 99)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestReplayService_PublishFailureMarksFailed(t *testing.T) {
	store := newFakeStore(event(3, "issue.created", map[string]any{}))
	pub := &fakePublisher{errOn: map[string]error{"issue.created": errors.New("nope")}}
	s := NewReplayService(store, pub, zap.NewNop())

	err := s.ReplayEvent(context.Background(), 3)
	assert.Error(t, err)
	assert.Equal(t, StatusFailed, store.byID[3].Status)
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent("issue", "i-1", "issue.created", map[string]string{"event_id": "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)
	assert.JSONEq(t, `{"event_id":"x"}`, string(e.Payload))

	_, err = NewEvent("issue", "i-1", "issue.created", func() {})
	assert.Error(t, err)
}
