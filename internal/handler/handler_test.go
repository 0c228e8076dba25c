package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/internal/ordering"
	"scrumboard/internal/service/board"
	"scrumboard/internal/service/status"
	"scrumboard/pkg/outbox"
	"scrumboard/pkg/rbac"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testPrincipal = rbac.Principal{UserID: "user_1", OrganizationID: "org_1", Role: rbac.RoleMember}

type fakeBoard struct {
	move    board.MoveRequest
	apply   board.ApplyRequest
	actor   rbac.Principal
	result  *board.Result
	err     error
	invoked bool
}

func (f *fakeBoard) Move(_ context.Context, actor rbac.Principal, req board.MoveRequest) (*board.Result, error) {
	f.invoked, f.actor, f.move = true, actor, req
	return f.result, f.err
}

func (f *fakeBoard) Apply(_ context.Context, actor rbac.Principal, req board.ApplyRequest) (*board.Result, error) {
	f.invoked, f.actor, f.apply = true, actor, req
	return f.result, f.err
}

func (f *fakeBoard) Normalize(context.Context, string) (*board.Result, error) {
	return f.result, f.err
}

func (f *fakeBoard) Check(context.Context, string) ([]ordering.Violation, error) {
	return nil, f.err
}

type fakeStatuses struct {
	statuses []model.Status
	err      error
}

func (f *fakeStatuses) List(context.Context, string) ([]model.Status, error) {
	return f.statuses, f.err
}

func (f *fakeStatuses) Create(_ context.Context, orgID, name, key string) (*model.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Status{ID: "s-new", OrganizationID: orgID, Name: name, Key: key}, nil
}

func (f *fakeStatuses) Update(context.Context, string, string, *string, *string) (*model.Status, error) {
	return nil, f.err
}

func (f *fakeStatuses) Delete(context.Context, string, string) error {
	return f.err
}

type fakeReplayer struct {
	replayed int64
	err      error
}

func (f *fakeReplayer) ReplayEvent(_ context.Context, id int64) error {
	f.replayed = id
	return f.err
}

func (f *fakeReplayer) ReplayFailedEvents(_ context.Context, limit int) (int, error) {
	return limit / 2, f.err
}

// newTestRouter mounts register under an auth stub that sets testPrincipal
// unless anonymous is true.
func newTestRouter(anonymous bool, register func(r gin.IRouter)) *gin.Engine {
	r := gin.New()
	g := r.Group("/", func(c *gin.Context) {
		if !anonymous {
			SetPrincipal(c, testPrincipal)
		}
		c.Next()
	})
	register(g)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", board.ErrUnknownStatus, http.StatusBadRequest},
		{"ordering", fmt.Errorf("move: %w", ordering.ErrIndexOutOfRange), http.StatusBadRequest},
		{"not dense", fmt.Errorf("apply: %w", ordering.ErrNotDense), http.StatusBadRequest},
		{"not found", board.ErrSprintNotFound, http.StatusNotFound},
		{"policy", board.ErrSprintNotStarted, http.StatusConflict},
		{"completed", board.ErrSprintCompleted, http.StatusConflict},
		{"in use", status.ErrStatusInUse, http.StatusConflict},
		{"outbox", outbox.ErrEventNotFound, http.StatusNotFound},
		{"permission", &rbac.PermissionDeniedError{Role: rbac.RoleMember, Permission: rbac.PermissionManageStatus}, http.StatusForbidden},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestBoardHandler_Move(t *testing.T) {
	svc := &fakeBoard{result: &board.Result{Changed: []model.Placement{
		{IssueID: "b", StatusID: "todo", Order: 0},
	}}}
	h := NewBoardHandler(svc, zap.NewNop())
	r := newTestRouter(false, func(g gin.IRouter) { g.POST("/sprints/:id/board/move", h.Move) })

	w := do(t, r, http.MethodPost, "/sprints/sp-1/board/move",
		`{"from":{"status_id":"todo","index":0},"to":{"status_id":"done","index":2}}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, testPrincipal, svc.actor)
	assert.Equal(t, board.MoveRequest{
		SprintID: "sp-1",
		From:     ordering.Position{Bucket: "todo", Index: 0},
		To:       ordering.Position{Bucket: "done", Index: 2},
	}, svc.move)

	changed := decode(t, w)["changed"].([]any)
	require.Len(t, changed, 1)
	assert.Equal(t, "b", changed[0].(map[string]any)["id"])
}

func TestBoardHandler_MoveRequiresIndex(t *testing.T) {
	svc := &fakeBoard{}
	h := NewBoardHandler(svc, zap.NewNop())
	r := newTestRouter(false, func(g gin.IRouter) { g.POST("/sprints/:id/board/move", h.Move) })

	w := do(t, r, http.MethodPost, "/sprints/sp-1/board/move",
		`{"from":{"status_id":"todo"},"to":{"status_id":"done","index":0}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, svc.invoked)
}

func TestBoardHandler_MovePolicyRejection(t *testing.T) {
	h := NewBoardHandler(&fakeBoard{err: board.ErrSprintNotStarted}, zap.NewNop())
	r := newTestRouter(false, func(g gin.IRouter) { g.POST("/sprints/:id/board/move", h.Move) })

	w := do(t, r, http.MethodPost, "/sprints/sp-1/board/move",
		`{"from":{"status_id":"todo","index":0},"to":{"status_id":"todo","index":1}}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, board.ErrSprintNotStarted.Error(), decode(t, w)["error"])
}

func TestBoardHandler_Apply(t *testing.T) {
	svc := &fakeBoard{result: &board.Result{}}
	h := NewBoardHandler(svc, zap.NewNop())
	r := newTestRouter(false, func(g gin.IRouter) { g.PUT("/sprints/:id/board/order", h.Apply) })

	w := do(t, r, http.MethodPut, "/sprints/sp-1/board/order",
		`{"items":[{"id":"a","status_id":"todo","order":1},{"id":"b","status_id":"todo","order":0}]}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sp-1", svc.apply.SprintID)
	assert.Equal(t, []model.Placement{
		{IssueID: "a", StatusID: "todo", Order: 1},
		{IssueID: "b", StatusID: "todo", Order: 0},
	}, svc.apply.Items)
}

func TestBoardHandler_Unauthenticated(t *testing.T) {
	svc := &fakeBoard{}
	h := NewBoardHandler(svc, zap.NewNop())
	r := newTestRouter(true, func(g gin.IRouter) { g.PUT("/sprints/:id/board/order", h.Apply) })

	w := do(t, r, http.MethodPut, "/sprints/sp-1/board/order", `{"items":[]}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, svc.invoked)
}

func TestStatusHandler(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		h := NewStatusHandler(&fakeStatuses{}, zap.NewNop())
		r := newTestRouter(false, func(g gin.IRouter) { g.POST("/statuses", h.Create) })

		w := do(t, r, http.MethodPost, "/statuses", `{"name":"In Review","key":"in-review"}`)

		require.Equal(t, http.StatusCreated, w.Code)
		body := decode(t, w)
		assert.Equal(t, "org_1", body["organization_id"])
		assert.Equal(t, "in-review", body["key"])
	})

	t.Run("delete in use", func(t *testing.T) {
		h := NewStatusHandler(&fakeStatuses{err: status.ErrStatusInUse}, zap.NewNop())
		r := newTestRouter(false, func(g gin.IRouter) { g.DELETE("/statuses/:id", h.Delete) })

		w := do(t, r, http.MethodDelete, "/statuses/s-1", "")

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("internal errors are masked", func(t *testing.T) {
		h := NewStatusHandler(&fakeStatuses{err: errors.New("pool closed")}, zap.NewNop())
		r := newTestRouter(false, func(g gin.IRouter) { g.GET("/statuses", h.List) })

		w := do(t, r, http.MethodGet, "/statuses", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", decode(t, w)["error"])
	})
}

func TestAdminHandler(t *testing.T) {
	t.Run("replay", func(t *testing.T) {
		rp := &fakeReplayer{}
		h := NewAdminHandler(rp, zap.NewNop())
		r := newTestRouter(false, func(g gin.IRouter) { g.POST("/admin/outbox/replay", h.ReplayOutboxEvent) })

		w := do(t, r, http.MethodPost, "/admin/outbox/replay?id=42", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(42), rp.replayed)
	})

	t.Run("bad id", func(t *testing.T) {
		h := NewAdminHandler(&fakeReplayer{}, zap.NewNop())
		r := newTestRouter(false, func(g gin.IRouter) { g.POST("/admin/outbox/replay", h.ReplayOutboxEvent) })

		w := do(t, r, http.MethodPost, "/admin/outbox/replay?id=abc", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing event", func(t *testing.T) {
		h := NewAdminHandler(&fakeReplayer{err: outbox.ErrEventNotFound}, zap.NewNop())
		r := newTestRouter(false, func(g gin.IRouter) { g.POST("/admin/outbox/replay", h.ReplayOutboxEvent) })

		w := do(t, r, http.MethodPost, "/admin/outbox/replay?id=7", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("replay failed", func(t *testing.T) {
		h := NewAdminHandler(&fakeReplayer{}, zap.NewNop())
		r := newTestRouter(false, func(g gin.IRouter) { g.POST("/admin/outbox/replay-failed", h.ReplayFailedEvents) })

		w := do(t, r, http.MethodPost, "/admin/outbox/replay-failed?limit=10", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 5, decode(t, w)["success_count"])
	})
}
