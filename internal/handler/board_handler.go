package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/internal/ordering"
	"scrumboard/internal/service/board"
)

type BoardHandler struct {
	service board.Service
	logger  *zap.Logger
}

func NewBoardHandler(service board.Service, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{service: service, logger: logger}
}

type boardPosition struct {
	StatusID string `json:"status_id" binding:"required"`
	Index    *int   `json:"index" binding:"required"`
}

type moveRequest struct {
	From boardPosition `json:"from"`
	To   boardPosition `json:"to"`
}

type applyRequest struct {
	Items []model.Placement `json:"items" binding:"required"`
}

// Move handles POST /sprints/:id/board/move
// Body: {"from": {"status_id": "...", "index": 1}, "to": {"status_id": "...", "index": 0}}
func (h *BoardHandler) Move(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	res, err := h.service.Move(c.Request.Context(), p, board.MoveRequest{
		SprintID: c.Param("id"),
		From:     ordering.Position{Bucket: req.From.StatusID, Index: *req.From.Index},
		To:       ordering.Position{Bucket: req.To.StatusID, Index: *req.To.Index},
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Apply handles PUT /sprints/:id/board/order
// Body: {"items": [{"id": "...", "status_id": "...", "order": 0}, ...]}
func (h *BoardHandler) Apply(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	res, err := h.service.Apply(c.Request.Context(), p, board.ApplyRequest{
		SprintID: c.Param("id"),
		Items:    req.Items,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
