package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scrumboard/internal/ordering"
	"scrumboard/internal/service/board"
	"scrumboard/internal/service/issue"
	"scrumboard/internal/service/organization"
	"scrumboard/internal/service/project"
	"scrumboard/internal/service/sprint"
	"scrumboard/internal/service/status"
	"scrumboard/pkg/logger"
	"scrumboard/pkg/outbox"
	"scrumboard/pkg/rbac"
)

var errorStatus = []struct {
	code int
	errs []error
}{
	{http.StatusBadRequest, []error{
		board.ErrInvalidSprintID, board.ErrUnknownStatus, board.ErrEmptyBatch,
		ordering.ErrIndexOutOfRange, ordering.ErrUnknownItem, ordering.ErrUnknownBucket,
		ordering.ErrDuplicateItem, ordering.ErrDuplicatePosition, ordering.ErrNegativeOrder, ordering.ErrNotDense,
		issue.ErrInvalidIssueID, issue.ErrInvalidProjectID, issue.ErrInvalidSprintID,
		issue.ErrEmptyTitle, issue.ErrInvalidPriority, issue.ErrNothingToUpdate,
		issue.ErrUnknownStatus, issue.ErrAssigneeNotMember,
		organization.ErrMissingUser, organization.ErrUnknownRole,
		project.ErrInvalidProjectID, project.ErrEmptyName, project.ErrNameTooLong,
		project.ErrKeyTooShort, project.ErrKeyTooLong, project.ErrDescriptionTooLong,
		sprint.ErrInvalidSprintID, sprint.ErrInvalidProjectID, sprint.ErrEmptyName,
		sprint.ErrNameTooLong, sprint.ErrMissingDates, sprint.ErrEndBeforeStart, sprint.ErrInvalidStatus,
		status.ErrInvalidStatusID, status.ErrEmptyName, status.ErrEmptyKey, status.ErrTooLong,
		status.ErrNothingToUpdate,
	}},
	{http.StatusForbidden, []error{
		organization.ErrMissingOrganization, issue.ErrNotReporterOrAdmin,
	}},
	{http.StatusNotFound, []error{
		board.ErrSprintNotFound, board.ErrIssueNotFound,
		issue.ErrProjectNotFound, issue.ErrSprintNotFound, issue.ErrIssueNotFound,
		organization.ErrNotFound, organization.ErrUserNotFound,
		project.ErrProjectNotFound,
		sprint.ErrProjectNotFound, sprint.ErrSprintNotFound,
		status.ErrStatusNotFound,
		outbox.ErrEventNotFound,
	}},
	{http.StatusConflict, []error{
		board.ErrSprintNotStarted, board.ErrSprintCompleted, board.ErrOrderConflict,
		project.ErrDuplicateKey,
		sprint.ErrOutsideDateRange, sprint.ErrNotActive,
		status.ErrDuplicateKey, status.ErrStatusInUse,
	}},
}

// StatusFor maps a service error to its HTTP status code.
func StatusFor(err error) int {
	var denied *rbac.PermissionDeniedError
	if errors.As(err, &denied) {
		return http.StatusForbidden
	}
	for _, group := range errorStatus {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.code
			}
		}
	}
	return http.StatusInternalServerError
}

// respondError writes the mapped status. Server errors are logged and their
// details withheld.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.JSON(code, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
