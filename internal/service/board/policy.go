package board

import "scrumboard/internal/model"

// CheckReorderable rejects reordering on sprints that are not ACTIVE.
func CheckReorderable(status model.SprintStatus) error {
	switch status {
	case model.SprintPlanned:
		return ErrSprintNotStarted
	case model.SprintCompleted:
		return ErrSprintCompleted
	}
	return nil
}
