package repository

import (
	"context"

	"scrumboard/pkg/db"
	"scrumboard/pkg/outbox"
)

// EventFunc builds the outbox event written in the same transaction as the
// row it describes. A nil func or a nil event records nothing.
type EventFunc[T any] func(v *T) (*outbox.Event, error)

func recordEvent[T any](ctx context.Context, q db.Querier, fn EventFunc[T], v *T) error {
	if fn == nil {
		return nil
	}
	event, err := fn(v)
	if err != nil || event == nil {
		return err
	}
	return outbox.InsertEvent(ctx, q, event)
}
