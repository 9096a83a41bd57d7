package schedule

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Schedule entities.
// Every read and mutation is scoped to an owner; a foreign-owned ID must behave
// exactly like a missing one.
type Repository interface {
	Add(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, ownerID, id int64) (*Schedule, error)
	ListAll(ctx context.Context, ownerID int64) ([]*Schedule, error)
	ListByDate(ctx context.Context, ownerID int64, date string) ([]*Schedule, error)
	Delete(ctx context.Context, ownerID, id int64) error
	DeleteAll(ctx context.Context, ownerID int64) (int64, error)
	// ListOwners returns the distinct owners that have at least one schedule.
	// Used by the reminder engine's startup recovery pass.
	ListOwners(ctx context.Context) ([]int64, error)
}
