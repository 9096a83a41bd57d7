package reminder

import (
	"context"
)

// Repository defines the operations for persisting reminder rules.
// Rules are weak references to schedules: deleting a schedule must take its
// rules with it, and a rule whose schedule is gone is an orphan to be purged.
type Repository interface {
	Add(ctx context.Context, r *Rule) error
	ListByOwner(ctx context.Context, ownerID int64) ([]*Rule, error)
	ListDetailed(ctx context.Context, ownerID int64) ([]*DetailedRule, error)
	Delete(ctx context.Context, ownerID, id int64) error
	DeleteForSchedule(ctx context.Context, ownerID, scheduleID int64) error
}
