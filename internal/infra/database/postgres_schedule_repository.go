package database

import (
	"context"
	"database/sql"
	"fmt"

	"schedule_secretary_bot/internal/domain/schedule"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors. A foreign-owned row deliberately surfaces as "not found" so
// existence never leaks across users.
var ErrScheduleNotFound = fmt.Errorf("schedule not found")

type PostgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

func (r *PostgresScheduleRepository) Add(ctx context.Context, s *schedule.Schedule) error {
	query := `INSERT INTO schedules (user_id, title, description, date, time)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, s.OwnerID, s.Title, s.Description, s.Date, s.Time).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating schedule: %w", err)
	}
	return nil
}

func (r *PostgresScheduleRepository) GetByID(ctx context.Context, ownerID, id int64) (*schedule.Schedule, error) {
	query := `SELECT id, user_id, title, description, date, time, created_at
               FROM schedules WHERE user_id = $1 AND id = $2`
	s := &schedule.Schedule{}
	err := r.db.QueryRowContext(ctx, query, ownerID, id).
		Scan(&s.ID, &s.OwnerID, &s.Title, &s.Description, &s.Date, &s.Time, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("error getting schedule by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresScheduleRepository) ListAll(ctx context.Context, ownerID int64) ([]*schedule.Schedule, error) {
	query := `SELECT id, user_id, title, description, date, time, created_at
               FROM schedules WHERE user_id = $1 ORDER BY date, time NULLS FIRST, id`
	return r.queryList(ctx, query, ownerID)
}

func (r *PostgresScheduleRepository) ListByDate(ctx context.Context, ownerID int64, date string) ([]*schedule.Schedule, error) {
	query := `SELECT id, user_id, title, description, date, time, created_at
               FROM schedules WHERE user_id = $1 AND date = $2 ORDER BY time NULLS FIRST, id`
	return r.queryList(ctx, query, ownerID, date)
}

func (r *PostgresScheduleRepository) queryList(ctx context.Context, query string, args ...any) ([]*schedule.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]*schedule.Schedule, 0)
	for rows.Next() {
		s := &schedule.Schedule{}
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Description, &s.Date, &s.Time, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return schedules, nil
}

func (r *PostgresScheduleRepository) Delete(ctx context.Context, ownerID, id int64) error {
	// Reminder rows referencing this schedule go with it via ON DELETE CASCADE.
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("error deleting schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted schedule rows: %w", err)
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *PostgresScheduleRepository) DeleteAll(ctx context.Context, ownerID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE user_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("error deleting all schedules: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking deleted schedule rows: %w", err)
	}
	return affected, nil
}

func (r *PostgresScheduleRepository) ListOwners(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM schedules ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("error listing schedule owners: %w", err)
	}
	defer rows.Close()

	owners := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning schedule owner: %w", err)
		}
		owners = append(owners, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule owners: %w", err)
	}
	return owners, nil
}
