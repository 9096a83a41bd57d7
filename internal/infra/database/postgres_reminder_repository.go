package database

import (
	"context"
	"database/sql"
	"fmt"

	"schedule_secretary_bot/internal/domain/reminder"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var ErrReminderNotFound = fmt.Errorf("reminder not found")

type PostgresReminderRepository struct {
	db *sql.DB
}

func NewPostgresReminderRepository(db *sql.DB) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db}
}

func (r *PostgresReminderRepository) Add(ctx context.Context, rule *reminder.Rule) error {
	query := `INSERT INTO reminders (user_id, schedule_id, offset_minutes)
               VALUES ($1, $2, $3)
               RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, rule.OwnerID, rule.ScheduleID, rule.OffsetMinutes).
		Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating reminder: %w", err)
	}
	return nil
}

func (r *PostgresReminderRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*reminder.Rule, error) {
	query := `SELECT id, user_id, schedule_id, offset_minutes, created_at
               FROM reminders WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing reminders: %w", err)
	}
	defer rows.Close()

	rules := make([]*reminder.Rule, 0)
	for rows.Next() {
		rule := &reminder.Rule{}
		if err := rows.Scan(&rule.ID, &rule.OwnerID, &rule.ScheduleID, &rule.OffsetMinutes, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning reminder: %w", err)
		}
		rules = append(rules, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}
	return rules, nil
}

func (r *PostgresReminderRepository) ListDetailed(ctx context.Context, ownerID int64) ([]*reminder.DetailedRule, error) {
	query := `SELECT r.id, r.user_id, r.schedule_id, r.offset_minutes, r.created_at,
                      s.title, s.description, s.date, s.time
               FROM reminders r
               JOIN schedules s ON s.id = r.schedule_id
               WHERE r.user_id = $1
               ORDER BY s.date ASC, s.time ASC NULLS FIRST, r.offset_minutes ASC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing detailed reminders: %w", err)
	}
	defer rows.Close()

	detailed := make([]*reminder.DetailedRule, 0)
	for rows.Next() {
		d := &reminder.DetailedRule{}
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.ScheduleID, &d.OffsetMinutes, &d.CreatedAt,
			&d.Title, &d.Description, &d.Date, &d.Time); err != nil {
			return nil, fmt.Errorf("error scanning detailed reminder: %w", err)
		}
		detailed = append(detailed, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detailed reminders: %w", err)
	}
	return detailed, nil
}

func (r *PostgresReminderRepository) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("error deleting reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted reminder rows: %w", err)
	}
	if affected == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (r *PostgresReminderRepository) DeleteForSchedule(ctx context.Context, ownerID, scheduleID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE user_id = $1 AND schedule_id = $2`, ownerID, scheduleID)
	if err != nil {
		return fmt.Errorf("error deleting reminders for schedule: %w", err)
	}
	return nil
}
