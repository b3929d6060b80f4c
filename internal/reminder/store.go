package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
)

// Store keeps reminders in the local database (see localdb.Open).
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated local database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const columns = `id, medication_id, time_of_day, enabled, snoozed_until`

// Add creates an enabled reminder for medicationID at clock ("HH:MM").
func (s *Store) Add(ctx context.Context, medicationID, clock string) (model.Reminder, error) {
	if medicationID == "" {
		return model.Reminder{}, fmt.Errorf("%w: medication id is required", errs.ErrValidation)
	}
	norm, err := ParseClock(clock)
	if err != nil {
		return model.Reminder{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return model.Reminder{}, fmt.Errorf("reminder id: %w", err)
	}
	rem := model.Reminder{ID: id.String(), MedicationID: medicationID, Time: norm, Enabled: true}
	const ins = `INSERT INTO reminders (id, medication_id, time_of_day, enabled) VALUES (?, ?, ?, 1)`
	if _, err := s.db.ExecContext(ctx, ins, rem.ID, rem.MedicationID, rem.Time); err != nil {
		return model.Reminder{}, fmt.Errorf("insert reminder: %w", err)
	}
	return rem, nil
}

// Get returns the reminder with id or errs.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (model.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM reminders WHERE id = ?`, id)
	rem, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reminder{}, fmt.Errorf("reminder %s: %w", id, errs.ErrNotFound)
	}
	return rem, err
}

// List returns all reminders ordered by time of day.
func (s *Store) List(ctx context.Context) ([]model.Reminder, error) {
	return s.query(ctx, `SELECT `+columns+` FROM reminders ORDER BY time_of_day, id`)
}

// ForMedication returns the reminders of one medication.
func (s *Store) ForMedication(ctx context.Context, medicationID string) ([]model.Reminder, error) {
	return s.query(ctx, `SELECT `+columns+` FROM reminders WHERE medication_id = ? ORDER BY time_of_day, id`, medicationID)
}

// Remove deletes a reminder.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.exec(ctx, id, `DELETE FROM reminders WHERE id = ?`, id)
}

// Toggle flips the enabled flag and returns the updated reminder.
func (s *Store) Toggle(ctx context.Context, id string) (model.Reminder, error) {
	if err := s.exec(ctx, id, `UPDATE reminders SET enabled = 1 - enabled WHERE id = ?`, id); err != nil {
		return model.Reminder{}, err
	}
	return s.Get(ctx, id)
}

// Snooze postpones a reminder until the given instant.
func (s *Store) Snooze(ctx context.Context, id string, until time.Time) error {
	return s.exec(ctx, id, `UPDATE reminders SET snoozed_until = ? WHERE id = ?`, until.UnixMilli(), id)
}

// ClearSnooze removes an active snooze.
func (s *Store) ClearSnooze(ctx context.Context, id string) error {
	return s.exec(ctx, id, `UPDATE reminders SET snoozed_until = NULL WHERE id = ?`, id)
}

// RetargetMedication moves reminders from a temp medication id to its permanent id.
func (s *Store) RetargetMedication(ctx context.Context, oldID, newID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE reminders SET medication_id = ? WHERE medication_id = ?`, newID, oldID); err != nil {
		return fmt.Errorf("retarget reminders: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, id, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("reminder %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reminder %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("reminder %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []model.Reminder
	for rows.Next() {
		rem, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (model.Reminder, error) {
	var (
		rem     model.Reminder
		enabled int
		snoozed sql.NullInt64
	)
	if err := sc.Scan(&rem.ID, &rem.MedicationID, &rem.Time, &enabled, &snoozed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reminder{}, err
		}
		return model.Reminder{}, fmt.Errorf("scan reminder: %w", err)
	}
	rem.Enabled = enabled != 0
	if snoozed.Valid {
		t := time.UnixMilli(snoozed.Int64)
		rem.SnoozedUntil = &t
	}
	return rem, nil
}
