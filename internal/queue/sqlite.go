package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
)

// SQLite is the durable Queue backed by the local database (see localdb.Open).
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Queue = (*SQLite)(nil)

// NewSQLite wraps an open, migrated local database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("queue %s: %w: %v", op, errs.ErrQueueUnavailable, err)
}

// Enqueue inserts the record in a single statement, so it is either fully stored or not at all.
func (q *SQLite) Enqueue(ctx context.Context, collection string, payload json.RawMessage) (model.PendingRecord, error) {
	rec := model.PendingRecord{
		TempID:     NewTempID(),
		Collection: collection,
		Payload:    append(json.RawMessage(nil), payload...),
		CreatedAt:  q.now().UTC(),
	}
	const ins = `INSERT INTO pending_records (temp_id, collection, payload, created_at) VALUES (?, ?, ?, ?)`
	if _, err := q.db.ExecContext(ctx, ins, rec.TempID, rec.Collection, []byte(rec.Payload), rec.CreatedAt.UnixMilli()); err != nil {
		return model.PendingRecord{}, unavailable("enqueue", err)
	}
	return rec, nil
}

// ListPending returns records ordered by insertion sequence.
func (q *SQLite) ListPending(ctx context.Context) ([]model.PendingRecord, error) {
	const sel = `SELECT temp_id, collection, payload, created_at FROM pending_records ORDER BY seq ASC`
	rows, err := q.db.QueryContext(ctx, sel)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	var out []model.PendingRecord
	for rows.Next() {
		var (
			rec     model.PendingRecord
			payload []byte
			created int64
		)
		if err := rows.Scan(&rec.TempID, &rec.Collection, &payload, &created); err != nil {
			return nil, unavailable("list", err)
		}
		rec.Payload = json.RawMessage(payload)
		rec.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return out, nil
}

// Remove deletes the record if present.
func (q *SQLite) Remove(ctx context.Context, tempID string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_records WHERE temp_id = ?`, tempID); err != nil {
		return unavailable("remove", err)
	}
	return nil
}

// Promote deletes the record and stores the alias in one transaction.
func (q *SQLite) Promote(ctx context.Context, tempID, permanentID string) (err error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("promote", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = unavailable("promote", e)
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM pending_records WHERE temp_id = ?`, tempID); err != nil {
		return unavailable("promote", err)
	}
	const ins = `
INSERT INTO promotions (temp_id, permanent_id, promoted_at) VALUES (?, ?, ?)
ON CONFLICT (temp_id) DO UPDATE SET permanent_id = excluded.permanent_id, promoted_at = excluded.promoted_at`
	if _, err = tx.ExecContext(ctx, ins, tempID, permanentID, q.now().UnixMilli()); err != nil {
		return unavailable("promote", err)
	}
	return nil
}

// Aliases returns all stored promotions.
func (q *SQLite) Aliases(ctx context.Context) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT temp_id, permanent_id FROM promotions`)
	if err != nil {
		return nil, unavailable("aliases", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var tmp, perm string
		if err := rows.Scan(&tmp, &perm); err != nil {
			return nil, unavailable("aliases", err)
		}
		out[tmp] = perm
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("aliases", err)
	}
	return out, nil
}

// Count returns the number of pending rows.
func (q *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_records`).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}
