package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contentops/internal/models"

	"github.com/google/uuid"
)

var ErrIntentNotFound = errors.New("sync intent not found")

const intentColumns = `id, media_drive_id, platform, action, schedule_time, status, last_error, attempts, created_at, updated_at`

// CreateIntent stores a new pending intent. An empty ID gets a UUID.
func (db *DB) CreateIntent(ctx context.Context, intent *models.SyncIntent) error {
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	if intent.Status == "" {
		intent.Status = models.IntentPending
	}
	now := time.Now().UTC()
	intent.CreatedAt = now
	intent.UpdatedAt = now

	query := `INSERT INTO sync_intents (` + intentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		intent.ID,
		intent.MediaDriveID,
		string(intent.Platform),
		intent.Action,
		intent.ScheduleTime,
		intent.Status,
		intent.LastError,
		intent.Attempts,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync intent: %w", err)
	}
	return nil
}

// MarkPending flags an intent as being replayed.
func (db *DB) MarkPending(ctx context.Context, id string) error {
	return db.setStatus(ctx, id, models.IntentPending, nil, false)
}

func (db *DB) MarkCommitted(ctx context.Context, id string) error {
	return db.setStatus(ctx, id, models.IntentCommitted, nil, true)
}

func (db *DB) MarkFailed(ctx context.Context, id string, cause string) error {
	return db.setStatus(ctx, id, models.IntentFailed, &cause, true)
}

func (db *DB) MarkSuperseded(ctx context.Context, id string) error {
	return db.setStatus(ctx, id, models.IntentSuperseded, nil, false)
}

func (db *DB) setStatus(ctx context.Context, id, status string, lastError *string, attempt bool) error {
	query := `UPDATE sync_intents SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`
	if attempt {
		query = `UPDATE sync_intents SET status = ?, last_error = ?, updated_at = ?, attempts = attempts + 1 WHERE id = ?`
	}
	res, err := db.ExecContext(ctx, query, status, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sync intent %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrIntentNotFound)
	}
	return nil
}

func (db *DB) GetIntent(ctx context.Context, id string) (*models.SyncIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM sync_intents WHERE id = ?`
	intent, err := scanIntent(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrIntentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync intent: %w", err)
	}
	return intent, nil
}

// ListIntents returns intents oldest first; an empty status lists all.
func (db *DB) ListIntents(ctx context.Context, status string) ([]*models.SyncIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM sync_intents`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync intents: %w", err)
	}
	defer rows.Close()

	var intents []*models.SyncIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync intent: %w", err)
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*models.SyncIntent, error) {
	var (
		intent    models.SyncIntent
		platform  string
		lastError sql.NullString
	)
	err := row.Scan(
		&intent.ID, &intent.MediaDriveID, &platform, &intent.Action, &intent.ScheduleTime,
		&intent.Status, &lastError, &intent.Attempts, &intent.CreatedAt, &intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	intent.Platform = models.Platform(platform)
	if lastError.Valid {
		intent.LastError = &lastError.String
	}
	return &intent, nil
}
