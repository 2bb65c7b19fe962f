package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LastTaskID returns the tracked task id, or "" when none is set.
func (db *DB) LastTaskID(ctx context.Context) (string, error) {
	var id string
	err := db.QueryRowContext(ctx, `SELECT task_id FROM last_task WHERE id = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last task: %w", err)
	}
	return id, nil
}

// SetLastTaskID replaces the tracked id. An empty id clears it.
func (db *DB) SetLastTaskID(ctx context.Context, id string) error {
	if id == "" {
		return db.ClearLastTaskID(ctx)
	}
	_, err := db.ExecContext(ctx, `
        INSERT INTO last_task (id, task_id, updated_at) VALUES (1, ?, ?)
        ON CONFLICT(id) DO UPDATE SET task_id = excluded.task_id, updated_at = excluded.updated_at`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store last task: %w", err)
	}
	return nil
}

func (db *DB) ClearLastTaskID(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM last_task WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear last task: %w", err)
	}
	return nil
}
