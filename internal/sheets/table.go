package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"contentops/internal/metrics"

	"github.com/rs/zerolog"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	ActionNoop    Action = "noop"
)

// Result reports what a keyed write did. Position is the data position that
// was updated or removed, the expected position of an appended row, or -1.
type Result struct {
	Action   Action
	Position int
}

// BuildFunc produces the row to write. existing is nil when no row matches.
type BuildFunc func(existing json.RawMessage) (any, error)

// Table addresses rows of one sheet by the string value of a key field.
// Every write re-reads the sheet and resolves the position right before
// writing; writes for the same key are serialized.
type Table struct {
	store    Store
	sheet    string
	keyField string
	locks    *KeyedMutex
	logger   *zerolog.Logger
}

func NewTable(store Store, sheet, keyField string, locks *KeyedMutex, logger *zerolog.Logger) *Table {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Table{store: store, sheet: sheet, keyField: keyField, locks: locks, logger: logger}
}

func (t *Table) Sheet() string { return t.sheet }

func (t *Table) Store() Store { return t.store }

// Find returns the first row whose key matches, or ErrNotFound.
func (t *Table) Find(ctx context.Context, key string) (int, json.RawMessage, error) {
	if key == "" {
		return -1, nil, errors.New("empty key")
	}
	rows, err := t.store.Rows(ctx, t.sheet)
	if err != nil {
		return -1, nil, err
	}
	pos := t.match(rows, key)
	if pos < 0 {
		return -1, nil, ErrNotFound
	}
	return pos, rows[pos], nil
}

// Upsert updates the matching row in place or appends a new one.
func (t *Table) Upsert(ctx context.Context, key string, build BuildFunc) (Result, error) {
	return t.write(ctx, key, build, true)
}

// Modify rewrites the matching row and fails with ErrNotFound when there is none.
func (t *Table) Modify(ctx context.Context, key string, build BuildFunc) (Result, error) {
	return t.write(ctx, key, build, false)
}

func (t *Table) write(ctx context.Context, key string, build BuildFunc, create bool) (Result, error) {
	if key == "" {
		return Result{Action: ActionNoop, Position: -1}, errors.New("empty key")
	}
	unlock := t.lock(key)
	defer unlock()

	rows, err := t.store.Rows(ctx, t.sheet)
	if err != nil {
		return Result{Action: ActionNoop, Position: -1}, err
	}

	var existing json.RawMessage
	pos := t.match(rows, key)
	if pos >= 0 {
		existing = rows[pos]
	} else if !create {
		return Result{Action: ActionNoop, Position: -1}, fmt.Errorf("%s %q: %w", t.sheet, key, ErrNotFound)
	}

	row, err := build(existing)
	if err != nil {
		return Result{Action: ActionNoop, Position: -1}, err
	}

	if existing != nil {
		if err := t.store.Update(ctx, t.sheet, pos, row); err != nil {
			return Result{Action: ActionNoop, Position: -1}, err
		}
		return Result{Action: ActionUpdated, Position: pos}, nil
	}

	if err := t.store.Append(ctx, t.sheet, row); err != nil {
		return Result{Action: ActionNoop, Position: -1}, err
	}
	return Result{Action: ActionCreated, Position: len(rows)}, nil
}

// Remove deletes the matching row. No match is a noop, not an error.
func (t *Table) Remove(ctx context.Context, key string, deleteDrive bool) (Result, error) {
	unlock := t.lock(key)
	defer unlock()

	pos, _, err := t.Find(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Result{Action: ActionNoop, Position: -1}, nil
	}
	if err != nil {
		return Result{Action: ActionNoop, Position: -1}, err
	}

	if err := t.store.Delete(ctx, t.sheet, pos, deleteDrive); err != nil {
		return Result{Action: ActionNoop, Position: -1}, err
	}
	return Result{Action: ActionDeleted, Position: pos}, nil
}

func (t *Table) lock(key string) func() {
	return t.locks.Lock(t.sheet + "\x00" + key)
}

// match returns the first position whose key field equals key and reports
// any duplicates.
func (t *Table) match(rows []json.RawMessage, key string) int {
	first := -1
	var dups []int
	for i, raw := range rows {
		if fieldString(raw, t.keyField) != key {
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		dups = append(dups, i)
	}
	if len(dups) > 0 {
		metrics.IncDuplicate(t.sheet)
		t.logger.Warn().
			Str("sheet", t.sheet).
			Str("key", key).
			Int("position", first).
			Ints("duplicates", dups).
			Msg("duplicate rows for key, using the first")
	}
	return first
}

// fieldString reads a top-level field as a string. Numbers keep their JSON
// text so numeric ids still compare.
func fieldString(raw json.RawMessage, field string) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	v, ok := obj[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		return ""
	}
	return string(v)
}
