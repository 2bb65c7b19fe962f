package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Call is one write recorded by MemoryStore.
type Call struct {
	Op          string
	Sheet       string
	Pos         int
	DeleteDrive bool
}

// MemoryStore keeps sheets in process. It backs dry runs and tests, and
// records every write it serves.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string][]json.RawMessage
	calls  []Call
	fail   map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets: make(map[string][]json.RawMessage),
		fail:   make(map[string]error),
	}
}

// Seed replaces the content of sheet.
func (m *MemoryStore) Seed(sheet string, rows ...any) error {
	raw := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		raw = append(raw, data)
	}
	m.mu.Lock()
	m.sheets[sheet] = raw
	m.mu.Unlock()
	return nil
}

// FailOn makes the named operation (rows, append, update, delete) return err.
// A nil err clears the failure.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

func (m *MemoryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MemoryStore) Rows(_ context.Context, sheet string) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["rows"]; err != nil {
		return nil, err
	}
	return append([]json.RawMessage(nil), m.sheets[sheet]...), nil
}

func (m *MemoryStore) Append(_ context.Context, sheet string, row any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["append"]; err != nil {
		return err
	}
	m.calls = append(m.calls, Call{Op: "append", Sheet: sheet, Pos: len(m.sheets[sheet])})
	m.sheets[sheet] = append(m.sheets[sheet], data)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, sheet string, pos int, row any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["update"]; err != nil {
		return err
	}
	if pos < 0 || pos >= len(m.sheets[sheet]) {
		return fmt.Errorf("update %s/%d: out of range", sheet, pos)
	}
	m.calls = append(m.calls, Call{Op: "update", Sheet: sheet, Pos: pos})
	m.sheets[sheet][pos] = data
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sheet string, pos int, deleteDrive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["delete"]; err != nil {
		return err
	}
	rows := m.sheets[sheet]
	if pos < 0 || pos >= len(rows) {
		return fmt.Errorf("delete %s/%d: out of range", sheet, pos)
	}
	m.calls = append(m.calls, Call{Op: "delete", Sheet: sheet, Pos: pos, DeleteDrive: deleteDrive})
	m.sheets[sheet] = append(rows[:pos:pos], rows[pos+1:]...)
	return nil
}
