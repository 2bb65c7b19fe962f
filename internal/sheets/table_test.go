package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow struct {
	MediaDriveID string `json:"media_drive_id"`
	Calendar     string `json:"calendar"`
}

func newTestTable(t *testing.T, rows ...any) (*Table, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Seed("Facebook_db", rows...))
	return NewTable(store, "Facebook_db", "media_drive_id", nil, nil), store
}

func replaceWith(row testRow) BuildFunc {
	return func(json.RawMessage) (any, error) { return row, nil }
}

func TestUpsertAppendsWhenMissing(t *testing.T) {
	table, store := newTestTable(t, testRow{MediaDriveID: "X"})

	res, err := table.Upsert(context.Background(), "D1", replaceWith(testRow{MediaDriveID: "D1"}))
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, []Call{{Op: "append", Sheet: "Facebook_db", Pos: 1}}, store.Calls())
}

func TestUpsertUpdatesAtMatchedPosition(t *testing.T) {
	table, store := newTestTable(t,
		testRow{MediaDriveID: "A"},
		testRow{MediaDriveID: "B"},
		testRow{MediaDriveID: "D1", Calendar: "old"},
	)

	var seen testRow
	res, err := table.Upsert(context.Background(), "D1", func(existing json.RawMessage) (any, error) {
		require.NotNil(t, existing)
		require.NoError(t, json.Unmarshal(existing, &seen))
		return testRow{MediaDriveID: "D1", Calendar: "new"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "old", seen.Calendar)
	assert.Equal(t, Result{Action: ActionUpdated, Position: 2}, res)
	assert.Equal(t, []Call{{Op: "update", Sheet: "Facebook_db", Pos: 2}}, store.Calls())
}

func TestUpsertTwiceIsIdempotent(t *testing.T) {
	table, store := newTestTable(t)
	ctx := context.Background()
	row := testRow{MediaDriveID: "D1", Calendar: "2024-01-01 10:00"}

	_, err := table.Upsert(ctx, "D1", replaceWith(row))
	require.NoError(t, err)
	res, err := table.Upsert(ctx, "D1", replaceWith(row))
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)

	rows, err := store.Rows(ctx, "Facebook_db")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"media_drive_id":"D1","calendar":"2024-01-01 10:00"}`, string(rows[0]))
}

func TestDuplicateKeysUseFirstMatch(t *testing.T) {
	table, store := newTestTable(t,
		testRow{MediaDriveID: "D1"},
		testRow{MediaDriveID: "D1"},
	)

	res, err := table.Upsert(context.Background(), "D1", replaceWith(testRow{MediaDriveID: "D1", Calendar: "x"}))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Position)
	assert.Len(t, store.Calls(), 1)
}

func TestModifyMissingReturnsNotFound(t *testing.T) {
	table, store := newTestTable(t)
	_, err := table.Modify(context.Background(), "D1", replaceWith(testRow{}))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.Calls())
}

func TestRemove(t *testing.T) {
	table, store := newTestTable(t,
		testRow{MediaDriveID: "A"},
		testRow{MediaDriveID: "B"},
		testRow{MediaDriveID: "D1"},
	)
	ctx := context.Background()

	res, err := table.Remove(ctx, "D1", false)
	require.NoError(t, err)
	assert.Equal(t, Result{Action: ActionDeleted, Position: 2}, res)

	res, err = table.Remove(ctx, "D1", false)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, res.Action)
	assert.Equal(t, []Call{{Op: "delete", Sheet: "Facebook_db", Pos: 2}}, store.Calls())
}

func TestBuildErrorSkipsWrite(t *testing.T) {
	table, store := newTestTable(t)
	boom := errors.New("boom")
	_, err := table.Upsert(context.Background(), "D1", func(json.RawMessage) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.Calls())
}

func TestFetchErrorPropagates(t *testing.T) {
	table, store := newTestTable(t)
	store.FailOn("rows", errors.New("offline"))
	_, err := table.Upsert(context.Background(), "D1", replaceWith(testRow{MediaDriveID: "D1"}))
	assert.EqualError(t, err, "offline")
	_, err = table.Remove(context.Background(), "D1", false)
	assert.EqualError(t, err, "offline")
}

func TestEmptyKeyRejected(t *testing.T) {
	table, _ := newTestTable(t)
	_, err := table.Upsert(context.Background(), "", replaceWith(testRow{}))
	assert.Error(t, err)
	_, _, err = table.Find(context.Background(), "")
	assert.Error(t, err)
}

func TestConcurrentUpsertsKeepOneRow(t *testing.T) {
	table, store := newTestTable(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := table.Upsert(ctx, "D1", replaceWith(testRow{MediaDriveID: "D1"}))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows, err := store.Rows(ctx, "Facebook_db")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFieldStringNumeric(t *testing.T) {
	assert.Equal(t, "42", fieldString(json.RawMessage(`{"id":42}`), "id"))
	assert.Equal(t, "", fieldString(json.RawMessage(`{"id":null}`), "id"))
	assert.Equal(t, "", fieldString(json.RawMessage(`[]`), "id"))
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("a")
	assert.Equal(t, 1, k.size())

	done := make(chan struct{})
	go func() {
		u := k.Lock("a")
		u()
		close(done)
	}()
	unlock()
	<-done
	assert.Equal(t, 0, k.size())
}
