package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"contentops/internal/database"
	"contentops/internal/events"
	"contentops/internal/models"
	"contentops/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	Type    string
	Payload events.SyncEventPayload
}

type eventRecorder struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *eventRecorder) PublishJSON(eventType string, payload interface{}) error {
	p, ok := payload.(events.SyncEventPayload)
	if !ok {
		return errors.New("unexpected payload")
	}
	r.mu.Lock()
	r.events = append(r.events, publishedEvent{Type: eventType, Payload: p})
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type schedulerFixture struct {
	scheduler *Scheduler
	store     *sheets.MemoryStore
	journal   *database.DB
	events    *eventRecorder
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	store := sheets.NewMemoryStore()
	seedAccounts(t, store)
	require.NoError(t, store.Seed(models.SheetCalendar,
		map[string]any{"stt": "1", "id": "D0", "name": "other.mp4"},
		map[string]any{
			"stt":           "2",
			"id":            "D1",
			"name":          "clip.mp4",
			"link_on_drive": "https://drive.example.com/D1",
			"facebook":      map[string]any{"pages": "Shop", "page_id": "P1", "calendar": "", "post_type": "reel"},
			"youtube":       map[string]any{"channels": "Main", "channel_id": "C1", "calendar": ""},
			"custom_note":   "keep",
		},
	))

	journal, err := database.NewDB(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	locks := sheets.NewKeyedMutex()
	syncer := NewSynchronizer(store, NewAccountDirectory(store, time.Minute, nil), locks, nil)
	rec := &eventRecorder{}
	return &schedulerFixture{
		scheduler: NewScheduler(store, locks, syncer, journal, rec, nil),
		store:     store,
		journal:   journal,
		events:    rec,
	}
}

func (f *schedulerFixture) calendarRow(t *testing.T, id string) map[string]any {
	t.Helper()
	rows, err := f.store.Rows(context.Background(), models.SheetCalendar)
	require.NoError(t, err)
	for _, raw := range rows {
		var row map[string]any
		require.NoError(t, json.Unmarshal(raw, &row))
		if row["id"] == id {
			return row
		}
	}
	t.Fatalf("calendar row %s not found", id)
	return nil
}

func TestScheduleCommits(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	intent, err := f.scheduler.Schedule(ctx, "D1", "Facebook", "2024-03-01T18:45")
	require.NoError(t, err)
	assert.Equal(t, models.IntentCommitted, intent.Status)
	assert.Equal(t, "2024-03-01 18:45", intent.ScheduleTime)

	stored, err := f.journal.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentCommitted, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	row := f.calendarRow(t, "D1")
	assert.Equal(t, "", row["scrip_action"])
	assert.Equal(t, "keep", row["custom_note"])
	fb := row["facebook"].(map[string]any)
	assert.Equal(t, "2024-03-01 18:45", fb["calendar"])
	assert.Equal(t, "reel", fb["post_type"])

	rows := platformRows(t, f.store, models.SheetFacebookDB)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-03-01 18:45", rows[0].Calendar)
	assert.Equal(t, "tok-1", rows[0].Page.AccessToken)

	assert.Equal(t, []string{events.EventSyncCommitted}, f.events.types())
	assert.Equal(t, string(sheets.ActionCreated), f.events.events[0].Payload.Result)
}

func TestScheduleFailureFlagsCalendar(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	f.store.FailOn("append", errors.New("quota exceeded"))

	intent, err := f.scheduler.Schedule(ctx, "D1", "youtube", "2024-03-01 18:45")
	require.Error(t, err)
	assert.Equal(t, models.IntentFailed, intent.Status)

	stored, err := f.journal.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "quota exceeded", *stored.LastError)

	row := f.calendarRow(t, "D1")
	assert.Equal(t, "sync_failed:youtube", row["scrip_action"])
	assert.Equal(t, "2024-03-01 18:45", row["youtube"].(map[string]any)["calendar"])

	assert.Equal(t, []string{events.EventSyncFailed}, f.events.types())
	assert.Equal(t, "quota exceeded", f.events.events[0].Payload.Error)
}

func TestFlaggedEntriesListsFailedSyncs(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	flagged, err := f.scheduler.FlaggedEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, flagged)

	f.store.FailOn("append", errors.New("quota exceeded"))
	_, err = f.scheduler.Schedule(ctx, "D1", "facebook", "2024-03-01 18:45")
	require.Error(t, err)

	flagged, err = f.scheduler.FlaggedEntries(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "D1", flagged[0].ID)
	assert.Equal(t, "sync_failed:facebook", flagged[0].ScripAction)

	f.store.FailOn("append", nil)
	_, err = f.scheduler.Resync(ctx)
	require.NoError(t, err)
	flagged, err = f.scheduler.FlaggedEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestRevokeClearsCalendarAndDeletesRow(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "D1", "facebook", "2024-03-01 18:45")
	require.NoError(t, err)

	intent, err := f.scheduler.Revoke(ctx, "D1", "facebook")
	require.NoError(t, err)
	assert.Equal(t, models.IntentDelete, intent.Action)
	assert.Equal(t, models.IntentCommitted, intent.Status)

	row := f.calendarRow(t, "D1")
	assert.Equal(t, "", row["facebook"].(map[string]any)["calendar"])
	assert.Empty(t, platformRows(t, f.store, models.SheetFacebookDB))
}

func TestScheduleMissingEntry(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	intent, err := f.scheduler.Schedule(ctx, "nope", "facebook", "2024-03-01 18:45")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	require.NotNil(t, intent)
	assert.Equal(t, models.IntentFailed, intent.Status)
	assert.Empty(t, platformRows(t, f.store, models.SheetFacebookDB))
}

type commitFailingJournal struct {
	*database.DB
}

func (commitFailingJournal) MarkCommitted(context.Context, string) error {
	return errors.New("disk full")
}

func TestScheduleCommitRecordFailureStillSettlesCalendar(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	syncer := NewSynchronizer(f.store, nil, nil, nil)
	scheduler := NewScheduler(f.store, nil, syncer, commitFailingJournal{f.journal}, f.events, nil)

	intent, err := scheduler.Schedule(ctx, "D1", "facebook", "2024-03-01 18:45")
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	require.NotNil(t, intent)

	assert.Equal(t, "", f.calendarRow(t, "D1")["scrip_action"])
	assert.Len(t, platformRows(t, f.store, models.SheetFacebookDB), 1)
	assert.Equal(t, []string{events.EventSyncCommitted}, f.events.types())

	stored, err := f.journal.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPending, stored.Status)
}

func TestScheduleValidation(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		driveID  string
		platform string
		when     string
		want     error
	}{
		{name: "missing drive id", platform: "facebook", when: "2024-03-01 18:45", want: ErrInvalidRequest},
		{name: "bad time", driveID: "D1", platform: "facebook", when: "tomorrow", want: ErrInvalidRequest},
		{name: "missing time", driveID: "D1", platform: "facebook", want: ErrInvalidRequest},
		{name: "tiktok", driveID: "D1", platform: "tiktok", when: "2024-03-01 18:45", want: models.ErrUnsupportedPlatform},
		{name: "unknown platform", driveID: "D1", platform: "myspace", when: "2024-03-01 18:45", want: models.ErrUnsupportedPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.scheduler.Schedule(ctx, tt.driveID, tt.platform, tt.when)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	intents, err := f.scheduler.Intents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, intents, "rejected requests are not journaled")
}

func TestResyncReplaysLatestFailure(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	f.store.FailOn("append", errors.New("quota exceeded"))

	older, err := f.scheduler.Schedule(ctx, "D1", "facebook", "2024-03-01 18:45")
	require.Error(t, err)
	latest, err := f.scheduler.Schedule(ctx, "D1", "facebook", "2024-03-02 08:00")
	require.Error(t, err)

	f.store.FailOn("append", nil)
	report, err := f.scheduler.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResyncReport{Replayed: 1, Committed: 1, Superseded: 1}, report)

	got, err := f.journal.GetIntent(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentSuperseded, got.Status)

	got, err = f.journal.GetIntent(ctx, latest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentCommitted, got.Status)
	assert.Equal(t, 2, got.Attempts)

	rows := platformRows(t, f.store, models.SheetFacebookDB)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-03-02 08:00", rows[0].Calendar)
	assert.Equal(t, "", f.calendarRow(t, "D1")["scrip_action"])

	report, err = f.scheduler.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResyncReport{}, report)
}

func TestResyncSkipsPairsAlreadyCommitted(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	f.store.FailOn("append", errors.New("quota exceeded"))
	failed, err := f.scheduler.Schedule(ctx, "D1", "youtube", "2024-03-01 18:45")
	require.Error(t, err)
	f.store.FailOn("append", nil)

	_, err = f.scheduler.Schedule(ctx, "D1", "youtube", "2024-03-05 12:00")
	require.NoError(t, err)

	report, err := f.scheduler.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResyncReport{Superseded: 1}, report)

	got, err := f.journal.GetIntent(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentSuperseded, got.Status)
}

func TestNormalizeScheduleTime(t *testing.T) {
	assert.Equal(t, "2024-03-01 18:45", NormalizeScheduleTime("2024-03-01T18:45"))
	assert.Equal(t, "2024-03-01 18:45", NormalizeScheduleTime(" 2024-03-01 18:45 "))
	assert.Equal(t, "", NormalizeScheduleTime(""))
}
