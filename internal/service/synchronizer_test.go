package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"contentops/internal/models"
	"contentops/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() models.CalendarEntry {
	return models.CalendarEntry{
		STT:         "1",
		ID:          "D1",
		Name:        "clip.mp4",
		LinkOnDrive: "https://drive.example.com/D1",
		Facebook:    models.FacebookSchedule{Pages: "Shop", PageID: "P1"},
		Youtube:     models.YoutubeSchedule{Channels: "Main", ChannelID: "C1"},
	}
}

func newTestSynchronizer(t *testing.T) (*Synchronizer, *sheets.MemoryStore) {
	t.Helper()
	store := sheets.NewMemoryStore()
	seedAccounts(t, store)
	return NewSynchronizer(store, NewAccountDirectory(store, time.Minute, nil), nil, nil), store
}

func platformRows(t *testing.T, store *sheets.MemoryStore, sheet string) []models.PlatformRow {
	t.Helper()
	rows, err := sheets.ReadAll[models.PlatformRow](context.Background(), store, sheet)
	require.NoError(t, err)
	return rows
}

func TestSyncAppendsToEmptySheet(t *testing.T) {
	syncer, store := newTestSynchronizer(t)

	res, err := syncer.Sync(context.Background(), testEntry(), models.PlatformFacebook, "2024-01-01 10:00", false)
	require.NoError(t, err)
	assert.Equal(t, sheets.Result{Action: sheets.ActionCreated, Position: 0}, res)

	rows := platformRows(t, store, models.SheetFacebookDB)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "D1", row.MediaDriveID)
	assert.Equal(t, "clip.mp4", row.VideoName)
	assert.Equal(t, "https://drive.example.com/D1", row.VideoURL)
	assert.Equal(t, models.ContentTypeVideo, row.ContentType)
	assert.Equal(t, "2024-01-01 10:00", row.Calendar)
	require.NotNil(t, row.Page)
	assert.Equal(t, models.PageRef{Name: "Shop", ID: "P1", AccessToken: "tok-1"}, *row.Page)
	assert.Nil(t, row.Channel)
}

func TestSyncUpdatesExistingRowInPlace(t *testing.T) {
	syncer, store := newTestSynchronizer(t)
	require.NoError(t, store.Seed(models.SheetYoutubeDB,
		models.PlatformRow{MediaDriveID: "A"},
		models.PlatformRow{MediaDriveID: "B"},
		models.PlatformRow{MediaDriveID: "D1", Hook: "keep me", ThumbnailURL: "thumb.png", Calendar: "old"},
	))

	res, err := syncer.Sync(context.Background(), testEntry(), models.PlatformYoutube, "2024-02-02 09:30", false)
	require.NoError(t, err)
	assert.Equal(t, sheets.Result{Action: sheets.ActionUpdated, Position: 2}, res)

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, sheets.Call{Op: "update", Sheet: models.SheetYoutubeDB, Pos: 2}, calls[0])

	rows := platformRows(t, store, models.SheetYoutubeDB)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-02-02 09:30", rows[2].Calendar)
	assert.Equal(t, "keep me", rows[2].Hook)
	assert.Equal(t, "thumb.png", rows[2].ThumbnailURL)
	require.NotNil(t, rows[2].Channel)
	assert.Equal(t, "main@example.com", rows[2].Channel.Gmail)
}

func TestSyncRevokeDeletesRow(t *testing.T) {
	syncer, store := newTestSynchronizer(t)
	require.NoError(t, store.Seed(models.SheetFacebookDB,
		models.PlatformRow{MediaDriveID: "A"},
		models.PlatformRow{MediaDriveID: "B"},
		models.PlatformRow{MediaDriveID: "D1"},
	))

	res, err := syncer.Sync(context.Background(), testEntry(), models.PlatformFacebook, "", true)
	require.NoError(t, err)
	assert.Equal(t, sheets.Result{Action: sheets.ActionDeleted, Position: 2}, res)
	assert.Equal(t, []sheets.Call{{Op: "delete", Sheet: models.SheetFacebookDB, Pos: 2}}, store.Calls())
	assert.Len(t, platformRows(t, store, models.SheetFacebookDB), 2)

	res, err = syncer.Sync(context.Background(), testEntry(), models.PlatformFacebook, "", true)
	require.NoError(t, err)
	assert.Equal(t, sheets.ActionNoop, res.Action)
}

func TestSyncIsIdempotent(t *testing.T) {
	syncer, store := newTestSynchronizer(t)
	ctx := context.Background()

	_, err := syncer.Sync(ctx, testEntry(), models.PlatformFacebook, "2024-01-01 10:00", false)
	require.NoError(t, err)
	first, err := store.Rows(ctx, models.SheetFacebookDB)
	require.NoError(t, err)

	res, err := syncer.Sync(ctx, testEntry(), models.PlatformFacebook, "2024-01-01 10:00", false)
	require.NoError(t, err)
	assert.Equal(t, sheets.ActionUpdated, res.Action)

	second, err := store.Rows(ctx, models.SheetFacebookDB)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.JSONEq(t, string(first[0]), string(second[0]))
}

func TestSyncMissingAccountLeavesCredentialEmpty(t *testing.T) {
	syncer, store := newTestSynchronizer(t)
	entry := testEntry()
	entry.Facebook.PageID = "unknown"

	_, err := syncer.Sync(context.Background(), entry, models.PlatformFacebook, "2024-01-01 10:00", false)
	require.NoError(t, err)

	rows := platformRows(t, store, models.SheetFacebookDB)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Page)
	assert.Equal(t, "unknown", rows[0].Page.ID)
	assert.Empty(t, rows[0].Page.AccessToken)
}

func TestSyncUnsupportedPlatform(t *testing.T) {
	syncer, store := newTestSynchronizer(t)

	_, err := syncer.Sync(context.Background(), testEntry(), models.PlatformTiktok, "2024-01-01 10:00", false)
	assert.ErrorIs(t, err, models.ErrUnsupportedPlatform)
	assert.Empty(t, store.Calls())
}

func TestSyncMissingDriveID(t *testing.T) {
	syncer, _ := newTestSynchronizer(t)
	entry := testEntry()
	entry.ID = ""

	_, err := syncer.Sync(context.Background(), entry, models.PlatformFacebook, "2024-01-01 10:00", false)
	assert.ErrorIs(t, err, ErrMissingDriveID)
}

func TestSyncStoreErrorIsReturned(t *testing.T) {
	syncer, store := newTestSynchronizer(t)
	store.FailOn("append", errors.New("quota exceeded"))

	_, err := syncer.Sync(context.Background(), testEntry(), models.PlatformFacebook, "2024-01-01 10:00", false)
	assert.EqualError(t, err, "quota exceeded")
}

func TestSyncThumbnailFromEntry(t *testing.T) {
	syncer, store := newTestSynchronizer(t)
	entry := testEntry()
	entry.Thumbnail = "https://drive.example.com/thumb"

	_, err := syncer.Sync(context.Background(), entry, models.PlatformFacebook, "2024-01-01 10:00", false)
	require.NoError(t, err)

	raw, err := store.Rows(context.Background(), models.SheetFacebookDB)
	require.NoError(t, err)
	var row map[string]any
	require.NoError(t, json.Unmarshal(raw[0], &row))
	assert.Equal(t, "https://drive.example.com/thumb", row["thumbnail_url"])
}
