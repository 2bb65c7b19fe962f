package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"contentops/internal/metrics"
	"contentops/internal/models"
	"contentops/internal/sheets"

	"github.com/rs/zerolog"
)

var ErrMissingDriveID = errors.New("calendar entry has no drive id")

const platformKeyField = "media_drive_id"

// Synchronizer keeps at most one platform row per media drive id in sync with
// the calendar entry's schedule for that platform.
type Synchronizer struct {
	store    sheets.Store
	accounts *AccountDirectory
	locks    *sheets.KeyedMutex
	logger   *zerolog.Logger
}

func NewSynchronizer(store sheets.Store, accounts *AccountDirectory, locks *sheets.KeyedMutex, logger *zerolog.Logger) *Synchronizer {
	if locks == nil {
		locks = sheets.NewKeyedMutex()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Synchronizer{store: store, accounts: accounts, locks: locks, logger: logger}
}

// Sync upserts the platform row for entry, or deletes it when revoke is set.
// Errors are logged and returned; the calendar is never touched here.
func (s *Synchronizer) Sync(ctx context.Context, entry models.CalendarEntry, platform models.Platform, scheduleTime string, revoke bool) (sheets.Result, error) {
	noop := sheets.Result{Action: sheets.ActionNoop, Position: -1}

	sheet, err := platform.DBSheet()
	if err != nil {
		return noop, fmt.Errorf("%s: %w", platform, err)
	}
	if entry.ID == "" {
		return noop, ErrMissingDriveID
	}

	table := sheets.NewTable(s.store, sheet, platformKeyField, s.locks, s.logger)

	var res sheets.Result
	if revoke {
		res, err = table.Remove(ctx, entry.ID, false)
	} else {
		res, err = table.Upsert(ctx, entry.ID, func(existing json.RawMessage) (any, error) {
			return s.buildRow(ctx, existing, entry, platform, scheduleTime)
		})
	}

	log := s.logger.With().
		Str("sheet", sheet).
		Str("media_drive_id", entry.ID).
		Bool("revoke", revoke).
		Logger()
	if err != nil {
		metrics.IncSync(string(platform), string(res.Action), "error")
		log.Error().Err(err).Msg("Platform sync failed")
		return res, err
	}

	metrics.IncSync(string(platform), string(res.Action), "ok")
	log.Info().Str("action", string(res.Action)).Int("position", res.Position).Msg("Platform sync done")
	return res, nil
}

// buildRow keeps the content columns of an existing row and overwrites the
// columns the calendar owns.
func (s *Synchronizer) buildRow(ctx context.Context, existing json.RawMessage, entry models.CalendarEntry, platform models.Platform, scheduleTime string) (models.PlatformRow, error) {
	var row models.PlatformRow
	if existing != nil {
		if err := json.Unmarshal(existing, &row); err != nil {
			return row, fmt.Errorf("decode existing row: %w", err)
		}
	}

	row.STT = entry.STT
	row.MediaDriveID = entry.ID
	row.VideoName = entry.Name
	row.VideoURL = entry.LinkOnDrive
	if entry.Thumbnail != "" {
		row.ThumbnailURL = entry.Thumbnail
	}
	row.ContentType = models.ContentTypeVideo
	row.Calendar = scheduleTime

	switch platform {
	case models.PlatformFacebook:
		page := &models.PageRef{Name: entry.Facebook.Pages, ID: entry.Facebook.PageID}
		if s.accounts != nil {
			if acc, ok := s.accounts.Page(ctx, page.ID); ok {
				page.AccessToken = acc.AccessToken
			}
		}
		row.Page = page
		row.Channel = nil
	case models.PlatformYoutube:
		channel := &models.ChannelRef{Name: entry.Youtube.Channels, ID: entry.Youtube.ChannelID}
		if s.accounts != nil {
			if acc, ok := s.accounts.Channel(ctx, channel.ID); ok {
				channel.Gmail = acc.GmailChannel
			}
		}
		row.Channel = channel
		row.Page = nil
	}
	return row, nil
}
