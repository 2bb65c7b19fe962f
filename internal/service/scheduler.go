package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"contentops/internal/domain"
	"contentops/internal/events"
	"contentops/internal/metrics"
	"contentops/internal/models"
	"contentops/internal/sheets"

	"github.com/rs/zerolog"
)

var ErrEntryNotFound = errors.New("calendar entry not found")

// Scheduler runs a calendar edit and its platform sync as one journaled
// operation. The calendar row carries the outcome in scrip_action so a failed
// sync stays visible until it is replayed.
type Scheduler struct {
	calendar *sheets.Table
	syncer   domain.PlatformSyncer
	journal  domain.IntentJournal
	events   domain.EventPublisher
	logger   *zerolog.Logger
}

func NewScheduler(store sheets.Store, locks *sheets.KeyedMutex, syncer domain.PlatformSyncer, journal domain.IntentJournal, publisher domain.EventPublisher, logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{
		calendar: sheets.NewTable(store, models.SheetCalendar, "id", locks, logger),
		syncer:   syncer,
		journal:  journal,
		events:   publisher,
		logger:   logger,
	}
}

// ResyncReport counts what a Resync pass did.
type ResyncReport struct {
	Replayed   int
	Committed  int
	Failed     int
	Superseded int
}

// Schedule sets the platform schedule of the calendar entry and mirrors it
// onto the platform sheet.
func (s *Scheduler) Schedule(ctx context.Context, driveID, platform, when string) (*models.SyncIntent, error) {
	return s.start(ctx, scheduleRequest{DriveID: driveID, Platform: platform, When: when})
}

// Revoke clears the platform schedule and deletes the platform row.
func (s *Scheduler) Revoke(ctx context.Context, driveID, platform string) (*models.SyncIntent, error) {
	return s.start(ctx, scheduleRequest{DriveID: driveID, Platform: platform, Revoke: true})
}

func (s *Scheduler) start(ctx context.Context, req scheduleRequest) (*models.SyncIntent, error) {
	if err := validateScheduleRequest(ctx, req); err != nil {
		return nil, err
	}
	p, err := parseSyncPlatform(req.Platform)
	if err != nil {
		return nil, err
	}

	intent := &models.SyncIntent{
		MediaDriveID: req.DriveID,
		Platform:     p,
		Action:       models.IntentUpsert,
	}
	if req.Revoke {
		intent.Action = models.IntentDelete
	} else {
		intent.ScheduleTime = NormalizeScheduleTime(req.When)
	}

	if err := s.journal.CreateIntent(ctx, intent); err != nil {
		return nil, err
	}
	return s.run(ctx, intent)
}

// run performs the calendar write, the platform sync and the bookkeeping of
// an intent already stored in the journal.
func (s *Scheduler) run(ctx context.Context, intent *models.SyncIntent) (*models.SyncIntent, error) {
	log := s.logger.With().
		Str("intent_id", intent.ID).
		Str("media_drive_id", intent.MediaDriveID).
		Str("platform", string(intent.Platform)).
		Str("action", intent.Action).
		Logger()

	entry, err := s.markPending(ctx, intent)
	if err != nil {
		if errors.Is(err, sheets.ErrNotFound) {
			err = fmt.Errorf("%s: %w", intent.MediaDriveID, ErrEntryNotFound)
		}
		log.Error().Err(err).Msg("Calendar update failed")
		return s.fail(ctx, intent, sheets.Result{Action: sheets.ActionNoop, Position: -1}, err, false)
	}

	res, err := s.syncer.Sync(ctx, entry, intent.Platform, intent.ScheduleTime, intent.Action == models.IntentDelete)
	if err != nil {
		return s.fail(ctx, intent, res, err, true)
	}

	// The platform row is written at this point, so the calendar flag and the
	// event follow the sync even when the journal cannot record it.
	commitErr := s.journal.MarkCommitted(ctx, intent.ID)
	if commitErr != nil {
		log.Error().Err(commitErr).Msg("Failed to record committed sync")
		commitErr = fmt.Errorf("record committed intent %s: %w", intent.ID, commitErr)
	} else {
		intent.Status = models.IntentCommitted
		intent.LastError = nil
		intent.Attempts++
	}

	if err := s.setFlag(ctx, intent, ""); err != nil {
		log.Warn().Err(err).Msg("Failed to clear sync flag")
	}
	metrics.IncIntent(string(intent.Platform), models.IntentCommitted)
	s.publish(events.EventSyncCommitted, intent, res, nil)
	log.Info().Str("result", string(res.Action)).Msg("Sync committed")
	return intent, commitErr
}

// markPending writes the platform calendar value and the pending flag in one
// calendar update and returns the entry as written.
func (s *Scheduler) markPending(ctx context.Context, intent *models.SyncIntent) (models.CalendarEntry, error) {
	var written models.CalendarEntry
	_, err := s.calendar.Modify(ctx, intent.MediaDriveID, func(existing json.RawMessage) (any, error) {
		row, entry, err := decodeCalendar(existing)
		if err != nil {
			return nil, err
		}
		entry.SetSchedule(intent.Platform, intent.ScheduleTime)
		entry.ScripAction = models.SyncPendingFlag(intent.Platform)
		setField(row, string(intent.Platform), "calendar", intent.ScheduleTime)
		row["scrip_action"] = entry.ScripAction
		written = entry
		return row, nil
	})
	return written, err
}

// setFlag writes scrip_action. Clearing only happens while the entry still
// carries this platform's pending flag, so a later edit for another platform
// keeps its own flag.
func (s *Scheduler) setFlag(ctx context.Context, intent *models.SyncIntent, flag string) error {
	pending := models.SyncPendingFlag(intent.Platform)
	_, err := s.calendar.Modify(ctx, intent.MediaDriveID, func(existing json.RawMessage) (any, error) {
		row, entry, err := decodeCalendar(existing)
		if err != nil {
			return nil, err
		}
		if flag != "" || entry.ScripAction == pending {
			row["scrip_action"] = flag
		}
		return row, nil
	})
	return err
}

func (s *Scheduler) fail(ctx context.Context, intent *models.SyncIntent, res sheets.Result, cause error, flagCalendar bool) (*models.SyncIntent, error) {
	msg := cause.Error()
	if err := s.journal.MarkFailed(ctx, intent.ID, msg); err != nil {
		s.logger.Error().Err(err).Str("intent_id", intent.ID).Msg("Failed to record sync failure")
	}
	intent.Status = models.IntentFailed
	intent.LastError = &msg
	intent.Attempts++

	if flagCalendar {
		if err := s.setFlag(ctx, intent, models.SyncFailedFlag(intent.Platform)); err != nil {
			s.logger.Error().Err(err).Str("intent_id", intent.ID).Msg("Failed to flag calendar entry")
		}
	}
	metrics.IncIntent(string(intent.Platform), models.IntentFailed)
	s.publish(events.EventSyncFailed, intent, res, cause)
	return intent, cause
}

// Resync replays the newest failed intent of every media/platform pair once.
// Older failed intents of the same pair, or ones a later intent already
// replaced, are marked superseded.
func (s *Scheduler) Resync(ctx context.Context) (ResyncReport, error) {
	var report ResyncReport

	all, err := s.journal.ListIntents(ctx, "")
	if err != nil {
		return report, err
	}

	latest := make(map[string]*models.SyncIntent)
	for _, in := range all {
		latest[pairKey(in)] = in
	}

	for _, in := range all {
		if in.Status != models.IntentFailed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if latest[pairKey(in)].ID != in.ID {
			if err := s.journal.MarkSuperseded(ctx, in.ID); err != nil {
				return report, err
			}
			report.Superseded++
			continue
		}

		if err := s.journal.MarkPending(ctx, in.ID); err != nil {
			return report, err
		}
		in.Status = models.IntentPending
		report.Replayed++

		if _, err := s.run(ctx, in); err != nil {
			report.Failed++
			continue
		}
		report.Committed++
	}

	s.logger.Info().
		Int("replayed", report.Replayed).
		Int("committed", report.Committed).
		Int("failed", report.Failed).
		Int("superseded", report.Superseded).
		Msg("Resync finished")
	return report, nil
}

// FlaggedEntries returns the calendar entries still carrying a sync_failed flag.
func (s *Scheduler) FlaggedEntries(ctx context.Context) ([]models.CalendarEntry, error) {
	entries, err := sheets.ReadAll[models.CalendarEntry](ctx, s.calendar.Store(), models.SheetCalendar)
	if err != nil {
		return nil, err
	}
	var flagged []models.CalendarEntry
	for _, e := range entries {
		if e.SyncFailed() {
			flagged = append(flagged, e)
		}
	}
	return flagged, nil
}

// Intents lists the journal; an empty status lists everything.
func (s *Scheduler) Intents(ctx context.Context, status string) ([]*models.SyncIntent, error) {
	return s.journal.ListIntents(ctx, status)
}

func (s *Scheduler) publish(eventType string, intent *models.SyncIntent, res sheets.Result, cause error) {
	if s.events == nil {
		return
	}
	payload := events.SyncEventPayload{
		IntentID:     intent.ID,
		MediaDriveID: intent.MediaDriveID,
		Platform:     string(intent.Platform),
		Action:       intent.Action,
		ScheduleTime: intent.ScheduleTime,
		Result:       string(res.Action),
		Position:     res.Position,
	}
	if cause != nil {
		payload.Error = cause.Error()
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func pairKey(in *models.SyncIntent) string {
	return in.MediaDriveID + "\x00" + string(in.Platform)
}

// decodeCalendar returns the raw row as a generic object, so fields this
// client does not model survive the write, together with its typed view.
func decodeCalendar(raw json.RawMessage) (map[string]any, models.CalendarEntry, error) {
	var entry models.CalendarEntry
	row := make(map[string]any)
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, entry, fmt.Errorf("decode calendar row: %w", err)
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, entry, fmt.Errorf("decode calendar row: %w", err)
	}
	return row, entry, nil
}

func setField(row map[string]any, group, field string, value any) {
	sub, ok := row[group].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		row[group] = sub
	}
	sub[field] = value
}
