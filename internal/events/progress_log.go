package events

import (
	"github.com/rs/zerolog"
)

// ProgressLog writes every event as a structured log line, the CLI
// counterpart of the dashboard's on-screen progress list.
type ProgressLog struct {
	logger *zerolog.Logger
}

func NewProgressLog(logger *zerolog.Logger) *ProgressLog {
	return &ProgressLog{logger: logger}
}

// Attach subscribes the log to all known event types.
func (p *ProgressLog) Attach(bus *EventBus) {
	bus.Subscribe(p.Handle, AllTypes...)
}

func (p *ProgressLog) Handle(event *Event) error {
	switch event.Type {
	case EventTaskProgress, EventTaskSucceeded, EventTaskFailed:
		var payload TaskEventPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		ev := p.logger.Info()
		if event.Type == EventTaskFailed {
			ev = p.logger.Error()
		}
		ev.Str("event", event.Type).
			Str("task_id", payload.TaskID).
			Str("status", payload.Status).
			Str("progress", payload.Progress).
			Str("message", payload.Message).
			Str("post_id", payload.PostID).
			Msg("task")

	case EventServerUnreachable, EventServerRecovered:
		var payload ServerEventPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		ev := p.logger.Info()
		if event.Type == EventServerUnreachable {
			ev = p.logger.Warn()
		}
		ev.Str("event", event.Type).
			Int("consecutive_failures", payload.ConsecutiveFailures).
			Str("last_error", payload.LastError).
			Msg("server")

	case EventSyncCommitted, EventSyncFailed:
		var payload SyncEventPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		ev := p.logger.Info()
		if event.Type == EventSyncFailed {
			ev = p.logger.Error()
		}
		ev.Str("event", event.Type).
			Str("intent_id", payload.IntentID).
			Str("media_drive_id", payload.MediaDriveID).
			Str("platform", payload.Platform).
			Str("action", payload.Action).
			Str("result", payload.Result).
			Int("position", payload.Position).
			Str("error", payload.Error).
			Msg("sync")

	default:
		p.logger.Debug().Str("event", event.Type).RawJSON("payload", event.Payload).Msg("event")
	}
	return nil
}
