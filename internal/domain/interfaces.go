package domain

import (
	"context"

	"contentops/internal/models"
	"contentops/internal/sheets"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TaskTracker persists the id of the task the operator started last.
// An empty id means nothing is tracked.
type TaskTracker interface {
	LastTaskID(ctx context.Context) (string, error)
	SetLastTaskID(ctx context.Context, id string) error
	ClearLastTaskID(ctx context.Context) error
}

type TaskSource interface {
	Tasks(ctx context.Context) (map[string]models.Task, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// IntentJournal records calendar edits and whether their platform write landed.
type IntentJournal interface {
	CreateIntent(ctx context.Context, intent *models.SyncIntent) error
	MarkPending(ctx context.Context, id string) error
	MarkCommitted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause string) error
	MarkSuperseded(ctx context.Context, id string) error
	GetIntent(ctx context.Context, id string) (*models.SyncIntent, error)
	ListIntents(ctx context.Context, status string) ([]*models.SyncIntent, error)
}

// PlatformSyncer mirrors one calendar entry onto one platform sheet.
type PlatformSyncer interface {
	Sync(ctx context.Context, entry models.CalendarEntry, platform models.Platform, scheduleTime string, revoke bool) (sheets.Result, error)
}
