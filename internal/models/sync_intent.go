package models

import "time"

const (
	IntentUpsert = "upsert"
	IntentDelete = "delete"
)

const (
	IntentPending   = "pending"
	IntentCommitted = "committed"
	IntentFailed    = "failed"
)

// IntentSuperseded marks a failed intent that a newer one for the same media
// and platform replaced before it was replayed.
const IntentSuperseded = "superseded"

// SyncIntent records one calendar edit and the platform write it implies.
type SyncIntent struct {
	ID           string    `json:"id"`
	MediaDriveID string    `json:"media_drive_id"`
	Platform     Platform  `json:"platform"`
	Action       string    `json:"action"`
	ScheduleTime string    `json:"schedule_time"`
	Status       string    `json:"status"`
	LastError    *string   `json:"last_error"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
