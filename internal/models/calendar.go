package models

import "strings"

// FacebookSchedule is the facebook block of a calendar entry. Pages is the
// display name, PageID identifies the target page.
type FacebookSchedule struct {
	Pages    string `json:"pages"`
	PageID   string `json:"page_id"`
	Calendar string `json:"calendar"`
	PostType string `json:"post_type"`
}

type YoutubeSchedule struct {
	Channels  string `json:"channels"`
	ChannelID string `json:"channel_id"`
	Calendar  string `json:"calendar"`
	PostType  string `json:"post_type"`
}

type TiktokSchedule struct {
	Accounts  string `json:"accounts"`
	AccountID string `json:"account_id"`
	Calendar  string `json:"calendar"`
	PostType  string `json:"post_type"`
}

// CalendarEntry is one Media_Calendar row. ID is the drive identifier that
// platform rows reference through media_drive_id.
type CalendarEntry struct {
	STT             string           `json:"stt"`
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	LinkOnDrive     string           `json:"link_on_drive"`
	Category        string           `json:"category"`
	Thumbnail       string           `json:"thumbnail,omitempty"`
	Youtube         YoutubeSchedule  `json:"youtube"`
	Facebook        FacebookSchedule `json:"facebook"`
	Tiktok          TiktokSchedule   `json:"tiktok"`
	GeneralCalendar string           `json:"general_calendar"`
	ScripAction     string           `json:"scrip_action"`
}

// ScheduleFor returns the platform calendar value.
func (e CalendarEntry) ScheduleFor(p Platform) string {
	switch p {
	case PlatformFacebook:
		return e.Facebook.Calendar
	case PlatformYoutube:
		return e.Youtube.Calendar
	case PlatformTiktok:
		return e.Tiktok.Calendar
	}
	return ""
}

// SetSchedule writes the platform calendar value and reports whether the
// platform is known.
func (e *CalendarEntry) SetSchedule(p Platform, when string) bool {
	switch p {
	case PlatformFacebook:
		e.Facebook.Calendar = when
	case PlatformYoutube:
		e.Youtube.Calendar = when
	case PlatformTiktok:
		e.Tiktok.Calendar = when
	default:
		return false
	}
	return true
}

// Sync flags stored in scrip_action.
const (
	syncPendingPrefix = "sync_pending:"
	syncFailedPrefix  = "sync_failed:"
)

func SyncPendingFlag(p Platform) string { return syncPendingPrefix + string(p) }
func SyncFailedFlag(p Platform) string  { return syncFailedPrefix + string(p) }

// SyncFailed reports whether the entry carries a failed-sync flag.
func (e CalendarEntry) SyncFailed() bool {
	return strings.HasPrefix(e.ScripAction, syncFailedPrefix)
}
