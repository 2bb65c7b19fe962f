package models

import (
	"errors"
	"strings"
)

type Platform string

const (
	PlatformFacebook Platform = "facebook"
	PlatformYoutube  Platform = "youtube"
	PlatformTiktok   Platform = "tiktok"
)

// Sheet names served by the storage API.
const (
	SheetCalendar       = "Media_Calendar"
	SheetFacebookDB     = "Facebook_db"
	SheetYoutubeDB      = "Youtube_db"
	SheetFacebookConfig = "Facebook_Config"
	SheetYoutubeConfig  = "Youtube_Config"
	SheetHistory        = "Published_History"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// ParsePlatform accepts facebook/youtube/tiktok in any case.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformFacebook, PlatformYoutube, PlatformTiktok:
		return p, nil
	}
	return "", ErrUnsupportedPlatform
}

// DBSheet returns the publishing sheet for platforms that have one.
func (p Platform) DBSheet() (string, error) {
	switch p {
	case PlatformFacebook:
		return SheetFacebookDB, nil
	case PlatformYoutube:
		return SheetYoutubeDB, nil
	}
	return "", ErrUnsupportedPlatform
}

// PageRef identifies the Facebook page a row publishes to.
type PageRef struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
}

// ChannelRef identifies the YouTube channel a row publishes to.
type ChannelRef struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Gmail string `json:"gmail"`
}

// PlatformRow is one Facebook_db or Youtube_db row. Page is set for Facebook,
// Channel for YouTube; the platform-specific link and post id columns share
// the Link/PostID fields through their own JSON names.
type PlatformRow struct {
	STT             string      `json:"stt"`
	MediaDriveID    string      `json:"media_drive_id"`
	VideoName       string      `json:"video_name"`
	VideoURL        string      `json:"video_url"`
	ContentType     string      `json:"content_type"`
	Hook            string      `json:"hook"`
	Body            string      `json:"body"`
	CTA             string      `json:"cta"`
	Contact         string      `json:"contact"`
	ProductHashtags string      `json:"product_hashtags"`
	BrandHashtags   string      `json:"brand_hashtags"`
	ThumbnailURL    string      `json:"thumbnail_url"`
	Page            *PageRef    `json:"page,omitempty"`
	Channel         *ChannelRef `json:"channel,omitempty"`
	PostType        string      `json:"post_type"`
	Calendar        string      `json:"calendar"`
	CompletionTime  string      `json:"completion_time"`
	FBLink          string      `json:"fb_link,omitempty"`
	FBPostID        string      `json:"fb_post_id,omitempty"`
	YTLink          string      `json:"yt_link,omitempty"`
	YTVideoID       string      `json:"yt_video_id,omitempty"`
	Status          string      `json:"status"`
	ScripAction     string      `json:"scrip_action"`
}

// ContentTypeVideo is the content_type the synchronizer writes.
const ContentTypeVideo = "Video"
