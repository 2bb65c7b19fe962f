package sheets

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"contentops/internal/models"
)

// Layout maps a sheet's columns, left to right, to dotted JSON paths of the
// row objects the storage API serves. Defaults apply when a value is written
// empty.
type Layout struct {
	Columns  []string
	Defaults map[string]string
}

var layouts = map[string]Layout{
	models.SheetCalendar: {Columns: []string{
		"stt", "id", "name", "link_on_drive", "category",
		"youtube.channels", "youtube.channel_id", "youtube.calendar", "youtube.post_type",
		"facebook.pages", "facebook.page_id", "facebook.calendar", "facebook.post_type",
		"tiktok.accounts", "tiktok.account_id", "tiktok.calendar", "tiktok.post_type",
		"general_calendar", "scrip_action",
	}},
	models.SheetFacebookDB: {Columns: []string{
		"stt", "media_drive_id", "video_name", "video_url", "content_type",
		"hook", "body", "cta", "contact", "product_hashtags", "brand_hashtags",
		"thumbnail_url", "page.name", "page.id", "page.access_token",
		"post_type", "calendar", "completion_time", "fb_link", "fb_post_id",
		"status", "scrip_action",
	}},
	models.SheetYoutubeDB: {Columns: []string{
		"stt", "media_drive_id", "video_name", "video_url", "content_type",
		"hook", "body", "cta", "product_hashtags", "brand_hashtags", "contact",
		"channel.name", "channel.id", "channel.gmail",
		"post_type", "calendar", "completion_time", "yt_link", "yt_video_id",
		"status", "scrip_action",
	}},
	models.SheetFacebookConfig: {Columns: []string{"page_name", "page_id", "access_token"}},
	models.SheetYoutubeConfig:  {Columns: []string{"channel_name", "channel_id", "gmail_channel"}},
	models.SheetHistory: {
		Columns: []string{
			"Id_media_on_drive", "Name_video", "Type_conten", "Page_name", "Page_Id",
			"Access_token", "Facebook_Post_Id", "Channel_name", "Channel_Id", "Gmail_channel",
			"Youtube_Post_Id", "Thumbnail", "Link_On_Platfrom", "Status",
		},
		Defaults: map[string]string{"Status": "SUCCESS"},
	},
}

// LayoutFor returns the column layout of a known sheet.
func LayoutFor(sheet string) (Layout, error) {
	l, ok := layouts[sheet]
	if !ok {
		return Layout{}, fmt.Errorf("no column layout for sheet %q", sheet)
	}
	return l, nil
}

// LastColumn is the A1 letter of the rightmost column.
func (l Layout) LastColumn() string {
	return ColumnLetter(len(l.Columns) - 1)
}

// Decode turns raw cell values into a row object. Short rows are padded.
func (l Layout) Decode(values []any) (json.RawMessage, error) {
	obj := make(map[string]any)
	for i, path := range l.Columns {
		cell := ""
		if i < len(values) {
			cell = cellString(values[i])
		}
		setPath(obj, path, cell)
	}
	return json.Marshal(obj)
}

// Encode flattens a row object into cell values in column order.
func (l Layout) Encode(row any) ([]any, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("row is not an object: %w", err)
	}

	out := make([]any, len(l.Columns))
	for i, path := range l.Columns {
		v := cellString(getPath(obj, path))
		if v == "" {
			v = l.Defaults[path]
		}
		out[i] = v
	}
	return out, nil
}

// ColumnLetter converts a zero-based column index to A1 notation.
func ColumnLetter(idx int) string {
	if idx < 0 {
		return ""
	}
	var b []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

func setPath(obj map[string]any, path, value string) {
	parts := strings.Split(path, ".")
	cur := obj
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func getPath(obj map[string]any, path string) any {
	var cur any = obj
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
