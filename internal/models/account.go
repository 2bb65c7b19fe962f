package models

// FacebookAccount is a Facebook_Config row.
type FacebookAccount struct {
	PageName    string `json:"page_name"`
	PageID      string `json:"page_id"`
	AccessToken string `json:"access_token"`
}

// YoutubeAccount is a Youtube_Config row.
type YoutubeAccount struct {
	ChannelName  string `json:"channel_name"`
	ChannelID    string `json:"channel_id"`
	GmailChannel string `json:"gmail_channel"`
}

// HistoryRecord is a Published_History row. Keys follow the sheet headers.
type HistoryRecord struct {
	MediaDriveID   string `json:"Id_media_on_drive"`
	VideoName      string `json:"Name_video"`
	ContentType    string `json:"Type_conten"`
	PageName       string `json:"Page_name"`
	PageID         string `json:"Page_Id"`
	AccessToken    string `json:"Access_token"`
	FacebookPostID string `json:"Facebook_Post_Id"`
	ChannelName    string `json:"Channel_name"`
	ChannelID      string `json:"Channel_Id"`
	GmailChannel   string `json:"Gmail_channel"`
	YoutubePostID  string `json:"Youtube_Post_Id"`
	Thumbnail      string `json:"Thumbnail"`
	Link           string `json:"Link_On_Platfrom"`
	Status         string `json:"Status"`
}
