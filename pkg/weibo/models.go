package weibo

import (
	"encoding/json"
)

// FlexString decodes JSON values the mobile API emits inconsistently as
// either a string or a number. since_id is the usual offender.
type FlexString string

// UnmarshalJSON accepts a JSON string, number, or null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// IndexResponse is the envelope returned by the getIndex container API.
// Ok is 1 on success; anything else means the page is unavailable.
type IndexResponse struct {
	Ok   int       `json:"ok"`
	Data IndexData `json:"data"`
}

// IndexData carries both profile lookups (userInfo, tabsInfo) and feed
// pages (cards, cardlistInfo) depending on the containerid queried.
type IndexData struct {
	UserInfo     *UserInfo     `json:"userInfo,omitempty"`
	TabsInfo     *TabsInfo     `json:"tabsInfo,omitempty"`
	Cards        []Card        `json:"cards,omitempty"`
	CardListInfo *CardListInfo `json:"cardlistInfo,omitempty"`
}

// UserInfo is the profile subset the archiver needs.
type UserInfo struct {
	ID         json.Number `json:"id"`
	ScreenName string      `json:"screen_name"`
}

// TabsInfo lists the profile tabs. The feed containerid hides in the tab
// whose tab_type is "weibo".
type TabsInfo struct {
	Tabs []Tab `json:"tabs"`
}

// Tab is one profile tab entry.
type Tab struct {
	TabType     string `json:"tab_type"`
	ContainerID string `json:"containerid"`
}

// CardListInfo holds pagination hints for a feed page.
type CardListInfo struct {
	SinceID FlexString `json:"since_id"`
	Total   int        `json:"total"`
}

// Card wraps one feed entry. Only card_type 9 carries a post; other
// types are ads, headers, and groups.
type Card struct {
	CardType int    `json:"card_type"`
	Mblog    *Mblog `json:"mblog,omitempty"`
}

// PostCardType is the card_type value of an actual post.
const PostCardType = 9

// Mblog is a post as the mobile API serializes it.
type Mblog struct {
	ID              string    `json:"id"`
	Bid             string    `json:"bid"`
	CreatedAt       string    `json:"created_at"`
	Text            string    `json:"text"`
	User            *User     `json:"user,omitempty"`
	Pics            []Pic     `json:"pics,omitempty"`
	RetweetedStatus *Mblog    `json:"retweeted_status,omitempty"`
	PageInfo        *PageInfo `json:"page_info,omitempty"`
}

// User identifies the post author.
type User struct {
	ID         json.Number `json:"id"`
	ScreenName string      `json:"screen_name"`
}

// Pic is one attached picture. LivePhoto, when present, is the URL of
// the motion component; Large.URL is then the still frame.
type Pic struct {
	PID       string  `json:"pid"`
	URL       string  `json:"url"`
	Large     PicSize `json:"large"`
	LivePhoto string  `json:"live_photo,omitempty"`
}

// PicSize is one rendition of a picture.
type PicSize struct {
	URL string `json:"url"`
}

// PageInfo carries embedded object metadata, including video streams.
type PageInfo struct {
	Type      string     `json:"type"`
	MediaInfo *MediaInfo `json:"media_info,omitempty"`
}

// MediaInfo holds video stream URLs. HD wins when both are present.
type MediaInfo struct {
	StreamURLHD string `json:"stream_url_hd"`
	StreamURL   string `json:"stream_url"`
}

// StatusResponse is the envelope of the single-status endpoint used for
// retries.
type StatusResponse struct {
	Ok   int    `json:"ok"`
	Data *Mblog `json:"data"`
}

// Feed identifies a resolved user feed: the container to page through
// and the display name used for the output directory.
type Feed struct {
	UID         string
	ContainerID string
	ScreenName  string
}
