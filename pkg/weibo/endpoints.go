package weibo

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the mobile API host. The mobile endpoints return JSON
	// without needing the desktop site's signed requests.
	BaseURL = "https://m.weibo.cn"

	// IndexEndpoint serves both profile lookups and feed pages.
	IndexEndpoint = "/api/container/getIndex"

	// StatusEndpoint serves a single post by bid.
	StatusEndpoint = "/statuses/show"
)

// ProfileURL constructs the getIndex URL that resolves a user's profile
// and tabs. base is normally BaseURL; tests point it at a local server.
func ProfileURL(base, uid string) string {
	params := url.Values{}
	params.Set("type", "uid")
	params.Set("value", uid)
	return fmt.Sprintf("%s%s?%s", base, IndexEndpoint, params.Encode())
}

// FeedURL constructs the getIndex URL for one feed page. A non-empty
// sinceID takes precedence over the page number.
func FeedURL(base, containerID string, page int, sinceID string) string {
	params := url.Values{}
	params.Set("containerid", containerID)
	if sinceID != "" {
		params.Set("since_id", sinceID)
	} else {
		if page < 1 {
			page = 1
		}
		params.Set("page", fmt.Sprintf("%d", page))
	}
	return fmt.Sprintf("%s%s?%s", base, IndexEndpoint, params.Encode())
}

// StatusURL constructs the single-status URL for a post bid.
func StatusURL(base, bid string) string {
	params := url.Values{}
	params.Set("id", bid)
	return fmt.Sprintf("%s%s?%s", base, StatusEndpoint, params.Encode())
}

// IsValidUID reports whether a user ID looks like a weibo numeric UID.
func IsValidUID(uid string) bool {
	if uid == "" || len(uid) > 20 {
		return false
	}
	for _, ch := range uid {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// SanitizeUID strips decoration users paste along with an ID, like a
// full profile URL or surrounding whitespace.
func SanitizeUID(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	return strings.TrimSpace(raw)
}
