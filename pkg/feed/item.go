package feed

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// PostBase is the canonical web URL prefix for posts. The mobile API serves
// the data, but dedup keys use the desktop post URL, which stays stable
// across both.
const PostBase = "https://weibo.com"

// StampLayout is the fixed-width, lexicographically sortable timestamp
// format used for stop markers and folder names.
const StampLayout = "20060102150405"

// MediaKind identifies the type of a media reference.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaLive  MediaKind = "live"
)

// Origin records whether media came from the post itself or from a
// reshared (retweeted) post nested inside it.
type Origin string

const (
	OriginPrimary  Origin = "primary"
	OriginReshared Origin = "reshared"
)

// MediaRef is a single downloadable media descriptor. Live photos carry
// two URLs: the motion component in URL and the still frame in StillURL.
type MediaRef struct {
	URL      string
	StillURL string
	Kind     MediaKind
	Origin   Origin
}

// Item is one normalized feed entry. ID is never empty; entries without an
// ID are rejected before they enter the pipeline.
type Item struct {
	ID          string
	URL         string // canonical post URL, the dedup key
	AuthorID    string
	PublishedAt time.Time // zero means unknown
	Text        string    // cleaned text, may be empty
	Media       []MediaRef
}

// CanonicalURL builds the dedup key for a post from its author and ID.
func CanonicalURL(authorID, id string) string {
	return fmt.Sprintf("%s/%s/%s", PostBase, authorID, id)
}

// IDFromURL extracts the post ID from a canonical post URL. Returns ""
// when the URL does not carry one.
func IDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// Stamp returns the item's publish time in StampLayout, or "" when the
// time is unknown.
func (it *Item) Stamp() string {
	if it.PublishedAt.IsZero() {
		return ""
	}
	return it.PublishedAt.Format(StampLayout)
}

// FolderTime returns the publish time formatted for folder names. Unknown
// times fall back to the current time so the item still gets a home.
func (it *Item) FolderTime() string {
	t := it.PublishedAt
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("2006-01-02-15-04-05")
}

// HasMedia reports whether the item carries any downloadable media.
func (it *Item) HasMedia() bool {
	return len(it.Media) > 0
}
