package weibo

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	errs "wbarchive/pkg/errors"
	"wbarchive/pkg/feed"
	"wbarchive/pkg/logger"
)

// CreatedAtLayout is the timestamp format the mobile API uses, e.g.
// "Sat Jun 01 12:00:00 +0800 2025".
const CreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

var (
	htmlTags   = regexp.MustCompile(`<[^>]+>`)
	lineBreaks = regexp.MustCompile(`[\n\r]`)
)

// CleanText strips HTML markup and collapses line breaks in a post's
// text field. The API serves text as an HTML fragment.
func CleanText(raw string) string {
	out := htmlTags.ReplaceAllString(raw, "")
	out = lineBreaks.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// ParseCards converts the cards of one feed page into normalized items.
// Non-post cards and posts without a bid are dropped, the latter with a
// warning since they cannot be retried later.
func ParseCards(cards []Card, log logger.Logger) []*feed.Item {
	if log == nil {
		log = logger.GetLogger()
	}

	items := make([]*feed.Item, 0, len(cards))
	for _, card := range cards {
		if card.CardType != PostCardType || card.Mblog == nil {
			continue
		}
		item, err := ParseMblog(card.Mblog)
		if err != nil {
			log.WarnWithFields("dropping unprocessable card", map[string]interface{}{
				"mblog_id": card.Mblog.ID,
				"error":    err.Error(),
			})
			continue
		}
		items = append(items, item)
	}
	return items
}

// ParseMblog normalizes one post. A post without a bid has no stable
// identity and is rejected.
func ParseMblog(m *Mblog) (*feed.Item, error) {
	if m.Bid == "" {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "mblog has no bid",
			Code:    http.StatusOK,
		}
	}

	authorID := ""
	if m.User != nil {
		authorID = m.User.ID.String()
	}

	item := &feed.Item{
		ID:       m.Bid,
		URL:      feed.CanonicalURL(authorID, m.Bid),
		AuthorID: authorID,
		Text:     CleanText(m.Text),
	}

	if t, err := time.Parse(CreatedAtLayout, m.CreatedAt); err == nil {
		item.PublishedAt = t
	}

	item.Media = append(item.Media, picsToMedia(m.Pics, feed.OriginPrimary)...)
	if m.RetweetedStatus != nil {
		item.Media = append(item.Media, picsToMedia(m.RetweetedStatus.Pics, feed.OriginReshared)...)
	}

	if m.PageInfo != nil && m.PageInfo.MediaInfo != nil {
		streamURL := m.PageInfo.MediaInfo.StreamURLHD
		if streamURL == "" {
			streamURL = m.PageInfo.MediaInfo.StreamURL
		}
		if streamURL != "" {
			item.Media = append(item.Media, feed.MediaRef{
				URL:    streamURL,
				Kind:   feed.MediaVideo,
				Origin: feed.OriginPrimary,
			})
		}
	}

	return item, nil
}

// picsToMedia converts picture attachments, keeping feed order. A pic
// with a live_photo URL becomes a live reference carrying both the
// motion file and the still frame.
func picsToMedia(pics []Pic, origin feed.Origin) []feed.MediaRef {
	refs := make([]feed.MediaRef, 0, len(pics))
	for _, pic := range pics {
		still := pic.Large.URL
		if still == "" {
			still = pic.URL
		}
		switch {
		case pic.LivePhoto != "":
			refs = append(refs, feed.MediaRef{
				URL:      pic.LivePhoto,
				StillURL: still,
				Kind:     feed.MediaLive,
				Origin:   origin,
			})
		case still != "":
			refs = append(refs, feed.MediaRef{
				URL:    still,
				Kind:   feed.MediaImage,
				Origin: origin,
			})
		}
	}
	return refs
}
