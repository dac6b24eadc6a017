package crawler

import (
	"wbarchive/pkg/feed"
	"wbarchive/pkg/weibo"
)

// MediaFetcher downloads media blobs.
type MediaFetcher interface {
	DownloadMedia(url string) ([]byte, error)
}

// FeedClient defines the API operations the crawl and retry loops need.
type FeedClient interface {
	MediaFetcher
	ResolveFeed(uid string) (*weibo.Feed, error)
	FetchPage(f *weibo.Feed, cursor feed.Cursor) ([]*feed.Item, *feed.Cursor, error)
	FetchItem(bid string) (*feed.Item, error)
}
