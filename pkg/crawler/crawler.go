// Package crawler runs the incremental sweep and retry loops over one
// user's feed.
package crawler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wbarchive/pkg/config"
	"wbarchive/pkg/feed"
	"wbarchive/pkg/logger"
	"wbarchive/pkg/ratelimit"
	"wbarchive/pkg/storage"
	"wbarchive/pkg/store"
	"wbarchive/pkg/weibo"
)

// Mode selects the sweep stop policy.
type Mode string

const (
	// ModeDate stops the sweep once items are at or older than the
	// recorded stop marker.
	ModeDate Mode = "date"
	// ModeURL walks the whole feed and relies on the visited set alone.
	ModeURL Mode = "url"
)

// maxEmptyPages bounds how many consecutive pages may come back with
// zero items before the sweep assumes the feed is exhausted.
const maxEmptyPages = 3

// Stats summarizes one sweep or retry run.
type Stats struct {
	Total     int
	Persisted int
	Skipped   int
	Failed    int
	Pages     int
}

// Crawler drives a sweep over one user's feed.
type Crawler struct {
	client FeedClient
	config *config.Config
	pacer  ratelimit.Limiter
	logger logger.Logger
}

// New creates a crawler. A nil pacer disables inter-request pacing,
// which only tests want.
func New(client FeedClient, cfg *config.Config, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		client: client,
		config: cfg,
		pacer:  ratelimit.NewIntervalPacer(cfg.Pacing.Interval, cfg.Pacing.Jitter),
		logger: log,
	}
}

// SetPacer overrides the inter-request pacer.
func (c *Crawler) SetPacer(p ratelimit.Limiter) {
	c.pacer = p
}

// session is the per-user state a sweep or retry run works against.
type session struct {
	feed      *weibo.Feed
	manager   *storage.Manager
	visited   *store.VisitedSet
	ledger    *store.RetryLedger
	dateLog   *store.DateLog
	processor *Processor
}

// openSession resolves the user's feed, locates or creates the output
// directory, and opens the persistent stores inside it.
func (c *Crawler) openSession(uid string) (*session, error) {
	f, err := c.client.ResolveFeed(uid)
	if err != nil {
		return nil, fmt.Errorf("resolving feed for %s: %w", uid, err)
	}

	dir, err := c.userDir(uid, f.ScreenName)
	if err != nil {
		return nil, err
	}

	manager, err := storage.NewManager(dir, c.config.Output.ExcerptLength)
	if err != nil {
		return nil, err
	}
	visited, err := store.OpenVisitedSet(filepath.Join(dir, store.VisitedFileName))
	if err != nil {
		return nil, err
	}
	ledger, err := store.OpenRetryLedger(filepath.Join(dir, store.LedgerFileName))
	if err != nil {
		return nil, err
	}
	dateLog := store.NewDateLog(filepath.Join(dir, store.DateLogFileName))

	// Heal crash leftovers: a ledger entry whose URL is already visited
	// was persisted, the process just died before the ledger rewrite.
	for _, url := range ledger.URLs() {
		if visited.Has(url) {
			if err := ledger.Remove(url); err != nil {
				return nil, err
			}
			c.logger.InfoWithFields("reconciled stale ledger entry", map[string]interface{}{
				"url": url,
			})
		}
	}

	return &session{
		feed:      f,
		manager:   manager,
		visited:   visited,
		ledger:    ledger,
		dateLog:   dateLog,
		processor: NewProcessor(c.client, manager, visited, ledger, c.pacer, c.logger),
	}, nil
}

// userDir finds the output directory for a user. An existing directory
// whose name ends in "_<uid>" wins regardless of its name prefix, so
// renamed accounts keep their archive. Otherwise a fresh
// "<screen name>_<uid>" directory is created.
func (c *Crawler) userDir(uid, screenName string) (string, error) {
	base := c.config.Output.BaseDirectory
	if base == "" {
		base = "."
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("failed to create base directory: %w", err)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("failed to read base directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), "_"+uid) {
			return filepath.Join(base, entry.Name()), nil
		}
	}

	name := storage.SanitizeName(screenName)
	if name == "" {
		name = "user"
	}
	return filepath.Join(base, name+"_"+uid), nil
}

// Run sweeps the user's feed from the newest item backwards until the
// mode's stop condition fires. Page-level fetch errors end the sweep
// early but keep everything persisted so far.
func (c *Crawler) Run(uid string, mode Mode) (*Stats, error) {
	sess, err := c.openSession(uid)
	if err != nil {
		return nil, err
	}

	c.logger.InfoWithFields("starting sweep", map[string]interface{}{
		"uid":         uid,
		"screen_name": sess.feed.ScreenName,
		"mode":        string(mode),
		"visited":     sess.visited.Len(),
		"ledger":      sess.ledger.Len(),
	})

	marker := ""
	if mode == ModeDate {
		marker, err = sess.dateLog.Marker()
		if err != nil {
			return nil, err
		}
	}

	stats := &Stats{}
	newestStamp := ""
	cursor := feed.FirstPage()
	emptyPages := 0

sweep:
	for {
		items, next, err := c.client.FetchPage(sess.feed, cursor)
		if err != nil {
			c.logger.ErrorWithFields("page fetch failed, stopping sweep", map[string]interface{}{
				"uid":   uid,
				"page":  cursor.Page,
				"error": err.Error(),
			})
			break
		}
		stats.Pages++

		for _, item := range items {
			if mode == ModeDate && marker != "" {
				if s := item.Stamp(); s != "" && s <= marker {
					c.logger.InfoWithFields("reached stop marker", map[string]interface{}{
						"uid":    uid,
						"stamp":  s,
						"marker": marker,
					})
					break sweep
				}
			}

			stats.Total++
			outcome, err := sess.processor.Process(item)
			switch outcome {
			case OutcomePersisted:
				stats.Persisted++
				if s := item.Stamp(); s > newestStamp {
					newestStamp = s
				}
			case OutcomeSkipped:
				stats.Skipped++
			case OutcomeFailed:
				stats.Failed++
			}
			if err != nil && outcome != OutcomeFailed {
				// Store-level write errors are not retryable item
				// failures; stop rather than lose track of state.
				return stats, err
			}
		}

		if next == nil {
			break
		}
		if len(items) == 0 {
			emptyPages++
			if emptyPages >= maxEmptyPages {
				c.logger.WarnWithFields("too many consecutive empty pages, stopping", map[string]interface{}{
					"uid":   uid,
					"pages": emptyPages,
				})
				break
			}
		} else {
			emptyPages = 0
		}

		cursor = *next
		if c.pacer != nil {
			c.pacer.Wait()
		}
	}

	if mode == ModeDate && newestStamp != "" {
		if err := sess.dateLog.Record(newestStamp); err != nil {
			return stats, fmt.Errorf("recording stop marker: %w", err)
		}
	}

	c.logger.InfoWithFields("sweep finished", map[string]interface{}{
		"uid":       uid,
		"pages":     stats.Pages,
		"total":     stats.Total,
		"persisted": stats.Persisted,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
	})

	return stats, nil
}
