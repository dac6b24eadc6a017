package crawler

import (
	"wbarchive/pkg/feed"
)

// RetryAll replays every ledger entry for a user through the single
// status endpoint. It runs the configured number of passes; entries
// that fail every pass stay in the ledger for next time. The stop
// marker is never consulted here, retried items are older than it by
// construction.
func (c *Crawler) RetryAll(uid string) (*Stats, error) {
	sess, err := c.openSession(uid)
	if err != nil {
		return nil, err
	}

	passes := c.config.Retry.Passes
	if passes <= 0 {
		passes = 1
	}

	stats := &Stats{}

	for pass := 1; pass <= passes; pass++ {
		urls := sess.ledger.URLs()
		if len(urls) == 0 {
			break
		}

		c.logger.InfoWithFields("starting retry pass", map[string]interface{}{
			"uid":     uid,
			"pass":    pass,
			"pending": len(urls),
		})

		for _, url := range urls {
			bid := feed.IDFromURL(url)
			if bid == "" {
				c.logger.WarnWithFields("ledger entry has no extractable id", map[string]interface{}{
					"url": url,
				})
				continue
			}

			if c.pacer != nil {
				c.pacer.Wait()
			}

			stats.Total++
			item, err := c.client.FetchItem(bid)
			if err != nil {
				c.logger.WarnWithFields("retry fetch failed", map[string]interface{}{
					"url":   url,
					"error": err.Error(),
				})
				stats.Failed++
				continue
			}

			outcome, err := sess.processor.Process(item)
			switch outcome {
			case OutcomePersisted:
				stats.Persisted++
			case OutcomeSkipped:
				stats.Skipped++
			case OutcomeFailed:
				stats.Failed++
			}
			// The refetched item can carry a different canonical URL
			// than the ledger recorded. Whenever the item ends up
			// saved, whether just now or by an earlier run, the old
			// key must go too or the entry never drains.
			if outcome != OutcomeFailed && item.URL != url && sess.ledger.Has(url) {
				if removeErr := sess.ledger.Remove(url); removeErr != nil {
					return stats, removeErr
				}
			}
			if err != nil && outcome != OutcomeFailed {
				return stats, err
			}
		}
	}

	c.logger.InfoWithFields("retry finished", map[string]interface{}{
		"uid":       uid,
		"persisted": stats.Persisted,
		"failed":    stats.Failed,
		"remaining": sess.ledger.Len(),
	})

	return stats, nil
}
