package crawler

import (
	"fmt"

	"wbarchive/pkg/feed"
	"wbarchive/pkg/logger"
	"wbarchive/pkg/ratelimit"
	"wbarchive/pkg/storage"
	"wbarchive/pkg/store"
)

// Outcome classifies the result of processing one item.
type Outcome int

const (
	// OutcomeSkipped means the item was already persisted earlier.
	OutcomeSkipped Outcome = iota
	// OutcomePersisted means text and all media landed on disk and the
	// item entered the visited set.
	OutcomePersisted
	// OutcomeFailed means the item went to the retry ledger.
	OutcomeFailed
)

// Processor persists a single item. Persistence is all or nothing: an
// item either ends up fully on disk and in the visited set, or in the
// retry ledger, never halfway.
type Processor struct {
	fetcher MediaFetcher
	manager *storage.Manager
	visited *store.VisitedSet
	ledger  *store.RetryLedger
	pacer   ratelimit.Limiter
	logger  logger.Logger
}

// NewProcessor wires a processor over opened stores.
func NewProcessor(fetcher MediaFetcher, manager *storage.Manager, visited *store.VisitedSet, ledger *store.RetryLedger, pacer ratelimit.Limiter, log logger.Logger) *Processor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Processor{
		fetcher: fetcher,
		manager: manager,
		visited: visited,
		ledger:  ledger,
		pacer:   pacer,
		logger:  log,
	}
}

// Process persists one item. Items already in the visited set are
// skipped without touching the network. A failure at any point records
// the item in the retry ledger and reports OutcomeFailed.
func (p *Processor) Process(item *feed.Item) (Outcome, error) {
	if p.visited.Has(item.URL) {
		// A visited item still sitting in the ledger is leftover state
		// from a crash between the two writes. Heal it here.
		if p.ledger.Has(item.URL) {
			if err := p.ledger.Remove(item.URL); err != nil {
				return OutcomeSkipped, err
			}
		}
		p.logger.DebugWithFields("skipping visited item", map[string]interface{}{
			"url": item.URL,
		})
		return OutcomeSkipped, nil
	}

	if err := p.persist(item); err != nil {
		p.logger.WarnWithFields("item failed, recording for retry", map[string]interface{}{
			"url":   item.URL,
			"error": err.Error(),
		})
		if ledgerErr := p.ledger.Add(item.URL, err.Error()); ledgerErr != nil {
			return OutcomeFailed, fmt.Errorf("recording failure for %s: %w", item.URL, ledgerErr)
		}
		return OutcomeFailed, err
	}

	// Mark visited before clearing the ledger entry. A crash between
	// the two writes leaves a stale ledger entry, which reconciliation
	// and the skip path above clean up. The reverse order could lose
	// the item entirely.
	if err := p.visited.Add(item.URL); err != nil {
		return OutcomeFailed, fmt.Errorf("marking %s visited: %w", item.URL, err)
	}
	if p.ledger.Has(item.URL) {
		if err := p.ledger.Remove(item.URL); err != nil {
			return OutcomePersisted, err
		}
	}

	p.logger.InfoWithFields("item persisted", map[string]interface{}{
		"url":   item.URL,
		"media": len(item.Media),
	})
	return OutcomePersisted, nil
}

// persist writes the item's text and downloads all its media.
func (p *Processor) persist(item *feed.Item) error {
	if !item.HasMedia() {
		return p.manager.WritePlainText(item)
	}

	dir, err := p.manager.ResolveDir(item)
	if err != nil {
		return err
	}
	if err := p.manager.WriteManifest(dir, item); err != nil {
		return err
	}

	for i, ref := range item.Media {
		if p.pacer != nil {
			p.pacer.Wait()
		}

		data, err := p.fetcher.DownloadMedia(ref.URL)
		if err != nil {
			return fmt.Errorf("media %d: %w", i+1, err)
		}
		if err := p.manager.SaveBlob(p.manager.MediaPath(dir, i+1, ref), data); err != nil {
			return fmt.Errorf("media %d: %w", i+1, err)
		}

		if ref.Kind == feed.MediaLive && ref.StillURL != "" {
			still, err := p.fetcher.DownloadMedia(ref.StillURL)
			if err != nil {
				return fmt.Errorf("media %d still: %w", i+1, err)
			}
			if err := p.manager.SaveBlob(p.manager.LiveStillPath(dir, i+1, ref), still); err != nil {
				return fmt.Errorf("media %d still: %w", i+1, err)
			}
		}
	}

	return nil
}
