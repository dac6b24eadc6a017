package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "wbarchive/pkg/errors"
	"wbarchive/pkg/feed"
	"wbarchive/pkg/logger"
	"wbarchive/pkg/storage"
	"wbarchive/pkg/store"
)

type processorFixture struct {
	client  *stubClient
	manager *storage.Manager
	visited *store.VisitedSet
	ledger  *store.RetryLedger
	proc    *Processor
	dir     string
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()

	dir := t.TempDir()
	manager, err := storage.NewManager(dir, 20)
	require.NoError(t, err)
	visited, err := store.OpenVisitedSet(filepath.Join(dir, store.VisitedFileName))
	require.NoError(t, err)
	ledger, err := store.OpenRetryLedger(filepath.Join(dir, store.LedgerFileName))
	require.NoError(t, err)

	client := newStubClient()
	return &processorFixture{
		client:  client,
		manager: manager,
		visited: visited,
		ledger:  ledger,
		proc:    NewProcessor(client, manager, visited, ledger, nil, logger.NewTestLogger()),
		dir:     dir,
	}
}

func TestProcessPersistsMediaItem(t *testing.T) {
	f := newProcessorFixture(t)
	item := mkItem("AAA", stampTime("20250605120000"), 2)

	outcome, err := f.proc.Process(item)
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, outcome)

	assert.True(t, f.visited.Has(item.URL))
	assert.False(t, f.ledger.Has(item.URL))

	itemDir := filepath.Join(f.dir, "2025-06-05-12-00-00-post AAA")
	for _, name := range []string{"content.txt", "image_1.jpg", "image_2.jpg"} {
		_, err := os.Stat(filepath.Join(itemDir, name))
		assert.NoError(t, err, name)
	}
}

func TestProcessNoMediaGoesToPlainText(t *testing.T) {
	f := newProcessorFixture(t)
	item := mkItem("AAA", stampTime("20250605120000"), 0)

	outcome, err := f.proc.Process(item)
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, outcome)

	_, err = os.Stat(filepath.Join(f.dir, storage.PlainTextDirName, "2025-06-05-12-00-00-post AAA.txt"))
	assert.NoError(t, err)
	assert.Empty(t, f.client.downloads)
}

func TestProcessVisitedItemIsSkipped(t *testing.T) {
	f := newProcessorFixture(t)
	item := mkItem("AAA", stampTime("20250605120000"), 1)
	require.NoError(t, f.visited.Add(item.URL))

	outcome, err := f.proc.Process(item)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, f.client.downloads)
}

func TestProcessSkipHealsStaleLedgerEntry(t *testing.T) {
	f := newProcessorFixture(t)
	item := mkItem("AAA", stampTime("20250605120000"), 1)
	require.NoError(t, f.visited.Add(item.URL))
	require.NoError(t, f.ledger.Add(item.URL, "old failure"))

	outcome, err := f.proc.Process(item)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.False(t, f.ledger.Has(item.URL))
}

func TestProcessFailureNeverMarksVisited(t *testing.T) {
	f := newProcessorFixture(t)
	item := mkItem("AAA", stampTime("20250605120000"), 3)
	f.client.downloadErr[item.Media[1].URL] = &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection reset"}

	outcome, err := f.proc.Process(item)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	assert.False(t, f.visited.Has(item.URL), "a partially downloaded item must not enter the visited set")
	assert.True(t, f.ledger.Has(item.URL))
	assert.Contains(t, f.ledger.Reason(item.URL), "connection reset")

	// The failed download aborts the item: nothing at or past the
	// failed media index may reach disk.
	itemDir := filepath.Join(f.dir, "2025-06-05-12-00-00-post AAA")
	assert.FileExists(t, filepath.Join(itemDir, "image_1.jpg"))
	assert.NoFileExists(t, filepath.Join(itemDir, "image_2.jpg"))
	assert.NoFileExists(t, filepath.Join(itemDir, "image_3.jpg"))
}

func TestProcessRetryAfterFailureCompletes(t *testing.T) {
	f := newProcessorFixture(t)
	item := mkItem("AAA", stampTime("20250605120000"), 2)
	f.client.downloadErr[item.Media[1].URL] = &errs.Error{Type: errs.ErrorTypeNetwork, Message: "reset"}

	outcome, err := f.proc.Process(item)
	require.Error(t, err)
	require.Equal(t, OutcomeFailed, outcome)

	// The failure clears and the re-run completes the item.
	delete(f.client.downloadErr, item.Media[1].URL)
	firstDownloads := len(f.client.downloads)

	outcome, err = f.proc.Process(item)
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, outcome)
	assert.True(t, f.visited.Has(item.URL))
	assert.False(t, f.ledger.Has(item.URL))
	assert.Equal(t, firstDownloads+2, len(f.client.downloads))
}

func TestProcessLivePhotoSavesBothComponents(t *testing.T) {
	f := newProcessorFixture(t)
	item := &feed.Item{
		ID:          "AAA",
		URL:         feed.CanonicalURL("123456", "AAA"),
		AuthorID:    "123456",
		PublishedAt: stampTime("20250605120000"),
		Text:        "live moment",
		Media: []feed.MediaRef{
			{
				URL:      "https://video.weibo.com/live/motion.mov",
				StillURL: "https://wx1.sinaimg.cn/large/still.jpg",
				Kind:     feed.MediaLive,
			},
		},
	}

	outcome, err := f.proc.Process(item)
	require.NoError(t, err)
	assert.Equal(t, OutcomePersisted, outcome)

	itemDir := filepath.Join(f.dir, "2025-06-05-12-00-00-live moment")
	for _, name := range []string{"live_photo_1.mov", "live_photo_1.jpg"} {
		_, err := os.Stat(filepath.Join(itemDir, name))
		assert.NoError(t, err, name)
	}
}

func TestProcessManifestContents(t *testing.T) {
	f := newProcessorFixture(t)
	item := mkItem("AAA", stampTime("20250605120000"), 1)

	_, err := f.proc.Process(item)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.dir, "2025-06-05-12-00-00-post AAA", storage.ManifestFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "URL: "+item.URL)
	assert.Contains(t, string(data), "published-at: 20250605120000")
}
