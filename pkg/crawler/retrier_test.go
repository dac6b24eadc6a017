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
	"wbarchive/pkg/store"
)

func seedLedger(t *testing.T, dir string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	ledger, err := store.OpenRetryLedger(filepath.Join(dir, store.LedgerFileName))
	require.NoError(t, err)
	for url, reason := range entries {
		require.NoError(t, ledger.Add(url, reason))
	}
}

func TestRetryAllPersistsRecoveredItems(t *testing.T) {
	cfg := testConfig(t)
	dir := userDirPath(cfg)

	item := mkItem("AAA", stampTime("20250601120000"), 1)
	seedLedger(t, dir, map[string]string{item.URL: "network error"})

	client := newStubClient()
	client.items["AAA"] = item

	c := New(client, cfg, logger.NewTestLogger())
	stats, err := c.RetryAll("123456")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Persisted)

	ledger, err := store.OpenRetryLedger(filepath.Join(dir, store.LedgerFileName))
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.Len())

	visited, err := store.OpenVisitedSet(filepath.Join(dir, store.VisitedFileName))
	require.NoError(t, err)
	assert.True(t, visited.Has(item.URL))
}

func TestRetryAllKeepsStillFailingEntries(t *testing.T) {
	cfg := testConfig(t)
	dir := userDirPath(cfg)

	url := feed.CanonicalURL("123456", "GONE")
	seedLedger(t, dir, map[string]string{url: "network error"})

	client := newStubClient()
	client.itemErrs["GONE"] = &errs.Error{Type: errs.ErrorTypeServerError, Message: "still down", Code: 502}

	c := New(client, cfg, logger.NewTestLogger())
	stats, err := c.RetryAll("123456")
	require.NoError(t, err)

	// One attempt per configured pass.
	assert.Equal(t, cfg.Retry.Passes, stats.Failed)

	ledger, err := store.OpenRetryLedger(filepath.Join(dir, store.LedgerFileName))
	require.NoError(t, err)
	assert.True(t, ledger.Has(url))
}

func TestRetryAllLaterRunRecoversEntry(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retry.Passes = 1
	dir := userDirPath(cfg)

	item := mkItem("FLAKY", stampTime("20250601120000"), 1)
	seedLedger(t, dir, map[string]string{item.URL: "network error"})

	client := newStubClient()
	client.items["FLAKY"] = item
	client.downloadErr[item.Media[0].URL] = &errs.Error{Type: errs.ErrorTypeNetwork, Message: "reset"}

	c := New(client, cfg, logger.NewTestLogger())

	// First invocation fails the media download, a later one succeeds
	// once the fault clears.
	stats, err := c.RetryAll("123456")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	delete(client.downloadErr, item.Media[0].URL)
	stats, err = c.RetryAll("123456")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Persisted)
}

func TestRetryAllClearsDriftedKeyForVisitedItem(t *testing.T) {
	cfg := testConfig(t)
	dir := userDirPath(cfg)

	// The ledger recorded the post under an older URL form, but the
	// post was since archived under its canonical URL.
	item := mkItem("AAA", stampTime("20250601120000"), 0)
	oldKey := "https://m.weibo.cn/detail/AAA"
	seedLedger(t, dir, map[string]string{oldKey: "network error"})

	visited, err := store.OpenVisitedSet(filepath.Join(dir, store.VisitedFileName))
	require.NoError(t, err)
	require.NoError(t, visited.Add(item.URL))

	client := newStubClient()
	client.items["AAA"] = item

	c := New(client, cfg, logger.NewTestLogger())
	stats, err := c.RetryAll("123456")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)

	ledger, err := store.OpenRetryLedger(filepath.Join(dir, store.LedgerFileName))
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.Len())
}

func TestRetryAllClearsDriftedKeyOnPersist(t *testing.T) {
	cfg := testConfig(t)
	dir := userDirPath(cfg)

	item := mkItem("BBB", stampTime("20250601120000"), 1)
	oldKey := "https://m.weibo.cn/detail/BBB"
	seedLedger(t, dir, map[string]string{oldKey: "network error"})

	client := newStubClient()
	client.items["BBB"] = item

	c := New(client, cfg, logger.NewTestLogger())
	stats, err := c.RetryAll("123456")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Persisted)

	ledger, err := store.OpenRetryLedger(filepath.Join(dir, store.LedgerFileName))
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.Len())
}

func TestRetryAllEmptyLedgerIsNoop(t *testing.T) {
	cfg := testConfig(t)

	client := newStubClient()
	c := New(client, cfg, logger.NewTestLogger())

	stats, err := c.RetryAll("123456")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, client.fetchCalls)
}

func TestRetryAllSkipsEntriesWithoutExtractableID(t *testing.T) {
	cfg := testConfig(t)
	dir := userDirPath(cfg)

	seedLedger(t, dir, map[string]string{"https://weibo.com/garbled": "bad"})

	client := newStubClient()
	c := New(client, cfg, logger.NewTestLogger())

	stats, err := c.RetryAll("123456")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	ledger, err := store.OpenRetryLedger(filepath.Join(dir, store.LedgerFileName))
	require.NoError(t, err)
	assert.True(t, ledger.Has("https://weibo.com/garbled"))
}
