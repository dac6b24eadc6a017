package store

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LedgerFileName is the retry-ledger file inside a feed directory.
const LedgerFileName = "unsaved_urls.log"

// RetryLedger is the durable record of post URLs whose persistence failed
// and which are eligible for re-attempt. Unlike the visited set, the file
// is rewritten in full on every membership change so it always holds an
// accurate snapshot of currently outstanding failures.
//
// Entries optionally carry a failure reason after a tab; plain lines
// without a reason are accepted.
type RetryLedger struct {
	path    string
	entries map[string]string // url -> reason, "" when none recorded
}

// OpenRetryLedger loads the ledger at path, creating the file when it does
// not exist yet.
func OpenRetryLedger(path string) (*RetryLedger, error) {
	l := &RetryLedger{
		path:    path,
		entries: make(map[string]string),
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open retry ledger: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		url, reason, _ := strings.Cut(line, "\t")
		l.entries[url] = reason
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read retry ledger: %w", err)
	}

	return l, nil
}

// Has reports whether url is an outstanding failure.
func (l *RetryLedger) Has(url string) bool {
	_, ok := l.entries[url]
	return ok
}

// Reason returns the recorded failure reason for url, if any.
func (l *RetryLedger) Reason(url string) string {
	return l.entries[url]
}

// Add records url as a failure and rewrites the ledger file. Re-adding an
// existing entry updates its reason.
func (l *RetryLedger) Add(url, reason string) error {
	if url == "" {
		return fmt.Errorf("refusing to add empty url to retry ledger")
	}
	l.entries[url] = reason
	return l.rewrite()
}

// Remove drops url from the ledger and rewrites the file. Removing an
// absent entry is a no-op and does not touch the file.
func (l *RetryLedger) Remove(url string) error {
	if !l.Has(url) {
		return nil
	}
	delete(l.entries, url)
	return l.rewrite()
}

// URLs returns the outstanding failure URLs in sorted order.
func (l *RetryLedger) URLs() []string {
	urls := make([]string, 0, len(l.entries))
	for url := range l.entries {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Len returns the number of outstanding failures.
func (l *RetryLedger) Len() int {
	return len(l.entries)
}

// rewrite replaces the ledger file with the current membership, going
// through a temp file and rename so a crash never leaves a half-written
// ledger behind.
func (l *RetryLedger) rewrite() error {
	tempPath := l.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, url := range l.URLs() {
		line := url
		if reason := l.entries[url]; reason != "" {
			line += "\t" + reason
		}
		if _, err := writer.WriteString(line + "\n"); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write ledger entry: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to flush ledger: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	return nil
}
