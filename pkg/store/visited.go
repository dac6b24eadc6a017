// Package store holds the durable per-feed state: the visited set, the
// retry ledger and the date log. All three are newline-delimited UTF-8
// files owned by exactly one controller per feed directory.
package store

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// VisitedFileName is the visited-set file inside a feed directory.
const VisitedFileName = "saved_urls.log"

// VisitedSet is the durable record of post URLs that were fully persisted.
// The backing file is append-only: once a URL is written it is never
// rewritten or removed by this type.
type VisitedSet struct {
	path string
	urls map[string]struct{}
}

// OpenVisitedSet loads the visited set at path, creating the file when it
// does not exist yet.
func OpenVisitedSet(path string) (*VisitedSet, error) {
	v := &VisitedSet{
		path: path,
		urls: make(map[string]struct{}),
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open visited set: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			v.urls[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read visited set: %w", err)
	}

	return v, nil
}

// Has reports whether url was already fully persisted.
func (v *VisitedSet) Has(url string) bool {
	_, ok := v.urls[url]
	return ok
}

// Add records url as persisted, appending it to the backing file. Adding
// an already-present URL is a no-op.
func (v *VisitedSet) Add(url string) error {
	if url == "" {
		return fmt.Errorf("refusing to add empty url to visited set")
	}
	if v.Has(url) {
		return nil
	}

	file, err := os.OpenFile(v.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open visited set for append: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(url + "\n"); err != nil {
		return fmt.Errorf("failed to append to visited set: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync visited set: %w", err)
	}

	v.urls[url] = struct{}{}
	return nil
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	return len(v.urls)
}
