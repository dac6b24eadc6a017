// Package storage maps feed items to filesystem destinations and persists
// their manifests and media blobs.
package storage

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"wbarchive/pkg/feed"
)

// ManifestFileName is the per-item manifest inside an item directory.
const ManifestFileName = "content.txt"

// PlainTextDirName is the bucket for items that carry no media at all.
const PlainTextDirName = "plain_txt"

// ErrNameExhausted is returned when shrinking a destination name cannot
// produce a creatable path. The caller must treat this as a permanent
// resolution failure for the item.
var ErrNameExhausted = fmt.Errorf("destination name exhausted while shrinking")

var (
	illegalChars  = regexp.MustCompile(`[\\/*?:"<>|#@\n\r]`)
	excerptKeep   = regexp.MustCompile(`[^\p{Han}\p{Latin}0-9_\s-]`)
	spaceCollapse = regexp.MustCompile(`\s+`)
)

// Manager resolves item destinations under one feed directory and writes
// manifests and media files.
type Manager struct {
	root       string
	maxExcerpt int
}

// NewManager creates a Manager rooted at dir, creating it if needed.
// maxExcerpt caps the text excerpt used in folder names.
func NewManager(dir string, maxExcerpt int) (*Manager, error) {
	if maxExcerpt <= 0 {
		maxExcerpt = 20
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Manager{root: dir, maxExcerpt: maxExcerpt}, nil
}

// Root returns the feed directory the manager writes under.
func (m *Manager) Root() string {
	return m.root
}

// Excerpt produces the sanitized, length-capped name fragment for an
// item's text. It can come back empty for text made of nothing but markup
// and punctuation.
func (m *Manager) Excerpt(text string) string {
	s := excerptKeep.ReplaceAllString(text, "")
	s = spaceCollapse.ReplaceAllString(s, " ")
	s = strings.Trim(s, " .-_")
	runes := []rune(s)
	if len(runes) > m.maxExcerpt {
		runes = runes[:m.maxExcerpt]
	}
	return strings.Trim(string(runes), " .-_")
}

// ResolveDir finds the destination directory for an item, creating it.
// Names are <publish-time>-<excerpt>; items without usable text get an
// ID-keyed name instead. A name conflict with a different item (same
// excerpt, different post) also routes through the ID-keyed fallback so
// two items never share a destination. Path-creation failures shrink the
// excerpt portion in a bounded loop.
func (m *Manager) ResolveDir(item *feed.Item) (string, error) {
	excerpt := m.Excerpt(item.Text)
	if excerpt == "" {
		excerpt = SanitizeName(item.ID)
	}

	dir, err := m.createShrinking(item.FolderTime(), excerpt)
	if err != nil {
		return "", err
	}

	// An existing manifest for a different post means two items produced
	// the same name; give this one an ID-keyed destination.
	if url, ok := manifestURL(dir); ok && url != item.URL {
		return m.createShrinking(item.FolderTime(), SanitizeName(item.ID))
	}

	return dir, nil
}

// createShrinking attempts to create <root>/<fixed>-<variable>, shortening
// the variable portion on each failure. Terminates once the variable part
// is gone; the final attempt uses the fixed part alone.
func (m *Manager) createShrinking(fixed, variable string) (string, error) {
	for {
		name := fixed
		if variable != "" {
			name = fixed + "-" + variable
		}
		p := filepath.Join(m.root, name)

		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			// Name taken by a plain file; treat as a creation conflict.
		} else if err := os.MkdirAll(p, 0755); err == nil {
			return p, nil
		}

		if variable == "" {
			return "", ErrNameExhausted
		}
		runes := []rune(variable)
		variable = strings.Trim(string(runes[:len(runes)/2]), " .-_")
	}
}

// WriteManifest writes the item manifest into dir. Creation is
// idempotent: an existing manifest is left untouched so a partial retry
// never clobbers what a finished run wrote.
func (m *Manager) WriteManifest(dir string, item *feed.Item) error {
	p := filepath.Join(dir, ManifestFileName)
	if _, err := os.Stat(p); err == nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create item directory: %w", err)
	}

	content := manifestBody(item)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// WritePlainText persists a no-media item as a single manifest file in
// the plain_txt bucket. Idempotent like WriteManifest.
func (m *Manager) WritePlainText(item *feed.Item) error {
	dir := filepath.Join(m.root, PlainTextDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create plain text directory: %w", err)
	}

	name := m.Excerpt(item.Text)
	if name == "" {
		name = SanitizeName(item.ID)
	}
	p := filepath.Join(dir, item.FolderTime()+"-"+name+".txt")
	if _, err := os.Stat(p); err == nil {
		return nil
	}

	if err := os.WriteFile(p, []byte(manifestBody(item)), 0644); err != nil {
		return fmt.Errorf("failed to write plain text item: %w", err)
	}
	return nil
}

// MediaPath returns the destination for the primary component of the
// index-th media reference (1-based). Extensions come from the source URL
// when recognizable, with per-kind defaults otherwise.
func (m *Manager) MediaPath(dir string, index int, ref feed.MediaRef) string {
	switch ref.Kind {
	case feed.MediaVideo:
		return filepath.Join(dir, fmt.Sprintf("video_%d%s", index, extFromURL(ref.URL, ".mp4")))
	case feed.MediaLive:
		return filepath.Join(dir, fmt.Sprintf("live_photo_%d%s", index, extFromURL(ref.URL, ".mov")))
	default:
		return filepath.Join(dir, fmt.Sprintf("image_%d%s", index, extFromURL(ref.URL, ".jpg")))
	}
}

// LiveStillPath returns the destination for the still frame of a live
// photo at the given media index.
func (m *Manager) LiveStillPath(dir string, index int, ref feed.MediaRef) string {
	return filepath.Join(dir, fmt.Sprintf("live_photo_%d%s", index, extFromURL(ref.StillURL, ".jpg")))
}

// SaveBlob writes data to path atomically via a temp file and rename. An
// existing file is left alone so re-runs never re-download or truncate
// finished media.
func (m *Manager) SaveBlob(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	tempPath := path + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, writeErr := out.Write(data)
	closeErr := out.Close()

	if writeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write media data: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close media file: %w", closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

func manifestBody(item *feed.Item) string {
	published := "unknown"
	if s := item.Stamp(); s != "" {
		published = s
	}
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", item.URL)
	fmt.Fprintf(&b, "published-at: %s\n", published)
	fmt.Fprintf(&b, "content: %s\n", item.Text)
	return b.String()
}

// manifestURL reads the URL field of the manifest in dir, if one exists.
func manifestURL(dir string) (string, bool) {
	file, err := os.Open(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return "", false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if url, ok := strings.CutPrefix(scanner.Text(), "URL: "); ok {
			return strings.TrimSpace(url), true
		}
	}
	return "", false
}

// SanitizeName strips characters that cannot appear in file names.
func SanitizeName(name string) string {
	return strings.TrimSpace(illegalChars.ReplaceAllString(name, ""))
}

func extFromURL(raw string, fallback string) string {
	clean := raw
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	switch strings.ToLower(path.Ext(clean)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4", ".mov":
		return strings.ToLower(path.Ext(clean))
	default:
		return fallback
	}
}
