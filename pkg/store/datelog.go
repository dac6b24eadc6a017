package store

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DateLogFileName is the stop-marker file inside a feed directory.
const DateLogFileName = "date.log"

// stampWidth is the fixed width of a valid marker (yyyyMMddHHmmss).
const stampWidth = 14

// DateLog stores the stop markers bounding incremental sweeps. The file
// may hold several timestamps but only the first line is authoritative;
// rewrites keep the lines sorted newest-first so the first line is always
// the high-water mark.
type DateLog struct {
	path string
}

// NewDateLog returns a DateLog backed by the file at path. The file is
// created lazily on the first Record.
func NewDateLog(path string) *DateLog {
	return &DateLog{path: path}
}

// Marker returns the authoritative stop marker, or "" when none has been
// recorded yet.
func (d *DateLog) Marker() (string, error) {
	file, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open date log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read date log: %w", err)
	}

	return "", nil
}

// Record adds stamp to the log and rewrites it sorted newest-first, so a
// newly recorded sweep marker becomes authoritative only if it is newer
// than everything already recorded.
func (d *DateLog) Record(stamp string) error {
	if !ValidStamp(stamp) {
		return fmt.Errorf("invalid stop marker %q: want %d digits", stamp, stampWidth)
	}

	stamps, err := d.load()
	if err != nil {
		return err
	}

	seen := map[string]struct{}{stamp: {}}
	all := []string{stamp}
	for _, s := range stamps {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		all = append(all, s)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(all)))

	tempPath := d.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary date log: %w", err)
	}
	for _, s := range all {
		if _, err := file.WriteString(s + "\n"); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write date log: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync date log: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close date log: %w", err)
	}
	if err := os.Rename(tempPath, d.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace date log: %w", err)
	}

	return nil
}

// ValidStamp reports whether s is a well-formed fixed-width marker.
func ValidStamp(s string) bool {
	if len(s) != stampWidth {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (d *DateLog) load() ([]string, error) {
	file, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open date log: %w", err)
	}
	defer file.Close()

	var stamps []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			stamps = append(stamps, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read date log: %w", err)
	}

	return stamps, nil
}
