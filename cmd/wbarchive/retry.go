package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"wbarchive/pkg/store"
	"wbarchive/pkg/ui"
	"wbarchive/pkg/weibo"
)

var retryCmd = &cobra.Command{
	Use:   "retry [uid...]",
	Short: "Re-attempt posts that failed to save in earlier runs",
	Long: `Retry re-fetches every post recorded in a user's retry ledger and
saves the ones that now succeed. Without arguments it scans the archive
directory and retries every user that has a non-empty ledger.`,
	Example: `  wbarchive retry
  wbarchive retry 1234567890`,
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	c, cfg, err := buildCrawler(cmd)
	if err != nil {
		return err
	}

	uids := make([]string, 0, len(args))
	for _, raw := range args {
		uid := weibo.SanitizeUID(raw)
		if !weibo.IsValidUID(uid) {
			ui.PrintError("invalid uid: %s", raw)
			continue
		}
		uids = append(uids, uid)
	}

	if len(args) == 0 {
		uids = ledgerUIDs(cfg.Output.BaseDirectory)
		if len(uids) == 0 {
			ui.PrintHighlight("Nothing to retry.")
			return nil
		}
	}

	for _, uid := range uids {
		ui.PrintInfo("Retrying", uid)
		stats, err := c.RetryAll(uid)
		if stats != nil {
			printStats(uid, stats)
		}
		if err != nil {
			ui.PrintError("retry of %s failed: %v", uid, err)
			return err
		}
	}
	return nil
}

// ledgerUIDs finds archived users with pending retry ledgers. Feed
// directories are named "<screen name>_<uid>", so the uid is the part
// after the last underscore.
func ledgerUIDs(baseDir string) []string {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil
	}

	var uids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		idx := strings.LastIndex(entry.Name(), "_")
		if idx < 0 {
			continue
		}
		uid := entry.Name()[idx+1:]
		if !weibo.IsValidUID(uid) {
			continue
		}
		ledgerPath := filepath.Join(baseDir, entry.Name(), store.LedgerFileName)
		if info, err := os.Stat(ledgerPath); err != nil || info.Size() == 0 {
			continue
		}
		uids = append(uids, uid)
	}
	return uids
}
