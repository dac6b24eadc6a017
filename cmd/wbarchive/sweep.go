package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wbarchive/pkg/auth"
	"wbarchive/pkg/config"
	"wbarchive/pkg/crawler"
	"wbarchive/pkg/logger"
	"wbarchive/pkg/ui"
	"wbarchive/pkg/weibo"
)

var (
	sweepMode    string
	outputDir    string
	pacing       time.Duration
	requestsRate int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <uid> [uid...]",
	Short: "Archive new posts from one or more weibo users",
	Long: `Sweep walks a user's feed from newest to oldest and saves every post
that has not been archived yet.

In date mode (the default) the sweep stops at the newest post recorded
by a previous run, so repeated sweeps only fetch what is new. In url
mode the sweep walks the whole feed and skips posts it already has,
which backfills gaps left by interrupted runs.`,
	Example: `  wbarchive sweep 1234567890
  wbarchive sweep --mode url 1234567890
  wbarchive sweep -o ~/weibo 1234567890 9876543210`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepMode, "mode", "date", "sweep mode: date (stop at last archived post) or url (full walk, skip known posts)")
	sweepCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default ./weibo)")
	sweepCmd.Flags().DurationVar(&pacing, "interval", 0, "delay between requests (e.g. 3s)")
	sweepCmd.Flags().IntVar(&requestsRate, "requests-per-minute", 0, "maximum API requests per minute")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	mode := crawler.Mode(sweepMode)
	if mode != crawler.ModeDate && mode != crawler.ModeURL {
		return fmt.Errorf("invalid mode %q: must be date or url", sweepMode)
	}

	c, cfg, err := buildCrawler(cmd)
	if err != nil {
		return err
	}

	for _, raw := range args {
		uid := weibo.SanitizeUID(raw)
		if !weibo.IsValidUID(uid) {
			ui.PrintError("invalid uid: %s", raw)
			continue
		}

		ui.PrintInfo("Sweeping", uid)
		stats, err := c.Run(uid, mode)
		if stats != nil {
			printStats(uid, stats)
		}
		if err != nil {
			ui.PrintError("sweep of %s failed: %v", uid, err)
			return err
		}
	}

	if cfg.Output.BaseDirectory != "" {
		ui.PrintInfo("Archive", cfg.Output.BaseDirectory)
	}
	return nil
}

// flagOverrides collects only the flags the user explicitly set. Unset
// flag defaults must not override config-file or environment values.
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("output") {
		flags["output"] = outputDir
	}
	if cmd.Flags().Changed("interval") {
		flags["interval"] = pacing
	}
	if cmd.Flags().Changed("requests-per-minute") {
		flags["requests-per-minute"] = requestsRate
	}
	if cmd.Flags().Changed("log-level") {
		flags["log-level"] = logLevel
	}
	return flags
}

// buildCrawler assembles the config, logger, credentials and API client
// shared by the sweep and retry commands.
func buildCrawler(cmd *cobra.Command) (*crawler.Crawler, *config.Config, error) {
	cfg, err := config.Load(configFile, flagOverrides(cmd))
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	if err := resolveCredentials(cfg); err != nil {
		return nil, nil, err
	}

	client := weibo.NewClient(cfg, log)
	return crawler.New(client, cfg, log), cfg, nil
}

// resolveCredentials fills cfg.Weibo.Cookie from the credential stores
// when the config and environment did not provide one. An explicit
// --account always wins over the config cookie.
func resolveCredentials(cfg *config.Config) error {
	manager, err := auth.NewManager()
	if err != nil {
		// No credential store available. The config cookie may still work.
		if cfg.Weibo.Cookie != "" {
			return nil
		}
		return fmt.Errorf("no cookie configured and no credential store available: %w", err)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("failed to retrieve account %q: %w", accountName, err)
		}
	} else if cfg.Weibo.Cookie == "" {
		account, err = manager.RetrieveDefault()
		if err != nil {
			return fmt.Errorf("no cookie configured: set WBARCHIVE_COOKIE or run 'wbarchive auth login'")
		}
	}

	if account != nil {
		cfg.Weibo.Cookie = account.Cookie
		if account.UserAgent != "" {
			cfg.Weibo.UserAgent = account.UserAgent
		}
	}
	return nil
}

func printStats(uid string, stats *crawler.Stats) {
	ui.PrintSuccess(fmt.Sprintf("%s: %d posts seen across %d pages", uid, stats.Total, stats.Pages))
	ui.PrintInfo("  Saved", fmt.Sprintf("%d", stats.Persisted))
	ui.PrintInfo("  Skipped", fmt.Sprintf("%d", stats.Skipped))
	if stats.Failed > 0 {
		ui.PrintWarning("  %d posts failed and were recorded for retry", stats.Failed)
	}
}
