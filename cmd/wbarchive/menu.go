package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wbarchive/pkg/crawler"
	"wbarchive/pkg/ui"
	"wbarchive/pkg/weibo"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive prompt over the sweep and retry operations",
	RunE:  runMenu,
}

func init() {
	rootCmd.AddCommand(menuCmd)
}

// runMenu drives the interactive mode used when no subcommand is given.
// The original tool is commonly run by double-click on desktop systems,
// so a plain prompt loop stays the default entry point.
func runMenu(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println()
		ui.PrintHighlight("What would you like to do?")
		fmt.Println("  1) Sweep a user's feed")
		fmt.Println("  2) Retry failed posts")
		fmt.Println("  3) Quit")
		fmt.Print("> ")

		choice, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}

		switch strings.TrimSpace(choice) {
		case "1":
			if err := menuSweep(cmd, reader); err != nil {
				ui.PrintError("%v", err)
			}
		case "2":
			if err := runRetry(cmd, nil); err != nil {
				ui.PrintError("%v", err)
			}
		case "3", "q", "quit", "exit":
			return nil
		default:
			ui.PrintWarning("Please choose 1, 2 or 3.")
		}
	}
}

func menuSweep(cmd *cobra.Command, reader *bufio.Reader) error {
	fmt.Print("User id (or profile URL): ")
	raw, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	uid := weibo.SanitizeUID(raw)
	if !weibo.IsValidUID(uid) {
		return fmt.Errorf("invalid uid: %s", strings.TrimSpace(raw))
	}

	fmt.Print("Mode [date/url] (default date): ")
	modeInput, _ := reader.ReadString('\n')
	mode := crawler.ModeDate
	switch strings.TrimSpace(strings.ToLower(modeInput)) {
	case "", "date":
	case "url":
		mode = crawler.ModeURL
	default:
		return fmt.Errorf("invalid mode: %s", strings.TrimSpace(modeInput))
	}

	c, _, err := buildCrawler(cmd)
	if err != nil {
		return err
	}

	stats, err := c.Run(uid, mode)
	if stats != nil {
		printStats(uid, stats)
	}
	return err
}
