package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"wbarchive/pkg/auth"
	"wbarchive/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage weibo credentials",
	Long: `Manage stored weibo credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (WBARCHIVE_COOKIE)

Never share your cookie or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a weibo cookie securely",
	Long: `Store a weibo cookie securely in the system keychain or an encrypted file.

To get a cookie:
1. Log into m.weibo.cn in your browser
2. Open Developer Tools (F12) and reload the page
3. Copy the Cookie header of any api/container request`,
	Example: `  wbarchive auth login
  wbarchive auth login myaccount`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:     "logout [name]",
	Short:   "Remove stored credentials",
	Example: `  wbarchive auth logout myaccount`,
	Args:    cobra.MaximumNArgs(1),
	Run:     runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("failed to initialize credential manager: %v", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		fmt.Print("Account name: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("failed to read account name: %v", err)
			os.Exit(1)
		}
		name = strings.TrimSpace(input)
	}
	if name == "" {
		ui.PrintError("account name is required")
		os.Exit(1)
	}

	// Cookies carry the session. Read without echoing to the terminal.
	fmt.Print("Cookie (input hidden): ")
	cookieBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		ui.PrintError("failed to read cookie: %v", err)
		os.Exit(1)
	}
	cookie := strings.TrimSpace(string(cookieBytes))
	if cookie == "" {
		ui.PrintError("cookie is required")
		os.Exit(1)
	}

	fmt.Print("User agent (press Enter for default): ")
	userAgent, _ := reader.ReadString('\n')

	account := &auth.Account{
		Name:      name,
		Cookie:    cookie,
		UserAgent: strings.TrimSpace(userAgent),
	}

	if err := manager.Store(account); err != nil {
		ui.PrintError("failed to store credentials: %v", err)
		os.Exit(1)
	}

	safe := auth.SanitizeAccount(account)
	ui.PrintSuccess(fmt.Sprintf("Stored credentials for %s", safe.Name))
	ui.PrintInfo("  Cookie", safe.Cookie)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("failed to initialize credential manager: %v", err)
		os.Exit(1)
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		fmt.Print("Account name to remove: ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		name = strings.TrimSpace(input)
	}
	if name == "" {
		ui.PrintError("account name is required")
		os.Exit(1)
	}

	if err := manager.Delete(name); err != nil {
		ui.PrintError("failed to remove %s: %v", name, err)
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Removed credentials for %s", name))
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("failed to initialize credential manager: %v", err)
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("failed to list accounts: %v", err)
		os.Exit(1)
	}
	if len(accounts) == 0 {
		ui.PrintHighlight("No stored accounts. Run 'wbarchive auth login' to add one.")
		return
	}

	for _, account := range accounts {
		safe := auth.SanitizeAccount(account)
		ui.PrintInfo(safe.Name, safe.Cookie)
		if !account.LastModified.IsZero() {
			ui.PrintInfo("  modified", account.LastModified.Format("2006-01-02 15:04"))
		}
	}
}
