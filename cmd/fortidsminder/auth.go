package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"fortidsminder/pkg/auth"
	"fortidsminder/pkg/chat"
	"fortidsminder/pkg/config"
	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var verifyLogin bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage chat service credentials",
	Long: `Manage the account used to log in to the hosted chat service.

Credentials are looked up in:
  - The .env credentials file (EMAIL and PASSWORD)
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store chat service credentials",
	Example: `  # Interactive login
  fortidsminder auth login

  # Store and verify against the service
  fortidsminder auth login you@example.com --verify`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [email]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials.

If no email is provided, you will be shown a list of stored accounts
to choose from.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked passwords.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().BoolVar(&verifyLogin, "verify", false, "log in to the chat service before storing")
}

// newCredentialManager loads the configuration for the credentials file
// location and opens the manager
func newCredentialManager() (*config.Config, *auth.Manager) {
	cfg, err := loadConfig(changedFlags(rootCmd.PersistentFlags(), nil))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	manager, err := auth.NewManager(cfg.Credentials.EnvFile)
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}
	return cfg, manager
}

func runLogin(cmd *cobra.Command, args []string) {
	cfg, manager := newCredentialManager()
	reader := bufio.NewReader(os.Stdin)

	auth.ShowCredentialsGuide(os.Stdout, cfg.Credentials.EnvFile)
	fmt.Println()

	var email string
	if len(args) > 0 {
		email = strings.TrimSpace(args[0])
	}
	if email == "" {
		fmt.Print("📧 Email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read email", err.Error())
			os.Exit(1)
		}
		email = strings.TrimSpace(input)
	}
	if email == "" {
		ui.PrintError("Email is required")
		os.Exit(1)
	}

	if existing, _ := manager.Retrieve(email); existing != nil {
		fmt.Printf("\n⚠️  Account '%s' already exists. Update credentials? (y/N): ", email)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("🔐 Password (hidden): ")
	password, err := readPassword(reader)
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}

	account := &auth.Account{
		Email:        email,
		Password:     password,
		LastModified: time.Now(),
	}

	if verifyLogin {
		fmt.Println("\n🌐 Verifying against the chat service...")
		if err := verifyAccount(cfg, account); err != nil {
			ui.PrintError("Login failed", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Login verified")
	}

	fmt.Println("\n💾 Storing credentials...")
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", email))
	fmt.Println("\n📖 Next:")
	fmt.Println("   $ fortidsminder enrich")
	fmt.Printf("   $ fortidsminder enrich --account %s\n", email)
	fmt.Println("\n⚠️  Never share your credentials or config files!")
}

// verifyAccount logs in once, which also seeds the cookie cache
func verifyAccount(cfg *config.Config, account *auth.Account) error {
	client, err := chat.NewClient(chat.Options{
		BaseURL:   cfg.Chat.BaseURL,
		CookieDir: cfg.Chat.CookieDir,
		Timeout:   cfg.Chat.Timeout,
		UserAgent: cfg.Chat.UserAgent,
		Model:     cfg.Chat.Model,
	}, logger.GetLogger())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Chat.Timeout)
	defer cancel()

	if err := client.Login(ctx, account.Email, account.Password); err != nil {
		return err
	}
	return client.Close()
}

func runLogout(cmd *cobra.Command, args []string) {
	_, manager := newCredentialManager()

	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored accounts found")
			return
		}

		fmt.Println("Select account to remove:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Email)
		}
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
		if choice == 0 {
			return
		}
		if choice < 0 || choice > len(accounts) {
			ui.PrintError("Invalid choice")
			os.Exit(1)
		}
		email = accounts[choice-1].Email
	}

	if err := manager.Delete(email); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + email)
}

func runList(cmd *cobra.Command, args []string) {
	_, manager := newCredentialManager()

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'fortidsminder auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Email: %s\n", i+1, sanitized.Email)
		fmt.Printf("   Password: %s\n", sanitized.Password)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}

// readPassword reads a password from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
