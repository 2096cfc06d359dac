package main

import (
	"fmt"
	"os"
	"runtime"

	"fortidsminder/pkg/config"
	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fortidsminder",
	Short: "Prepare and enrich the Danish ancient monument dataset",
	Long: `fortidsminder prepares the Danish ancient monument dataset.

It counts monuments per category and enriches every category with a short
generated definition and its source links, fetched from a hosted chat service.

Features:
  - Chunked enrichment with a checkpoint file per chunk
  - Resume of interrupted or partly failed runs
  - Automatic retry with exponential backoff
  - Request pacing towards the chat service
  - Credentials from a .env file, the system keychain or an encrypted file`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !quiet && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// cobra already printed the error
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./fortidsminder.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "do not print the logo")

	rootCmd.SetVersionTemplate(`fortidsminder {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// changedFlags collects the flags the user set explicitly, keyed by flag
// name, in the shape config.MergeCommandLineFlags expects. rename maps a
// local flag name onto a different config key.
func changedFlags(flags *pflag.FlagSet, rename map[string]string) map[string]interface{} {
	values := make(map[string]interface{})
	flags.Visit(func(f *pflag.Flag) {
		key := f.Name
		if alias, ok := rename[key]; ok {
			key = alias
		}
		switch f.Value.Type() {
		case "int":
			if v, err := flags.GetInt(f.Name); err == nil {
				values[key] = v
			}
		case "bool":
			if v, err := flags.GetBool(f.Name); err == nil {
				values[key] = v
			}
		default:
			values[key] = f.Value.String()
		}
	})
	if logLevel != "" {
		values["log-level"] = logLevel
	}
	return values
}

// loadConfig loads the configuration and initializes the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
