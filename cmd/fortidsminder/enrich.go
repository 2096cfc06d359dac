package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fortidsminder/pkg/auth"
	"fortidsminder/pkg/chat"
	"fortidsminder/pkg/checkpoint"
	"fortidsminder/pkg/config"
	"fortidsminder/pkg/enrich"
	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/ratelimit"
	"fortidsminder/pkg/retry"
	"fortidsminder/pkg/table"
	"fortidsminder/pkg/ui"

	"github.com/spf13/cobra"
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Add generated definitions and sources to every category",
	Long: `Read the category table, ask the chat service for a short definition of
every category and write the table back with a definition and a sources
column right of the label column.

A row whose generation fails gets the definition
"ERROR <reason>: COULD NOT GENERATE DEFINITION" and the run continues.

In chunked mode a checkpoint file is written after every chunk. When the run
is interrupted (Ctrl+C) the written chunks are folded into the output, and
--resume regenerates only rows that are still empty or failed.`,
	Example: `  # Enrich the value counts with checkpoints every 4 rows
  fortidsminder enrich

  # Continue an interrupted run on its own output
  fortidsminder enrich --input data/output/anlaegsbetydning_with_definitions.csv --resume

  # Try the first 10 rows in a single pass without web search
  fortidsminder enrich --chunked=false --limit 10 --web-search=false`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnrich(cmd)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().StringP("input", "i", "", "input CSV with the category labels")
	enrichCmd.Flags().StringP("output-dir", "o", "", "directory for the enriched table")
	enrichCmd.Flags().String("output-name", "", "file name of the enriched table")
	enrichCmd.Flags().String("encoding", "", "input encoding (detected when empty)")
	enrichCmd.Flags().String("label-column", "", "column holding the category label")
	enrichCmd.Flags().Int("chunk-size", 0, "rows per checkpoint chunk")
	enrichCmd.Flags().Bool("chunked", true, "write a checkpoint file after every chunk")
	enrichCmd.Flags().Bool("resume", false, "only regenerate empty or failed definitions")
	enrichCmd.Flags().Int("limit", 0, "single pass: only the first N rows (0 = all)")
	enrichCmd.Flags().Bool("web-search", true, "let the chat service search the web and return sources")
	enrichCmd.Flags().String("checkpoint-dir", "", "directory for chunk checkpoint files")
	enrichCmd.Flags().Bool("cleanup", true, "remove checkpoint files after a completed run")
	enrichCmd.Flags().StringP("account", "a", "", "email of the stored account to use")
}

func runEnrich(cmd *cobra.Command) error {
	cfg, err := loadConfig(changedFlags(cmd.Flags(), nil))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tbl, err := table.Load(cfg.Enrich.Input, table.LoadOptions{Encoding: cfg.Enrich.Encoding})
	if err != nil {
		ui.PrintError("Failed to load input", err.Error())
		return err
	}
	ui.PrintInfo("Input", fmt.Sprintf("%s (%d rows)", cfg.Enrich.Input, tbl.Len()))

	client, err := connectChat(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("Failed to close chat session")
		}
	}()
	ui.PrintInfo("Model", client.ActiveModel())

	generator := enrich.NewChatGenerator(
		client,
		ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute),
		newRetryConfig(cfg, log),
		cfg.Chat.WebSearch,
		log,
	)

	var checkpoints *checkpoint.Manager
	if cfg.Enrich.Chunked {
		checkpoints, err = checkpoint.NewManager(cfg.Checkpoint.Directory, cfg.Checkpoint.Prefix)
		if err != nil {
			ui.PrintError("Failed to prepare checkpoints", err.Error())
			return err
		}
	}

	runner, err := enrich.NewRunner(generator, checkpoints, enrich.Options{
		LabelColumn: cfg.Enrich.LabelColumn,
		ChunkSize:   cfg.Enrich.ChunkSize,
		Chunked:     cfg.Enrich.Chunked,
		Resume:      cfg.Enrich.Resume,
		Limit:       cfg.Enrich.Limit,
		Cleanup:     cfg.Checkpoint.Cleanup,
		Source:      cfg.Enrich.Input,
	}, log)
	if err != nil {
		ui.PrintError("Invalid enrichment options", err.Error())
		return err
	}

	display := ui.NewProgressDisplay(filepath.Base(cfg.Enrich.Input), tbl.Len(), cfg.Logging.Level == "debug")
	runner.SetObserver(display)

	ui.PrintHighlight("[ENRICHING CATEGORIES]")
	report, runErr := runner.Run(ctx, tbl)
	display.Complete(report)
	log.InfoWithFields("Enrichment finished", report.Fields())

	path, exportErr := table.Export(tbl, cfg.Output.Directory, cfg.Output.FileName)
	if exportErr != nil {
		log.WithError(exportErr).Error("Failed to export enriched table")
		ui.PrintError("Failed to export enriched table", exportErr.Error())
	} else {
		ui.PrintInfo("Output", path)
	}

	if err := errors.Join(runErr, exportErr); err != nil {
		if runErr != nil {
			ui.PrintWarning("Run stopped early; continue with --resume on the output", runErr.Error())
		}
		return err
	}
	ui.PrintSuccess("[ENRICHMENT COMPLETED]")
	return nil
}

// connectChat resolves the account and logs in to the chat service
func connectChat(ctx context.Context, cfg *config.Config) (*chat.Client, error) {
	manager, err := auth.NewManager(cfg.Credentials.EnvFile)
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return nil, err
	}

	account, err := manager.RetrieveDefault(cfg.Credentials.Account)
	if err != nil {
		ui.PrintError("No chat service credentials found", err.Error())
		fmt.Println()
		auth.ShowCredentialsGuide(os.Stdout, cfg.Credentials.EnvFile)
		return nil, err
	}
	ui.PrintInfo("Account", auth.SanitizeAccount(account).Email)

	client, err := chat.NewClient(chat.Options{
		BaseURL:   cfg.Chat.BaseURL,
		CookieDir: cfg.Chat.CookieDir,
		Timeout:   cfg.Chat.Timeout,
		UserAgent: cfg.Chat.UserAgent,
		Model:     cfg.Chat.Model,
	}, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to create chat client", err.Error())
		return nil, err
	}

	if err := client.Login(ctx, account.Email, account.Password); err != nil {
		ui.PrintError("Failed to log in to the chat service", err.Error())
		return nil, err
	}
	return client, nil
}

// newRetryConfig builds the per-row retry policy from the configuration
func newRetryConfig(cfg *config.Config, log logger.Logger) *retry.Config {
	return &retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.Retry.BaseDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Logger:  log,
	}
}
