package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"fortidsminder/pkg/checkpoint"
	"fortidsminder/pkg/enrich"
	"fortidsminder/pkg/ui"

	"github.com/spf13/cobra"
)

var assumeYes bool

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or remove chunk checkpoints",
}

// statusCmd represents the checkpoint status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint run on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheckpointStatus(cmd)
	},
}

// clearCmd represents the checkpoint clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all chunk files and the manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheckpointClear(cmd)
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(statusCmd)
	checkpointCmd.AddCommand(clearCmd)

	checkpointCmd.PersistentFlags().String("checkpoint-dir", "", "directory for chunk checkpoint files")
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func openCheckpoints(cmd *cobra.Command) (*checkpoint.Manager, error) {
	cfg, err := loadConfig(changedFlags(cmd.Flags(), nil))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return nil, err
	}
	return checkpoint.NewManager(cfg.Checkpoint.Directory, cfg.Checkpoint.Prefix)
}

func runCheckpointStatus(cmd *cobra.Command) error {
	mgr, err := openCheckpoints(cmd)
	if err != nil {
		return err
	}

	ids, err := mgr.ChunkIDs()
	if err != nil {
		return err
	}
	manifest, err := mgr.LoadManifest()
	if err != nil {
		return err
	}

	ui.PrintInfo("Directory", mgr.Dir())
	if manifest == nil {
		ui.PrintInfo("Chunk files", fmt.Sprintf("%d (no manifest)", len(ids)))
		return nil
	}

	total := 0
	if manifest.ChunkSize > 0 {
		total = enrich.ChunkCount(manifest.TotalRows, manifest.ChunkSize)
	}
	ui.PrintInfo("Run", manifest.RunID)
	ui.PrintInfo("Source", manifest.Source)
	ui.PrintInfo("Label column", manifest.LabelColumn)
	ui.PrintInfo("Chunk size", fmt.Sprintf("%d rows", manifest.ChunkSize))
	ui.PrintInfo("Completed", fmt.Sprintf("%d/%d chunks (%d files on disk)", len(manifest.CompletedChunks), total, len(ids)))
	ui.PrintInfo("Updated", manifest.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runCheckpointClear(cmd *cobra.Command) error {
	mgr, err := openCheckpoints(cmd)
	if err != nil {
		return err
	}

	ids, err := mgr.ChunkIDs()
	if err != nil {
		return err
	}

	if !assumeYes {
		fmt.Printf("Remove %d chunk files from %s? (y/N): ", len(ids), mgr.Dir())
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	if err := mgr.Clear(); err != nil {
		ui.PrintError("Failed to clear checkpoints", err.Error())
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Removed %d chunk files", len(ids)))
	return nil
}
