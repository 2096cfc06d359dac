package main

import (
	"fmt"

	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/stats"
	"fortidsminder/pkg/table"
	"fortidsminder/pkg/ui"

	"github.com/spf13/cobra"
)

// countsCmd represents the counts command
var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Count monuments per category",
	Long: `Count the monuments of every category in the full monument table and
record the most frequent dating and the dating distribution per category.

The result is the input of 'fortidsminder enrich'.`,
	Example: `  # Count with the default Latin-1 monument export
  fortidsminder counts

  # Count a UTF-8 export
  fortidsminder counts --input anlaeg.csv --encoding utf-8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCounts(cmd)
	},
}

func init() {
	rootCmd.AddCommand(countsCmd)

	countsCmd.Flags().StringP("input", "i", "", "monument table")
	countsCmd.Flags().String("encoding", "", "input encoding")
	countsCmd.Flags().String("label-column", "", "column holding the category label")
	countsCmd.Flags().String("dating-column", "", "column holding the dating")
	countsCmd.Flags().StringP("output-dir", "o", "", "directory for the value counts")
}

func runCounts(cmd *cobra.Command) error {
	cfg, err := loadConfig(changedFlags(cmd.Flags(), map[string]string{
		"input":        "stats-input",
		"encoding":     "stats-encoding",
		"label-column": "stats-label-column",
	}))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	log := logger.GetLogger()

	tbl, err := table.Load(cfg.Stats.Input, table.LoadOptions{
		Encoding: cfg.Stats.Encoding,
		Columns:  []string{cfg.Stats.LabelColumn, cfg.Stats.DatingColumn},
	})
	if err != nil {
		ui.PrintError("Failed to load monuments", err.Error())
		return err
	}
	ui.PrintInfo("Monuments", fmt.Sprintf("%s (%d rows)", cfg.Stats.Input, tbl.Len()))

	counts, err := stats.ValueCounts(tbl, cfg.Stats.LabelColumn, cfg.Stats.DatingColumn)
	if err != nil {
		ui.PrintError("Failed to count categories", err.Error())
		return err
	}

	path, err := table.Export(counts, cfg.Output.Directory, cfg.Stats.FileName)
	if err != nil {
		log.WithError(err).Error("Failed to export value counts")
		ui.PrintError("Failed to export value counts", err.Error())
		return err
	}

	log.InfoWithFields("Value counts exported", map[string]interface{}{
		"categories": counts.Len(),
		"path":       path,
	})
	ui.PrintInfo("Categories", fmt.Sprintf("%d", counts.Len()))
	for i := 0; i < counts.Len() && i < 5; i++ {
		fmt.Printf("  %s %s (%s)\n", ui.Dim("•"), counts.Rows[i][0], counts.Rows[i][1])
	}
	ui.PrintSuccess("Value counts written to " + path)
	return nil
}
