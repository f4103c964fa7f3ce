package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"geoetl/pkg/checkpoint"
	"geoetl/pkg/logger"
	"geoetl/pkg/recovery"
	"geoetl/pkg/source"
)

var (
	// Reconcile command flags
	reconcileCheckpoint string
	reconcileMongoURI   string
	reconcileDatabase   string
	reportsDir          string
	replayOut           string
	staleAfter          time.Duration
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Audit the checkpoint against source counts and build a replay list",
	Long: `Compare the authoritative per-unit mark counts in the source database with
the counts recorded for completed units in the checkpoint. Any deficit is
broken down per unit, stale claims are demoted back to pending, and the
units still owed are written out as a replay list for 'geoetl convert
--replay-list'.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileMongoURI, "mongo-uri", "", "source MongoDB connection string")
	reconcileCmd.Flags().StringVar(&reconcileDatabase, "database", "", "source database name")
	reconcileCmd.Flags().StringVar(&reconcileCheckpoint, "checkpoint", "", "checkpoint file path")
	reconcileCmd.Flags().StringVar(&reportsDir, "reports-dir", "", "directory for recovery reports")
	reconcileCmd.Flags().StringVar(&replayOut, "replay-out", "", "replay list output path (default: <reports-dir>/replay.txt)")
	reconcileCmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "claims older than this are treated as abandoned")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if reconcileMongoURI != "" {
		cfg.Source.URI = reconcileMongoURI
	}
	if reconcileDatabase != "" {
		cfg.Source.Database = reconcileDatabase
	}
	if reconcileCheckpoint != "" {
		cfg.Pipeline.CheckpointFile = reconcileCheckpoint
	}
	if reportsDir != "" {
		cfg.Pipeline.ReportsDirectory = reportsDir
	}
	if staleAfter > 0 {
		cfg.Pipeline.StaleAfter = staleAfter
	}

	log := logger.GetLogger()
	ctx := cmd.Context()

	src, err := source.Connect(ctx, cfg.Source, log)
	if err != nil {
		return err
	}
	defer src.Close(context.Background())

	store, err := checkpoint.Open(cfg.Pipeline.CheckpointFile, log)
	if err != nil {
		return err
	}

	analyzer := recovery.NewAnalyzer(src, store, cfg.Pipeline.StaleAfter, log)
	report, err := analyzer.Analyze(ctx)
	if err != nil {
		return err
	}

	reportPath, err := recovery.WriteReport(report, cfg.Pipeline.ReportsDirectory)
	if err != nil {
		return err
	}

	replayPath := replayOut
	if replayPath == "" {
		replayPath = filepath.Join(cfg.Pipeline.ReportsDirectory, "replay.txt")
	}
	if err := recovery.WriteReplayList(report, replayPath); err != nil {
		return err
	}

	fmt.Printf("\nReconciliation report %s\n", report.RunID)
	fmt.Printf("  expected marks:   %d\n", report.ExpectedTotal)
	fmt.Printf("  processed marks:  %d\n", report.ProcessedTotal)
	fmt.Printf("  deficit:          %d\n", report.Deficit)
	fmt.Printf("  units total:      %d\n", report.TotalUnits)
	fmt.Printf("  units completed:  %d\n", report.CompletedUnits)
	fmt.Printf("  units failed:     %d\n", report.FailedUnits)
	fmt.Printf("  stale claims:     %d\n", report.StaleUnits)
	fmt.Printf("  replay list:      %d units -> %s\n", len(report.ReplayList), replayPath)
	fmt.Printf("  full report:      %s\n", reportPath)

	if report.Deficit > 0 {
		fmt.Printf("\nRun 'geoetl convert --replay-list %s' to close the gap.\n", replayPath)
	}
	return nil
}
