package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"geoetl/pkg/checkpoint"
	"geoetl/pkg/logger"
	"geoetl/pkg/models"
	"geoetl/pkg/pipeline"
	"geoetl/pkg/recovery"
	"geoetl/pkg/source"
)

var (
	// Convert command flags
	mongoURI       string
	database       string
	outputDir      string
	workers        int
	batchSize      int
	checkpointFile string
	resumeAfter    string
	replayListFile string
	noCompress     bool
	unitTimeout    time.Duration
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Run the checkpointed conversion pipeline",
	Long: `Enumerate analysis/image work units from the source database and convert
each unit's marks into turtle batch artifacts.

Progress is checkpointed per unit; re-running after an interruption skips
completed units and retries failed or abandoned ones. Exit status is zero
only when every attempted unit completed.`,
	Example: `  # Full run with eight workers
  geoetl convert --mongo-uri mongodb://localhost:27017/ --workers 8

  # Resume manually after a known key
  geoetl convert --resume-after exec42:img-007

  # Replay exactly the units a reconcile pass flagged
  geoetl convert --replay-list recovery_reports/replay.txt`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "source MongoDB connection string")
	convertCmd.Flags().StringVar(&database, "database", "", "source database name")
	convertCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for turtle artifacts")
	convertCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent unit workers (default: CPU count)")
	convertCmd.Flags().IntVar(&batchSize, "batch-size", 0, "marks per output artifact")
	convertCmd.Flags().StringVar(&checkpointFile, "checkpoint", "", "checkpoint file path")
	convertCmd.Flags().StringVar(&resumeAfter, "resume-after", "", "skip all unit keys up to and including this execution:image key")
	convertCmd.Flags().StringVar(&replayListFile, "replay-list", "", "process only the unit keys listed in this file")
	convertCmd.Flags().BoolVar(&noCompress, "no-compress", false, "write plain .ttl instead of .ttl.gz")
	convertCmd.Flags().DurationVar(&unitTimeout, "unit-timeout", 0, "soft per-unit timeout (0 disables)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mongoURI != "" {
		cfg.Source.URI = mongoURI
	}
	if database != "" {
		cfg.Source.Database = database
	}
	if outputDir != "" {
		cfg.Output.Directory = outputDir
	}
	if workers > 0 {
		cfg.Pipeline.Workers = workers
	}
	if batchSize > 0 {
		cfg.Pipeline.BatchSize = batchSize
	}
	if checkpointFile != "" {
		cfg.Pipeline.CheckpointFile = checkpointFile
	}
	if noCompress {
		cfg.Output.Compress = false
	}
	if unitTimeout > 0 {
		cfg.Pipeline.UnitTimeout = unitTimeout
	}

	filter := source.Filter{}
	if resumeAfter != "" && replayListFile != "" {
		return fmt.Errorf("--resume-after and --replay-list are mutually exclusive")
	}
	if resumeAfter != "" {
		key, err := models.ParseUnitKey(resumeAfter)
		if err != nil {
			return err
		}
		filter.After = key
	}
	if replayListFile != "" {
		keys, err := recovery.ReadReplayList(replayListFile)
		if err != nil {
			return err
		}
		filter.Keys = keys
	}

	log := logger.GetLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := source.Connect(ctx, cfg.Source, log)
	if err != nil {
		return err
	}
	defer src.Close(context.Background())

	// the store must be open and valid before any worker starts
	store, err := checkpoint.Open(cfg.Pipeline.CheckpointFile, log)
	if err != nil {
		return err
	}

	summary, err := pipeline.New(cfg, src, store, log).Run(ctx, filter)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d attempted units failed: %w", summary.Failed, summary.Attempted, summary.Err())
	}
	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted; in-flight units will be recovered on the next run")
	}
	return nil
}

func printSummary(s *pipeline.Summary) {
	fmt.Printf("\nRun %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Printf("  units enumerated: %d\n", s.Enumerated)
	fmt.Printf("  units completed:  %d\n", s.Completed)
	fmt.Printf("  units failed:     %d\n", s.Failed)
	fmt.Printf("  units skipped:    %d\n", s.SkippedUnits)
	fmt.Printf("  marks written:    %d\n", s.MarksWritten)
	fmt.Printf("  marks skipped:    %d\n", s.MarksSkipped)
	for _, f := range s.FailedUnits {
		fmt.Printf("  failed: %s (%s)\n", f.Key, f.Reason)
	}
}
