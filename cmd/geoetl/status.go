package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"geoetl/pkg/checkpoint"
	"geoetl/pkg/logger"
	"geoetl/pkg/models"
)

var statusCheckpoint string

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the checkpoint document",
	Long: `Print unit counts and recent failures from the checkpoint without
touching the source database.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusCheckpoint, "checkpoint", "", "checkpoint file path")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if statusCheckpoint != "" {
		cfg.Pipeline.CheckpointFile = statusCheckpoint
	}

	store, err := checkpoint.Open(cfg.Pipeline.CheckpointFile, logger.GetLogger())
	if err != nil {
		return err
	}
	snap := store.Snapshot()

	fmt.Printf("Checkpoint %s\n", store.Path())
	fmt.Printf("  last updated:    %s\n", snap.LastUpdated.Format(time.RFC3339))
	fmt.Printf("  completed units: %d\n", len(snap.Completed))
	fmt.Printf("  failed units:    %d\n", len(snap.Failed))
	fmt.Printf("  claimed units:   %d\n", len(snap.Claimed))
	fmt.Printf("  marks written:   %d\n", snap.TotalMarks)

	if len(snap.Failed) > 0 {
		keys := make([]models.UnitKey, 0, len(snap.Failed))
		for key := range snap.Failed {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

		fmt.Println("\nFailed units:")
		for _, key := range keys {
			entry := snap.Failed[key]
			fmt.Printf("  %s  %s  %s\n", key, entry.FailedAt.Format(time.RFC3339), entry.Reason)
		}
	}

	if len(snap.Claimed) > 0 {
		fmt.Println("\nClaimed units:")
		keys := make([]models.UnitKey, 0, len(snap.Claimed))
		for key := range snap.Claimed {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
		for _, key := range keys {
			entry := snap.Claimed[key]
			fmt.Printf("  %s  claimed %s ago\n", key, time.Since(entry.ClaimedAt).Round(time.Second))
		}
	}
	return nil
}
