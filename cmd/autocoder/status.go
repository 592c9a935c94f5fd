package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sundog75/autocoder/internal/catalog"
	"github.com/sundog75/autocoder/internal/pool"
	"github.com/sundog75/autocoder/pkg/models"
)

var statusProjectDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current catalog and pool state",
	Long: `Display a snapshot of the feature catalog: how many features pass,
are in progress, or are still pending.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusProjectDir, "project-dir", "", "project directory to inspect (defaults to the current directory)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir := statusProjectDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		dir = cwd
	}

	path := catalog.DefaultPath(dir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No catalog found. Run 'autocoder run --project-dir <dir>' to start.")
		return nil
	}

	store, err := catalog.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	snap, err := store.Snapshot(context.Background())
	if err != nil {
		return fmt.Errorf("snapshot catalog: %w", err)
	}

	passing, inProgress, pending := summarizeCatalog(snap)

	// The pool status query (spec §6) is only answerable by a live Manager,
	// which runs in a separate `run` process. The most recent `run`
	// persists a snapshot to the status file for this process to read.
	if poolSnap, found, err := pool.ReadStatusFile(dir); err != nil {
		fmt.Fprintf(os.Stderr, "autocoder: reading pool status: %v\n", err)
	} else if found {
		runningLabel := "no"
		if poolSnap.IsRunning {
			runningLabel = "yes"
		}
		fmt.Printf("Pool: running=%s  coding=%d/%d  testing=%d/%d  yolo=%v\n",
			runningLabel, poolSnap.CodingAgentCount, poolSnap.MaxConcurrency,
			poolSnap.TestingAgentCount, poolSnap.TestingAgentRatio, poolSnap.YoloMode)
		if len(poolSnap.RunningFeatures) > 0 {
			fmt.Printf("  Running features: %v\n", poolSnap.RunningFeatures)
		}
	} else {
		fmt.Println("Pool: no run has reported status for this project yet.")
	}

	fmt.Printf("Catalog: %s\n", path)
	fmt.Printf("  Total features:  %d\n", len(snap))
	color.New(color.FgGreen).Printf("  Passing:         %d\n", passing)
	color.New(color.FgYellow).Printf("  In progress:     %d\n", inProgress)
	fmt.Printf("  Pending:         %d\n", pending)

	return nil
}

// summarizeCatalog counts features by state: passing, in progress (claimed
// by a coding agent but not yet passing), or pending (neither).
func summarizeCatalog(snap []models.Feature) (passing, inProgress, pending int) {
	for _, f := range snap {
		switch {
		case f.Passes:
			passing++
		case f.InProgress:
			inProgress++
		default:
			pending++
		}
	}
	return passing, inProgress, pending
}
