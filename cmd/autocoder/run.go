package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sundog75/autocoder/internal/catalog"
	"github.com/sundog75/autocoder/internal/config"
	"github.com/sundog75/autocoder/internal/debuglog"
	"github.com/sundog75/autocoder/internal/pool"
	"github.com/sundog75/autocoder/internal/session"
	"github.com/sundog75/autocoder/pkg/models"
)

var (
	runProjectDir        string
	runMaxConcurrency    int
	runModel             string
	runYolo              bool
	runTestingAgentRatio int
	runWorkerBinary      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler loop against a project",
	Long: `Run drives the coding and testing agent pools against a project's
feature catalog until every feature passes or is left pending after
exhausting its retry budget.

An operator can request a clean shutdown at any point by creating a file
named "stop" under <project-dir>/.autocoder/control, or by sending
SIGINT/SIGTERM.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runProjectDir, "project-dir", "", "project directory to operate on (required)")
	runCmd.Flags().IntVarP(&runMaxConcurrency, "max-concurrency", "p", 0, "maximum concurrent coding agents (1-5, default 3)")
	runCmd.Flags().StringVar(&runModel, "model", "", "model passed through to worker agents")
	runCmd.Flags().BoolVar(&runYolo, "yolo", false, "disable the testing pool and pass --yolo through to workers")
	runCmd.Flags().IntVar(&runTestingAgentRatio, "testing-agent-ratio", -1, "maximum concurrent testing agents (0-3, default 1)")
	runCmd.Flags().StringVar(&runWorkerBinary, "worker-binary", "", "path to the worker executable")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runProjectDir == "" {
		fmt.Fprintln(os.Stderr, "autocoder: --project-dir is required")
		os.Exit(1)
	}
	if info, err := os.Stat(runProjectDir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "autocoder: project directory %q does not exist\n", runProjectDir)
		os.Exit(1)
	}

	cfg, err := config.Load(runProjectDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyFlags(runProjectDir, runModel, runWorkerBinary, runMaxConcurrency, runTestingAgentRatio,
		cmd.Flags().Changed("yolo"), runYolo)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "autocoder: %v\n", err)
		os.Exit(1)
	}

	logPath := filepath.Join(cfg.ProjectDir, ".autocoder", "debug.log")
	logger, err := debuglog.New(logPath)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer logger.Close()

	store, err := catalog.Open(catalog.DefaultPath(cfg.ProjectDir))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	if hints, found, err := config.LoadSeedHints(cfg.ProjectDir); err != nil {
		logger.Log("config", "seed hints present but unreadable", debuglog.F("error", err))
	} else if found {
		logger.Log("config", "seed hints loaded",
			debuglog.F("description", hints.Description), debuglog.F("priorities", len(hints.Priorities)))
	}

	statusColor := func(s models.AgentStatus) *color.Color {
		switch s {
		case models.AgentStatusRunning:
			return color.New(color.FgYellow)
		case models.AgentStatusCompleted:
			return color.New(color.FgGreen)
		case models.AgentStatusFailed:
			return color.New(color.FgRed)
		default:
			return color.New(color.FgWhite)
		}
	}

	mgr := pool.New(store, cfg.WorkerSpec(), cfg.MaxConcurrency, cfg.TestingAgentRatio, cfg.Yolo,
		pool.WithLogger(logger),
		pool.WithOnStatus(func(featureID int64, status models.AgentStatus) {
			statusColor(status).Printf("[feature %d] %s\n", featureID, status)
		}),
		pool.WithOnOutput(func(featureID int64, line string) {
			fmt.Printf("[feature %d] %s\n", featureID, line)
			logger.Log("agent-output", line, debuglog.F("feature_id", featureID))
		}),
	)

	sess := session.New(store, mgr, cfg.WorkerSpec(), session.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	runErr := sess.Run(ctx)
	sess.Shutdown(5 * time.Second)

	if runErr == context.Canceled {
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("session run: %w", runErr)
	}

	color.New(color.FgGreen, color.Bold).Println("All features complete.")
	return nil
}
