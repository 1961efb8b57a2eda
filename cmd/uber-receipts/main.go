package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/artifact"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/checkpoint"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/common"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/mailbox"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/sheet"
	syncer "github.com/chiayu-tsai/uber-receipts-sync/internal/sync"
)

const lockFileName = "sync.lock"

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func usage() {
	printError("usage: uber-receipts <sync|progress|reset> --label <name> [flags]\n")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	var (
		label  = fs.String("label", "", "mail label to operate on (required)")
		budget = fs.Duration("budget", 0, "wall-clock budget override for this run")
	)
	_ = fs.Parse(os.Args[2:])

	if *label == "" {
		printError("Error: --label is required\n")
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file, using environment")
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *budget > 0 {
		cfg.Sync.Budget = *budget
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}

	checkpoints, err := checkpoint.NewSQLiteStore(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Error("failed to open checkpoint store", "error", err)
		os.Exit(1)
	}
	defer checkpoints.Close()

	lockPath := filepath.Join(cfg.Storage.DataDir, lockFileName)

	switch command {
	case "sync":
		if err := runSync(cfg, checkpoints, lockPath, *label, logger); err != nil {
			if errors.Is(err, common.ErrLocked) {
				printError("Error: another run is in progress\n")
			} else {
				logger.Error("sync failed", "label", *label, "error", err)
			}
			os.Exit(1)
		}
	case "progress":
		state, err := syncer.Progress(checkpoints, *label)
		if err != nil {
			logger.Error("failed to read checkpoint", "label", *label, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Label: %s\n", *label)
		fmt.Printf("- Offset: %d\n", state.Offset)
		fmt.Printf("- Completed: %t\n", state.Completed)
	case "reset":
		if err := syncer.Reset(checkpoints, lockPath, cfg.Sync.LockWait, *label); err != nil {
			if errors.Is(err, common.ErrLocked) {
				printError("Error: another run is in progress\n")
			} else {
				logger.Error("failed to reset checkpoint", "label", *label, "error", err)
			}
			os.Exit(1)
		}
		fmt.Printf("Checkpoint for %q cleared.\n", *label)
	default:
		usage()
	}
}

func runSync(cfg *common.Config, checkpoints checkpoint.Store, lockPath, label string, logger *slog.Logger) error {
	ctx := context.Background()

	source, err := mailbox.NewGmailSource(ctx, cfg.Gmail, logger)
	if err != nil {
		return fmt.Errorf("gmail source: %w", err)
	}

	sink, err := sheet.Open(cfg.Storage.WorkbookPath, label, cfg.Sync.RowBatchSize, logger)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer sink.Close()

	artifacts := artifact.NewStore(cfg.Storage.ArtifactsDir, logger)

	orch := syncer.NewOrchestrator(logger, syncer.Config{
		Budget:          cfg.Sync.Budget,
		LockWait:        cfg.Sync.LockWait,
		LockPath:        lockPath,
		PageSize:        cfg.Sync.PageSize,
		CheckpointEvery: cfg.Sync.CheckpointEvery,
	}, source, checkpoints, sink, artifacts)

	summary, err := orch.Run(ctx, label)
	if err != nil {
		return err
	}

	fmt.Printf("Sync complete!\n")
	fmt.Printf("- Label: %s (sheet %q)\n", summary.Label, summary.ResultSheet)
	fmt.Printf("- Appended: %d\n", summary.Appended)
	fmt.Printf("- Duplicates skipped: %d\n", summary.Duplicates)
	fmt.Printf("- Cancellations skipped: %d\n", summary.Cancellations)
	fmt.Printf("- Parse failures: %d (new error rows: %d)\n", summary.ParseFailures, summary.ErrorsLogged)
	fmt.Printf("- Elapsed: %s\n", summary.Elapsed.Round(time.Millisecond))
	if summary.Completed {
		fmt.Printf("- Label exhausted; next run starts from the top.\n")
	} else {
		fmt.Printf("- Budget exceeded; resume from thread %d.\n", summary.Checkpoint.Offset)
	}
	return nil
}
