// uber-receiptsd runs the label scan on a schedule, the unattended
// counterpart of `uber-receipts sync`.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/artifact"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/checkpoint"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/common"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/mailbox"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/sheet"
	syncer "github.com/chiayu-tsai/uber-receipts-sync/internal/sync"
)

const lockFileName = "sync.lock"

func main() {
	var (
		label    = flag.String("label", "", "mail label to scan (required)")
		schedule = flag.String("schedule", "@every 30m", "cron schedule for scans")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *label == "" {
		logger.Error("--label is required")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file, using environment")
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkpoints, err := checkpoint.NewSQLiteStore(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Error("failed to open checkpoint store", "error", err)
		os.Exit(1)
	}
	defer checkpoints.Close()

	source, err := mailbox.NewGmailSource(ctx, cfg.Gmail, logger)
	if err != nil {
		logger.Error("failed to create gmail source", "error", err)
		os.Exit(1)
	}

	lockPath := filepath.Join(cfg.Storage.DataDir, lockFileName)

	runOnce := func() {
		// The workbook is opened per run so an operator can inspect or
		// copy it between scans.
		sink, err := sheet.Open(cfg.Storage.WorkbookPath, *label, cfg.Sync.RowBatchSize, logger)
		if err != nil {
			logger.Error("failed to open workbook", "error", err)
			return
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Error("failed to close workbook", "error", err)
			}
		}()

		orch := syncer.NewOrchestrator(logger, syncer.Config{
			Budget:          cfg.Sync.Budget,
			LockWait:        cfg.Sync.LockWait,
			LockPath:        lockPath,
			PageSize:        cfg.Sync.PageSize,
			CheckpointEvery: cfg.Sync.CheckpointEvery,
		}, source, checkpoints, sink, artifact.NewStore(cfg.Storage.ArtifactsDir, logger))

		summary, err := orch.Run(ctx, *label)
		if err != nil {
			if errors.Is(err, common.ErrLocked) {
				logger.Warn("scan skipped, another run holds the lock", "label", *label)
				return
			}
			logger.Error("scheduled scan failed", "label", *label, "error", err)
			return
		}
		logger.Info("scheduled scan finished",
			"label", *label,
			"appended", summary.Appended,
			"completed", summary.Completed,
			"offset", summary.Checkpoint.Offset,
		)
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, runOnce); err != nil {
		logger.Error("invalid schedule", "schedule", *schedule, "error", err)
		os.Exit(1)
	}

	logger.Info("daemon started", "label", *label, "schedule", *schedule)
	runOnce()
	c.Start()

	<-ctx.Done()
	logger.Info("shutting down...")
	<-c.Stop().Done()
	fmt.Println("stopped.")
}
