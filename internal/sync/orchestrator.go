// Package sync drives the resumable scan of a mail label into the receipts
// workbook and artifact tree.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/checkpoint"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/entity"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/extract"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/mailbox"
)

// TableSink is the results/errors table pair for one label.
type TableSink interface {
	LoadExisting() (keys map[string]struct{}, errorIDs map[string]struct{}, err error)
	AppendResult(entity.ResultRow) error
	AppendError(entity.ErrorRow) (bool, error)
	Flush() error
	ResultSheet() string
	ErrorSheet() string
}

// Artifacts stores one rendered document per receipt.
type Artifacts interface {
	FolderFor(label string) (string, error)
	Ensure(label, fileName, body string) (path string, reused bool, err error)
}

// Config holds the orchestrator tunables.
type Config struct {
	Budget          time.Duration
	LockWait        time.Duration
	LockPath        string
	PageSize        int
	CheckpointEvery int
	// Now is the clock used for the budget; nil means time.Now.
	Now func() time.Time
}

// Orchestrator runs the scan state machine:
// SCANNING -> BUDGET_EXCEEDED | LABEL_EXHAUSTED.
type Orchestrator struct {
	logger      *slog.Logger
	cfg         Config
	source      mailbox.Source
	checkpoints checkpoint.Store
	sink        TableSink
	artifacts   Artifacts
}

func NewOrchestrator(
	logger *slog.Logger,
	cfg Config,
	source mailbox.Source,
	checkpoints checkpoint.Store,
	sink TableSink,
	artifacts Artifacts,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		logger:      logger,
		cfg:         cfg,
		source:      source,
		checkpoints: checkpoints,
		sink:        sink,
		artifacts:   artifacts,
	}
}

// Run scans the label until it is exhausted or the budget expires, and
// returns the run summary. A held lock or a missing label aborts before any
// state is touched.
func (o *Orchestrator) Run(ctx context.Context, label string) (entity.RunSummary, error) {
	summary := entity.RunSummary{
		RunID:       uuid.New(),
		Label:       label,
		ResultSheet: o.sink.ResultSheet(),
		ErrorSheet:  o.sink.ErrorSheet(),
	}

	lock, err := AcquireLock(o.cfg.LockPath, o.cfg.LockWait)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.logger.Error("sync.lock.release_failed", "err", err)
		}
	}()

	if err := o.source.ResolveLabel(ctx, label); err != nil {
		return summary, err
	}
	if folder, err := o.artifacts.FolderFor(label); err == nil {
		summary.FolderPath = folder
	} else {
		return summary, err
	}

	state, err := o.checkpoints.Get(label)
	if err != nil {
		return summary, err
	}
	offset := state.Offset
	if state.Completed {
		// A finished pass restarts from the top to pick up new mail.
		offset = 0
	}

	keys, _, err := o.sink.LoadExisting()
	if err != nil {
		return summary, err
	}

	deadline := NewDeadlineWithClock(o.cfg.Budget, o.cfg.Now)
	o.logger.Info("sync.run.start",
		"run_id", summary.RunID, "label", label,
		"offset", offset, "known_keys", len(keys),
	)

	threadsSinceSave := 0
scan:
	for {
		page, err := o.source.Page(ctx, label, offset, o.cfg.PageSize)
		if err != nil {
			return summary, err
		}
		if len(page) == 0 {
			break // LABEL_EXHAUSTED
		}

		for _, thread := range page {
			for _, msg := range thread.Messages {
				if deadline.Expired() {
					// Mid-thread: the thread is not counted as advanced.
					if err := o.suspend(label, offset, &summary, deadline); err != nil {
						return summary, err
					}
					return summary, nil
				}
				if err := o.processMessage(label, msg, keys, &summary); err != nil {
					return summary, err
				}
			}

			offset++
			threadsSinceSave++
			if threadsSinceSave >= o.cfg.CheckpointEvery {
				threadsSinceSave = 0
				if err := o.sink.Flush(); err != nil {
					return summary, err
				}
				if err := o.checkpoints.Save(label, entity.CheckpointState{Offset: offset}); err != nil {
					return summary, err
				}
			}
			if deadline.Expired() {
				if err := o.suspend(label, offset, &summary, deadline); err != nil {
					return summary, err
				}
				return summary, nil
			}
		}
		if len(page) < o.cfg.PageSize {
			break scan
		}
	}

	// LABEL_EXHAUSTED: a full pass finished.
	if err := o.sink.Flush(); err != nil {
		return summary, err
	}
	final := entity.CheckpointState{Offset: 0, Completed: true}
	if err := o.checkpoints.Save(label, final); err != nil {
		return summary, err
	}
	summary.Completed = true
	summary.Checkpoint = final
	summary.Elapsed = deadline.Elapsed()
	o.logger.Info("sync.run.ok",
		"run_id", summary.RunID, "label", label,
		"appended", summary.Appended, "errors", summary.ErrorsLogged,
		"duplicates", summary.Duplicates, "cancellations", summary.Cancellations,
		"parse_failures", summary.ParseFailures,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

// suspend flushes buffers and persists a resumable checkpoint when the
// budget runs out (BUDGET_EXCEEDED).
func (o *Orchestrator) suspend(label string, offset int, summary *entity.RunSummary, deadline *Deadline) error {
	if err := o.sink.Flush(); err != nil {
		return err
	}
	saved := entity.CheckpointState{Offset: offset}
	if err := o.checkpoints.Save(label, saved); err != nil {
		return err
	}
	summary.Completed = false
	summary.Checkpoint = saved
	summary.Elapsed = deadline.Elapsed()
	o.logger.Info("sync.run.budget_exceeded",
		"run_id", summary.RunID, "label", label, "offset", offset,
		"appended", summary.Appended,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return nil
}

// processMessage classifies one message as exactly one of: cancellation,
// parse failure, duplicate, or new record.
func (o *Orchestrator) processMessage(label string, msg mailbox.Message, keys map[string]struct{}, summary *entity.RunSummary) error {
	if extract.Skippable(msg.Subject, msg.PlainBody) {
		summary.Cancellations++
		return nil
	}

	outcome := extract.Parse(msg.PlainBody, msg.HTMLBody)
	if outcome.Status == entity.ParseError {
		summary.ParseFailures++
		appended, err := o.sink.AppendError(entity.ErrorRow{
			ReceivedAt: msg.Received,
			Subject:    msg.Subject,
			Reason:     outcome.Reason,
			MessageID:  msg.ID,
			Snippet:    msg.PlainBody,
		})
		if err != nil {
			return err
		}
		if appended {
			summary.ErrorsLogged++
		}
		return nil
	}

	r := *outcome.Parsed
	key := extract.BuildUniqueKey(r.RideDate, r.RideTime, r.Vehicle, r.Fare)
	if _, seen := keys[key]; seen {
		summary.Duplicates++
		return nil
	}

	body := msg.PlainBody
	if body == "" {
		body = extract.StripTags(msg.HTMLBody)
	}
	path, reused, err := o.artifacts.Ensure(label, extract.ArtifactFileName(r.RideDate, r.RideTime, r.Vehicle, r.Fare), body)
	if err != nil {
		return fmt.Errorf("store artifact for %s: %w", msg.ID, err)
	}
	if reused {
		o.logger.Info("sync.artifact.reused", "message_id", msg.ID, "path", path)
	}

	if err := o.sink.AppendResult(entity.ResultRow{
		RideDate:     r.RideDate,
		RideTime:     r.RideTime,
		Vehicle:      r.Vehicle,
		Fare:         r.Fare,
		ArtifactPath: path,
	}); err != nil {
		return err
	}
	keys[key] = struct{}{}
	summary.Appended++
	return nil
}

// Progress reads the checkpoint for a label without modifying anything.
func Progress(store checkpoint.Store, label string) (entity.CheckpointState, error) {
	return store.Get(label)
}

// Reset clears the checkpoint for a label. It takes the same advisory lock
// as a scan, so it cannot run concurrently with one.
func Reset(store checkpoint.Store, lockPath string, wait time.Duration, label string) error {
	lock, err := AcquireLock(lockPath, wait)
	if err != nil {
		return err
	}
	defer lock.Release()
	return store.Clear(label)
}
