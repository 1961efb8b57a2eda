package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/checkpoint"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/common"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/entity"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/extract"
	"github.com/chiayu-tsai/uber-receipts-sync/internal/mailbox"
)

type fakeSource struct {
	threads []mailbox.Thread
	offsets []int
	missing bool
}

func (f *fakeSource) ResolveLabel(_ context.Context, name string) error {
	if f.missing {
		return common.NewAppError("LABEL_NOT_FOUND", fmt.Sprintf("label %q does not exist", name), common.ErrNotFound)
	}
	return nil
}

func (f *fakeSource) Page(_ context.Context, _ string, offset, size int) ([]mailbox.Thread, error) {
	f.offsets = append(f.offsets, offset)
	if offset >= len(f.threads) {
		return nil, nil
	}
	end := offset + size
	if end > len(f.threads) {
		end = len(f.threads)
	}
	return f.threads[offset:end], nil
}

type fakeSink struct {
	results  []entity.ResultRow
	errors   []entity.ErrorRow
	errorIDs map[string]struct{}
	flushes  int
}

func newFakeSink() *fakeSink {
	return &fakeSink{errorIDs: make(map[string]struct{})}
}

func (f *fakeSink) LoadExisting() (map[string]struct{}, map[string]struct{}, error) {
	keys := make(map[string]struct{}, len(f.results))
	for _, r := range f.results {
		keys[extract.BuildUniqueKey(r.RideDate, r.RideTime, r.Vehicle, r.Fare)] = struct{}{}
	}
	ids := make(map[string]struct{}, len(f.errorIDs))
	for id := range f.errorIDs {
		ids[id] = struct{}{}
	}
	return keys, ids, nil
}

func (f *fakeSink) AppendResult(row entity.ResultRow) error {
	f.results = append(f.results, row)
	return nil
}

func (f *fakeSink) AppendError(row entity.ErrorRow) (bool, error) {
	if _, seen := f.errorIDs[row.MessageID]; seen {
		return false, nil
	}
	f.errorIDs[row.MessageID] = struct{}{}
	f.errors = append(f.errors, row)
	return true, nil
}

func (f *fakeSink) Flush() error {
	f.flushes++
	return nil
}

func (f *fakeSink) ResultSheet() string { return "Uber" }
func (f *fakeSink) ErrorSheet() string  { return "Uber_errors" }

type fakeArtifacts struct {
	ensured map[string]int
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{ensured: make(map[string]int)}
}

func (f *fakeArtifacts) FolderFor(label string) (string, error) {
	return filepath.Join("/artifacts", label), nil
}

func (f *fakeArtifacts) Ensure(label, fileName, _ string) (string, bool, error) {
	f.ensured[fileName]++
	return filepath.Join("/artifacts", label, fileName), f.ensured[fileName] > 1, nil
}

func receiptThread(i int) mailbox.Thread {
	id := fmt.Sprintf("msg-%04d", i)
	plate := fmt.Sprintf("CAR-%04d", i)
	return mailbox.Thread{
		ID: fmt.Sprintf("thr-%04d", i),
		Messages: []mailbox.Message{{
			ID:       id,
			Subject:  "Your trip with Uber",
			Received: time.Date(2024, 12, 5, 21, 0, 0, 0, time.UTC),
			PlainBody: fmt.Sprintf(
				"Your trip on Dec 5, 2024 at 8:15 PM\nTotal NT$ 245.00\nLicense Plate: %s\n",
				plate,
			),
		}},
	}
}

func messageThread(id, subject, body string) mailbox.Thread {
	return mailbox.Thread{
		ID: "thr-" + id,
		Messages: []mailbox.Message{{
			ID:        id,
			Subject:   subject,
			Received:  time.Date(2024, 12, 5, 21, 0, 0, 0, time.UTC),
			PlainBody: body,
		}},
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Budget:          time.Hour,
		LockWait:        0,
		LockPath:        filepath.Join(t.TempDir(), "sync.lock"),
		PageSize:        25,
		CheckpointEvery: 10,
	}
}

func TestRun_LabelExhausted(t *testing.T) {
	source := &fakeSource{}
	for i := 0; i < 5; i++ {
		source.threads = append(source.threads, receiptThread(i))
	}
	sink := newFakeSink()
	store := checkpoint.NewMemoryStore()

	orch := NewOrchestrator(nil, testConfig(t), source, store, sink, newFakeArtifacts())
	summary, err := orch.Run(context.Background(), "Uber")
	require.NoError(t, err)

	assert.True(t, summary.Completed)
	assert.Equal(t, 5, summary.Appended)
	assert.Zero(t, summary.Duplicates)
	assert.Zero(t, summary.ParseFailures)
	assert.Len(t, sink.results, 5)

	// The summary reports the checkpoint that was just persisted.
	assert.True(t, summary.Checkpoint.Completed)
	assert.Equal(t, 0, summary.Checkpoint.Offset)

	state, err := store.Get("Uber")
	require.NoError(t, err)
	assert.True(t, state.Completed)
	assert.Equal(t, 0, state.Offset)
}

func TestRun_ClassifiesEachMessageOnce(t *testing.T) {
	good := receiptThread(1)
	source := &fakeSource{threads: []mailbox.Thread{
		good,
		messageThread("msg-cancel", "Your trip was canceled", "已取消"),
		messageThread("msg-summary", "Your Uber charge summary", "November overview"),
		messageThread("msg-broken", "Your trip with Uber", "no tokens in this body"),
		good, // same ride again
	}}
	sink := newFakeSink()
	orch := NewOrchestrator(nil, testConfig(t), source, checkpoint.NewMemoryStore(), sink, newFakeArtifacts())

	summary, err := orch.Run(context.Background(), "Uber")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Appended)
	assert.Equal(t, 2, summary.Cancellations) // cancellation + summary digest
	assert.Equal(t, 1, summary.ParseFailures)
	assert.Equal(t, 1, summary.ErrorsLogged)
	assert.Equal(t, 1, summary.Duplicates)

	require.Len(t, sink.errors, 1)
	assert.Equal(t, "msg-broken", sink.errors[0].MessageID)
	assert.Equal(t, extract.ReasonMissingDateTime, sink.errors[0].Reason)
}

func TestRun_SecondPassIsAllDuplicates(t *testing.T) {
	source := &fakeSource{}
	for i := 0; i < 8; i++ {
		source.threads = append(source.threads, receiptThread(i))
	}
	sink := newFakeSink()
	store := checkpoint.NewMemoryStore()
	artifacts := newFakeArtifacts()
	cfg := testConfig(t)

	first, err := NewOrchestrator(nil, cfg, source, store, sink, artifacts).Run(context.Background(), "Uber")
	require.NoError(t, err)
	require.Equal(t, 8, first.Appended)

	// The completed checkpoint restarts the scan from the top; existing
	// rows shield every message.
	second, err := NewOrchestrator(nil, cfg, source, store, sink, artifacts).Run(context.Background(), "Uber")
	require.NoError(t, err)
	assert.Zero(t, second.Appended)
	assert.Equal(t, 8, second.Duplicates)
	assert.Len(t, sink.results, 8)
	// Both passes began at offset 0: the first fresh, the second because a
	// completed checkpoint restarts from the top.
	assert.Equal(t, []int{0, 0}, source.offsets)
}

func TestRun_BudgetExceededThenResume(t *testing.T) {
	source := &fakeSource{}
	for i := 0; i < 120; i++ {
		source.threads = append(source.threads, receiptThread(i))
	}
	sink := newFakeSink()
	store := checkpoint.NewMemoryStore()
	artifacts := newFakeArtifacts()

	// Every clock reading advances one second; the budget covers roughly
	// 80 threads worth of readings.
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Second}
	cfg := testConfig(t)
	cfg.Budget = 160 * time.Second
	cfg.Now = clock.Now

	first, err := NewOrchestrator(nil, cfg, source, store, sink, artifacts).Run(context.Background(), "Uber")
	require.NoError(t, err)

	assert.False(t, first.Completed)
	assert.Greater(t, first.Appended, 0)
	assert.Less(t, first.Appended, 120)
	state, err := store.Get("Uber")
	require.NoError(t, err)
	assert.Equal(t, first.Appended, state.Offset)
	assert.False(t, state.Completed)
	assert.Equal(t, state.Offset, first.Checkpoint.Offset)
	assert.False(t, first.Checkpoint.Completed)

	// Resume with a fresh budget; the remainder is processed exactly once.
	cfg2 := testConfig(t)
	second, err := NewOrchestrator(nil, cfg2, source, store, sink, artifacts).Run(context.Background(), "Uber")
	require.NoError(t, err)

	assert.True(t, second.Completed)
	assert.Equal(t, 120, first.Appended+second.Appended)
	assert.Zero(t, second.Duplicates)
	assert.Len(t, sink.results, 120)
	for name, n := range artifacts.ensured {
		assert.Equal(t, 1, n, name)
	}
}

func TestRun_LockContention(t *testing.T) {
	cfg := testConfig(t)
	held, err := AcquireLock(cfg.LockPath, 0)
	require.NoError(t, err)
	defer held.Release()

	orch := NewOrchestrator(nil, cfg, &fakeSource{}, checkpoint.NewMemoryStore(), newFakeSink(), newFakeArtifacts())
	_, err = orch.Run(context.Background(), "Uber")
	assert.ErrorIs(t, err, common.ErrLocked)
}

func TestRun_MissingLabel(t *testing.T) {
	orch := NewOrchestrator(nil, testConfig(t), &fakeSource{missing: true},
		checkpoint.NewMemoryStore(), newFakeSink(), newFakeArtifacts())
	_, err := orch.Run(context.Background(), "Nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRun_PeriodicCheckpoints(t *testing.T) {
	source := &fakeSource{}
	for i := 0; i < 25; i++ {
		source.threads = append(source.threads, receiptThread(i))
	}
	store := checkpoint.NewMemoryStore()
	sink := newFakeSink()
	cfg := testConfig(t)
	cfg.CheckpointEvery = 10

	_, err := NewOrchestrator(nil, cfg, source, store, sink, newFakeArtifacts()).Run(context.Background(), "Uber")
	require.NoError(t, err)

	// Two periodic flushes plus the final one.
	assert.GreaterOrEqual(t, sink.flushes, 3)
}

func TestProgressAndReset(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Save("Uber", entity.CheckpointState{Offset: 42}))

	state, err := Progress(store, "Uber")
	require.NoError(t, err)
	assert.Equal(t, 42, state.Offset)

	lockPath := filepath.Join(t.TempDir(), "sync.lock")
	require.NoError(t, Reset(store, lockPath, 0, "Uber"))

	state, err = Progress(store, "Uber")
	require.NoError(t, err)
	assert.Equal(t, entity.CheckpointState{}, state)
}

func TestReset_RespectsLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "sync.lock")
	held, err := AcquireLock(lockPath, 0)
	require.NoError(t, err)
	defer held.Release()

	err = Reset(checkpoint.NewMemoryStore(), lockPath, 0, "Uber")
	assert.ErrorIs(t, err, common.ErrLocked)
}
