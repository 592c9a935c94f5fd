package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sundog75/autocoder/internal/catalog"
	"github.com/sundog75/autocoder/internal/pool"
	"github.com/sundog75/autocoder/pkg/models"
)

func writeScript(t *testing.T, exitCode int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	content := "#!/bin/sh\necho running\nexit " + string(rune('0'+exitCode)) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunCompletesWhenAllFeaturesAlreadyPass(t *testing.T) {
	store := catalog.NewMemoryStore([]models.Feature{
		{ID: 1, Passes: true},
		{ID: 2, Passes: true},
	})
	spec := pool.WorkerSpec{BinaryPath: writeScript(t, 0), ProjectDir: t.TempDir()}
	m := pool.New(store, spec, 2, 0, false, pool.WithKillTimeout(500*time.Millisecond))
	l := New(store, m)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunWithNonPassingWorkerStopsAtDeadline(t *testing.T) {
	store := catalog.NewMemoryStore([]models.Feature{{ID: 1, Name: "feat-1"}})
	spec := pool.WorkerSpec{BinaryPath: writeScript(t, 0), ProjectDir: t.TempDir()}
	m := pool.New(store, spec, 1, 0, false, pool.WithKillTimeout(500*time.Millisecond))
	l := New(store, m)
	// The worker script exits 0 without ever calling MarkPasses, mirroring
	// a coding agent that ran and (per I7) leaves the feature released back
	// to pending rather than passing. A zero exit does not count against
	// the retry budget, so the loop keeps restarting the feature until the
	// context deadline; Run must then return nil or the deadline error.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := l.Run(ctx)
	if err != nil && err != context.DeadlineExceeded {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	store := catalog.NewMemoryStore([]models.Feature{{ID: 1}, {ID: 2, Dependencies: []int64{99}}})
	spec := pool.WorkerSpec{BinaryPath: writeScript(t, 0), ProjectDir: t.TempDir()}
	m := pool.New(store, spec, 1, 0, false, pool.WithKillTimeout(500*time.Millisecond))
	l := New(store, m)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestAllCompleteFalseWhilePendingFeatureHasRetriesLeft(t *testing.T) {
	store := catalog.NewMemoryStore([]models.Feature{{ID: 1}})
	spec := pool.WorkerSpec{BinaryPath: writeScript(t, 0), ProjectDir: t.TempDir()}
	m := pool.New(store, spec, 1, 0, false)
	l := New(store, m)

	snap := []models.Feature{{ID: 1, Passes: false}}
	if l.allComplete(snap) {
		t.Fatal("allComplete() = true before any retries recorded")
	}
}

func TestComputeResumableSortsByStandardKey(t *testing.T) {
	store := catalog.NewMemoryStore(nil)
	spec := pool.WorkerSpec{BinaryPath: writeScript(t, 0), ProjectDir: t.TempDir()}
	m := pool.New(store, spec, 2, 0, false)
	l := New(store, m)

	// Feature 3 has no dependents (score 0); feature 1 unblocks feature 2
	// and so scores higher. Iteration order below is deliberately the
	// opposite of the expected scheduling order.
	all := []models.Feature{
		{ID: 3, InProgress: true},
		{ID: 1, InProgress: true},
		{ID: 2, InProgress: true, Dependencies: []int64{1}},
	}
	resumable := l.computeResumable(all)
	if len(resumable) != 3 {
		t.Fatalf("computeResumable() returned %d features, want 3", len(resumable))
	}
	if resumable[0].ID != 1 {
		t.Errorf("computeResumable()[0].ID = %d, want 1 (highest score)", resumable[0].ID)
	}
}

func TestRunWithholdsNewStartsWhilePaused(t *testing.T) {
	store := catalog.NewMemoryStore([]models.Feature{{ID: 1}})
	spec := pool.WorkerSpec{BinaryPath: writeScript(t, 0), ProjectDir: t.TempDir()}
	m := pool.New(store, spec, 1, 0, false, pool.WithKillTimeout(500*time.Millisecond))
	l := New(store, m, WithPauseCheck(func() bool { return true }))
	l.pollInterval = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := l.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if m.CodingCount() != 0 {
		t.Errorf("CodingCount() = %d, want 0 while paused", m.CodingCount())
	}
}

func TestComputeReadyExcludesBlockedFeatures(t *testing.T) {
	store := catalog.NewMemoryStore(nil)
	spec := pool.WorkerSpec{BinaryPath: writeScript(t, 0), ProjectDir: t.TempDir()}
	m := pool.New(store, spec, 1, 0, false)
	l := New(store, m)

	all := []models.Feature{
		{ID: 1, Dependencies: []int64{2}},
		{ID: 2, Passes: true},
		{ID: 3, Dependencies: []int64{1}}, // blocked: feature 1 does not pass yet
	}
	ready := l.computeReady(all)
	if len(ready) != 1 || ready[0].ID != 1 {
		t.Errorf("computeReady() = %+v, want just feature 1", ready)
	}
}
