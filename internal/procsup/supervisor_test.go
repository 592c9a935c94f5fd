package procsup

import (
	"sync"
	"testing"
	"time"
)

func TestSpawnStreamsLinesAndReportsExitCode(t *testing.T) {
	var mu sync.Mutex
	var lines []string

	done := make(chan int, 1)
	child, err := Spawn(SpawnOptions{
		Argv: []string{"sh", "-c", "echo one; echo two; exit 0"},
		OnLine: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
		OnExit: func(_ *Child, exitCode int) {
			done <- exitCode
		},
	})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if child.PID() <= 0 {
		t.Fatalf("PID() = %d, want positive", child.PID())
	}

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("exit code = %d, want 0", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnExit")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("lines = %v, want [one two]", lines)
	}
}

func TestSpawnReportsNonzeroExitCode(t *testing.T) {
	done := make(chan int, 1)
	_, err := Spawn(SpawnOptions{
		Argv:   []string{"sh", "-c", "exit 7"},
		OnExit: func(_ *Child, exitCode int) { done <- exitCode },
	})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	select {
	case code := <-done:
		if code != 7 {
			t.Errorf("exit code = %d, want 7", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnExit")
	}
}

func TestSpawnMissingBinaryReturnsError(t *testing.T) {
	_, err := Spawn(SpawnOptions{Argv: []string{"this-binary-should-not-exist-on-any-system"}})
	if err == nil {
		t.Fatal("expected error spawning a nonexistent binary")
	}
}

func TestKillTreeTerminatesLongRunningChild(t *testing.T) {
	done := make(chan int, 1)
	child, err := Spawn(SpawnOptions{
		Argv:        []string{"sh", "-c", "sleep 30"},
		KillTimeout: 500 * time.Millisecond,
		OnExit:      func(_ *Child, exitCode int) { done <- exitCode },
	})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	report := KillTree(child, 500*time.Millisecond)
	if !report.SignaledTerm && !report.SignaledKill {
		t.Error("expected KillTree to signal the process group")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for killed child to be reaped")
	}
}
