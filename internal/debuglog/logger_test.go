package debuglog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sundog75/autocoder/pkg/models"
)

func TestNewTruncatesOnSessionStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")

	if err := os.WriteFile(path, []byte("stale content from a previous session\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	l, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "stale content") {
		t.Errorf("expected truncated log, found stale content: %q", data)
	}
	if !strings.Contains(string(data), "debug log started") {
		t.Errorf("expected session-start banner, got %q", data)
	}
}

func TestLogWritesCategoryAndFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")

	l, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	l.Log("scheduler", "tick complete", F("ready_count", 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "[scheduler] tick complete") {
		t.Errorf("missing category/message in log: %q", s)
	}
	if !strings.Contains(s, "ready_count: 3") {
		t.Errorf("missing field in log: %q", s)
	}
}

func TestSectionWritesBanner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")

	l, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	l.Section("startup")

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "startup") {
		t.Errorf("expected section banner in log: %q", data)
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := Nop()
	l.Log("x", "y")
	l.Section("z")
	if err := l.Close(); err != nil {
		t.Errorf("Close() on nop logger: %v", err)
	}
}

func TestNewWithEmptyPathReturnsNop(t *testing.T) {
	l, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") error = %v", err)
	}
	l.Log("x", "y") // must not panic
}

func TestDumpCatalogState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	all := []models.Feature{
		{ID: 1, Passes: true},
		{ID: 2, InProgress: true},
		{ID: 3},
	}
	DumpCatalogState(l, all, "after tick")

	data, _ := os.ReadFile(path)
	s := string(data)
	if !strings.Contains(s, "DB_DUMP") {
		t.Errorf("expected DB_DUMP category: %q", s)
	}
	if !strings.Contains(s, "passing_count: 1") {
		t.Errorf("expected passing_count: 1: %q", s)
	}
}
