package pool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sundog75/autocoder/pkg/models"
)

// statusFileDir is where the status file lives, alongside the stop/pause
// control files the session's fsnotify watcher already uses, so a single
// "control" directory is the whole out-of-process control surface.
const statusFileDir = ".autocoder/control"

// statusFileName is the file the `status` subcommand reads, since it runs
// as a separate process with no access to a live Manager.
const statusFileName = "status.json"

// StatusFilePath returns the path Manager.persistStatus writes to and
// ReadStatusFile reads from, for a given project directory.
func StatusFilePath(projectDir string) string {
	return filepath.Join(projectDir, statusFileDir, statusFileName)
}

// writeStatusFile serializes snap to projectDir's status file, writing to a
// temp file first and renaming into place so a concurrent reader never sees
// a partial write.
func writeStatusFile(projectDir string, snap models.PoolSnapshot) error {
	path := StatusFilePath(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create status file dir: %w", err)
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename status file into place: %w", err)
	}
	return nil
}

// ReadStatusFile reads the status file left by a live (or most recently
// live) Manager for projectDir. found is false, with no error, if no `run`
// has ever persisted one.
func ReadStatusFile(projectDir string) (snap models.PoolSnapshot, found bool, err error) {
	b, err := os.ReadFile(StatusFilePath(projectDir))
	if err != nil {
		if os.IsNotExist(err) {
			return models.PoolSnapshot{}, false, nil
		}
		return models.PoolSnapshot{}, false, fmt.Errorf("read status file: %w", err)
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return models.PoolSnapshot{}, false, fmt.Errorf("parse status file: %w", err)
	}
	return snap, true, nil
}
