package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/sundog75/autocoder/pkg/models"
)

// SQLiteStore is a Store backed by a pure-Go SQLite driver in WAL mode,
// mirroring the teacher's internal/state.DB: a mutex-guarded *sql.DB with a
// small, versioned migration ladder. The schema here is the feature
// catalog's own (features + feature_dependencies), not the teacher's
// session/agent/task tables.
type SQLiteStore struct {
	mu   sync.Mutex
	conn *sql.DB
	path string
}

// DefaultPath returns the project-local catalog path, mirroring the
// teacher's ProjectDBPath helper.
func DefaultPath(projectDir string) string {
	return filepath.Join(projectDir, ".autocoder", "catalog.db")
}

// Open opens (creating parent directories as needed) the SQLite catalog at
// path, enables WAL mode and foreign keys, and applies any pending
// migrations.
func Open(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

var migrations = []struct {
	version int
	sql     string
}{
	{1, migrationV1Features},
}

const migrationV1Features = `
CREATE TABLE IF NOT EXISTS features (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	passes INTEGER NOT NULL DEFAULT 0,
	in_progress INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS feature_dependencies (
	feature_id INTEGER NOT NULL REFERENCES features(id),
	depends_on_id INTEGER NOT NULL REFERENCES features(id),
	PRIMARY KEY (feature_id, depends_on_id)
);

CREATE INDEX IF NOT EXISTS idx_features_passes ON features(passes);
CREATE INDEX IF NOT EXISTS idx_features_in_progress ON features(in_progress);
`

func (s *SQLiteStore) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Path implements Store.
func (s *SQLiteStore) Path() string { return s.path }

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Snapshot implements Store.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]models.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.QueryContext(ctx, "SELECT id, name, priority, passes, in_progress FROM features ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.Feature)
	var order []int64
	for rows.Next() {
		var f models.Feature
		var passes, inProgress int
		if err := rows.Scan(&f.ID, &f.Name, &f.Priority, &passes, &inProgress); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		f.Passes = passes != 0
		f.InProgress = inProgress != 0
		byID[f.ID] = &f
		order = append(order, f.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}

	depRows, err := s.conn.QueryContext(ctx, "SELECT feature_id, depends_on_id FROM feature_dependencies")
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer depRows.Close()
	for depRows.Next() {
		var featureID, dependsOn int64
		if err := depRows.Scan(&featureID, &dependsOn); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		if f, ok := byID[featureID]; ok {
			f.Dependencies = append(f.Dependencies, dependsOn)
		}
	}
	if err := depRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependencies: %w", err)
	}

	out := make([]models.Feature, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// ClaimForCoding implements Store.
func (s *SQLiteStore) ClaimForCoding(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var passes, inProgress int
		err := tx.QueryRowContext(ctx, "SELECT passes, in_progress FROM features WHERE id = ?", id).Scan(&passes, &inProgress)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read feature %d: %w", id, err)
		}
		if passes != 0 {
			return ErrAlreadyPasses
		}
		if inProgress != 0 {
			return ErrAlreadyInProgress
		}
		if _, err := tx.ExecContext(ctx, "UPDATE features SET in_progress = 1 WHERE id = ?", id); err != nil {
			return fmt.Errorf("claim feature %d: %w", id, err)
		}
		return nil
	})
}

// VerifyResumable implements Store.
func (s *SQLiteStore) VerifyResumable(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var passes, inProgress int
	err := s.conn.QueryRowContext(ctx, "SELECT passes, in_progress FROM features WHERE id = ?", id).Scan(&passes, &inProgress)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read feature %d: %w", id, err)
	}
	if passes != 0 {
		return ErrAlreadyPasses
	}
	if inProgress == 0 {
		return ErrNotInProgress
	}
	return nil
}

// ReleaseInProgress implements Store.
func (s *SQLiteStore) ReleaseInProgress(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.conn.ExecContext(ctx, "UPDATE features SET in_progress = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("release feature %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release feature %d rows affected: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPassing implements Store.
func (s *SQLiteStore) CountPassing(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM features WHERE passes = 1").Scan(&n); err != nil {
		return 0, fmt.Errorf("count passing: %w", err)
	}
	return n, nil
}

// RandomPassingNotInProgress implements Store.
func (s *SQLiteStore) RandomPassingNotInProgress(ctx context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.QueryContext(ctx, "SELECT id FROM features WHERE passes = 1 AND in_progress = 0")
	if err != nil {
		return 0, false, fmt.Errorf("query passing candidates: %w", err)
	}
	defer rows.Close()

	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, false, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("iterate candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}
	return candidates[rand.Intn(len(candidates))], true, nil
}

// HasAnyFeatures implements Store.
func (s *SQLiteStore) HasAnyFeatures(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM features").Scan(&n); err != nil {
		return false, fmt.Errorf("count features: %w", err)
	}
	return n > 0, nil
}

// Seed inserts a batch of features and their dependency edges. It exists
// for tests and for simulating initializer output; production catalogs are
// normally seeded by the initializer subprocess writing to the same SQLite
// file directly.
func (s *SQLiteStore) Seed(features []models.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(context.Background(), func(tx *sql.Tx) error {
		for _, f := range features {
			passes, inProgress := 0, 0
			if f.Passes {
				passes = 1
			}
			if f.InProgress {
				inProgress = 1
			}
			if _, err := tx.Exec(
				"INSERT INTO features (id, name, priority, passes, in_progress) VALUES (?, ?, ?, ?, ?)",
				f.ID, f.Name, f.Priority, passes, inProgress,
			); err != nil {
				return fmt.Errorf("seed feature %d: %w", f.ID, err)
			}
			for _, dep := range f.Dependencies {
				if _, err := tx.Exec(
					"INSERT INTO feature_dependencies (feature_id, depends_on_id) VALUES (?, ?)",
					f.ID, dep,
				); err != nil {
					return fmt.Errorf("seed dependency %d->%d: %w", f.ID, dep, err)
				}
			}
		}
		return nil
	})
}

// MarkPasses flips a feature to passing and clears in-progress. It exists
// for tests that simulate a worker verifying a feature; in production this
// write is made by the worker process, not by the core.
func (s *SQLiteStore) MarkPasses(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.conn.Exec("UPDATE features SET passes = 1, in_progress = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark feature %d passing: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark feature %d passing rows affected: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// withTx runs fn inside a transaction on the already-locked connection.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

var _ Store = (*SQLiteStore)(nil)
