// Package catalog implements the Catalog Interface: the transactional,
// per-call feature store the scheduler and agent pools use to read and
// claim features. Every method opens its own connection-scoped operation
// and returns a result that reflects the state of the store at the moment
// it ran — callers must not cache a Store read across a call boundary,
// since other processes (workers, the initializer) mutate the backing
// store concurrently.
package catalog

import (
	"context"
	"errors"

	"github.com/sundog75/autocoder/pkg/models"
)

// Sentinel errors returned by Store operations. Callers compare with
// errors.Is, not string matching.
var (
	// ErrNotFound is returned when an operation names a feature id the
	// store doesn't know about.
	ErrNotFound = errors.New("catalog: feature not found")
	// ErrAlreadyPasses is returned by ClaimForCoding when the feature
	// already passes — there is nothing left to code.
	ErrAlreadyPasses = errors.New("catalog: feature already passes")
	// ErrAlreadyInProgress is returned by ClaimForCoding when another
	// coding agent already holds the claim.
	ErrAlreadyInProgress = errors.New("catalog: feature already in progress")
	// ErrNotInProgress is returned by VerifyResumable when the feature isn't
	// currently claimed.
	ErrNotInProgress = errors.New("catalog: feature not in progress")
)

// Store is the Catalog Interface. Implementations must be safe for
// concurrent use by multiple goroutines.
type Store interface {
	// Snapshot returns every feature currently known to the catalog. The
	// scheduler calls this once per tick to compute readiness; there is no
	// cached view to invalidate because every call queries fresh state.
	Snapshot(ctx context.Context) ([]models.Feature, error)

	// ClaimForCoding atomically marks a feature in-progress, so no other
	// coding agent can claim it concurrently. Returns ErrNotFound,
	// ErrAlreadyPasses, or ErrAlreadyInProgress if the claim cannot be
	// made.
	ClaimForCoding(ctx context.Context, id int64) error

	// VerifyResumable confirms a feature is still in-progress (and not yet
	// passing) before a coding agent resumes it after an interrupted
	// session. Returns ErrNotFound, ErrAlreadyPasses, or ErrNotInProgress
	// if the feature can't be resumed.
	VerifyResumable(ctx context.Context, id int64) error

	// ReleaseInProgress clears the in-progress flag on a feature that did
	// not end up passing, so it becomes eligible for scheduling again.
	// Returns ErrNotFound if the feature doesn't exist; clearing a feature
	// that isn't in-progress is a no-op, not an error (defensive clear).
	ReleaseInProgress(ctx context.Context, id int64) error

	// CountPassing returns the number of features currently passing.
	CountPassing(ctx context.Context) (int, error)

	// RandomPassingNotInProgress returns the id of a passing feature that
	// isn't currently marked in-progress, chosen arbitrarily among eligible
	// candidates. ok is false if none are eligible.
	RandomPassingNotInProgress(ctx context.Context) (id int64, ok bool, err error)

	// HasAnyFeatures reports whether the catalog has been seeded at all,
	// used to decide whether the initializer needs to run.
	HasAnyFeatures(ctx context.Context) (bool, error)

	// Path returns the filesystem path backing this store, so a caller can
	// reopen a fresh connection after an external process (the
	// initializer) has mutated the underlying file.
	Path() string

	// Close releases the underlying connection.
	Close() error
}
