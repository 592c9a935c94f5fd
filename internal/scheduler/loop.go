// Package scheduler implements the Scheduler Loop: the event-driven tick
// that decides, on every wake, whether the session is done, whether the
// testing pool needs topping up, and which pending features to hand to the
// coding pool. It is grounded on the teacher's
// internal/orchestrator/run_loop.go (runLoop/spawnAgents): a select-shaped
// loop alternating between "nothing to do, wait for a completion or a
// timer" and "slots free, spawn up to capacity, pause briefly, repeat" —
// generalized here from a single task queue to the two-pool, catalog-
// driven admission rules of this spec.
package scheduler

import (
	"context"
	"time"

	"github.com/sundog75/autocoder/internal/catalog"
	"github.com/sundog75/autocoder/internal/debuglog"
	"github.com/sundog75/autocoder/internal/graph"
	"github.com/sundog75/autocoder/internal/pool"
	"github.com/sundog75/autocoder/pkg/models"
)

const (
	// defaultPollInterval is how long the loop waits for a completion
	// signal before re-checking state on its own.
	defaultPollInterval = 2 * time.Second
	// defaultBlockedWaitInterval is used when every pending feature is
	// blocked on dependencies and no coding agent is running to eventually
	// unblock one — there's nothing to wait on but time passing (an
	// external mutation of the catalog, or simply a stuck project), so the
	// loop polls more slowly than usual instead of busy-spinning.
	defaultBlockedWaitInterval = 10 * time.Second
	// defaultPostSpawnPause staggers ticks immediately after starting new
	// agents, so a burst of completions doesn't cause a thundering-herd
	// re-evaluation. Matches spec.md §4.6/§5's named "2-second post-spawn
	// pause (non-cancellable sleep)".
	defaultPostSpawnPause = 2 * time.Second
)

// Loop is the Scheduler Loop component.
type Loop struct {
	store  catalog.Store
	pool   *pool.Manager
	logger *debuglog.Logger

	pollInterval        time.Duration
	blockedWaitInterval time.Duration
	postSpawnPause      time.Duration
	paused              func() bool
}

// Option configures a Loop at construction time.
type Option func(*Loop)

// WithLogger attaches a debug logger.
func WithLogger(l *debuglog.Logger) Option {
	return func(s *Loop) { s.logger = l }
}

// WithPauseCheck attaches the predicate the loop polls each tick to decide
// whether to skip starting new coding agents. An operator drops a "pause"
// file into the project's control directory (session.controlWatcher);
// already-running agents are left alone, only new starts are withheld.
func WithPauseCheck(fn func() bool) Option {
	return func(s *Loop) { s.paused = fn }
}

// New constructs a Loop over store and pool.
func New(store catalog.Store, p *pool.Manager, opts ...Option) *Loop {
	l := &Loop{
		store:               store,
		pool:                p,
		logger:              debuglog.Nop(),
		pollInterval:        defaultPollInterval,
		blockedWaitInterval: defaultBlockedWaitInterval,
		postSpawnPause:      defaultPostSpawnPause,
		paused:              func() bool { return false },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes the scheduler loop until every feature passes, the
// retry-exhausted features are the only ones left pending, or ctx is
// cancelled. It does not stop running agents on return — callers that want
// a hard stop call the session layer's shutdown, which calls
// pool.Manager.StopAll and then Drain.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Section("scheduler loop starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		snap, err := l.store.Snapshot(ctx)
		if err != nil {
			l.logger.Log("scheduler", "snapshot failed, retrying", debuglog.F("error", err))
			if !l.waitOrDone(ctx, l.pollInterval) {
				return ctx.Err()
			}
			continue
		}
		debuglog.DumpCatalogState(l.logger, snap, "tick")

		if l.allComplete(snap) {
			l.logger.Log("scheduler", "all features complete or retry-exhausted")
			return nil
		}

		l.pool.MaintainTesting(ctx)

		if l.paused() {
			l.logger.Log("scheduler", "paused, withholding new coding agent starts")
			if !l.waitOrDone(ctx, l.pollInterval) {
				return ctx.Err()
			}
			continue
		}

		codingCount := l.pool.CodingCount()
		if codingCount >= l.pool.MaxConcurrency() {
			if !l.waitOrDone(ctx, l.pollInterval) {
				return ctx.Err()
			}
			continue
		}

		slots := l.pool.MaxConcurrency() - codingCount

		resumable := l.computeResumable(snap)
		if len(resumable) > 0 {
			started := l.startFeatures(ctx, resumable, slots, true)
			if started > 0 {
				time.Sleep(l.postSpawnPause)
				continue
			}
		}

		ready := l.computeReady(snap)
		if len(ready) == 0 {
			if codingCount > 0 {
				if !l.waitOrDone(ctx, l.pollInterval) {
					return ctx.Err()
				}
			} else {
				l.logger.Log("scheduler", "all remaining pending features are blocked on dependencies")
				if !l.waitOrDone(ctx, l.blockedWaitInterval) {
					return ctx.Err()
				}
			}
			continue
		}

		started := l.startFeatures(ctx, ready, slots, false)
		if started > 0 {
			time.Sleep(l.postSpawnPause)
		}
	}
}

// Drain blocks, polling the completion event, until both agent pools are
// empty. Callers invoke this after StopAll during shutdown.
func (l *Loop) Drain(timeout time.Duration) {
	for l.pool.CodingCount() > 0 || l.pool.TestingCount() > 0 {
		if !l.pool.Completion().Wait(timeout) {
			continue
		}
	}
}

// allComplete reports whether every feature either passes already or has
// exhausted its retry budget, so nothing further can be scheduled.
func (l *Loop) allComplete(all []models.Feature) bool {
	for _, f := range all {
		if f.Passes {
			continue
		}
		if l.pool.RetryCount(f.ID) >= pool.MaxFeatureRetries {
			continue
		}
		return false
	}
	return true
}

// computeResumable returns features left in-progress from an interrupted
// prior session: not passing, marked in-progress, but with no coding agent
// currently running for them in this process's pool. Sorted by the same
// (-score, priority, id) key as computeReady, per spec.md §4.6 step 4, so
// resumption order is deterministic and priority-respecting rather than
// catalog-iteration order.
func (l *Loop) computeResumable(all []models.Feature) []models.Feature {
	running := make(map[int64]bool)
	for _, id := range l.pool.Status().RunningFeatures {
		running[id] = true
	}
	var out []models.Feature
	for _, f := range all {
		if f.Passes || !f.InProgress || running[f.ID] {
			continue
		}
		out = append(out, f)
	}
	scores := graph.ComputeSchedulingScores(all)
	return graph.SortByScore(out, scores)
}

// computeReady returns the ranked, schedulable subset of all, excluding
// features that have exhausted their retry budget.
func (l *Loop) computeReady(all []models.Feature) []models.Feature {
	ranked := graph.RankedReady(all)
	var out []models.Feature
	for _, f := range ranked {
		if l.pool.RetryCount(f.ID) >= pool.MaxFeatureRetries {
			continue
		}
		out = append(out, f)
	}
	return out
}

// startFeatures starts up to slots features from candidates via
// pool.Manager.StartCoding, logging (but not failing the tick on) admission
// or catalog rejections — those are expected races with other mutators,
// not faults. It returns how many agents it actually started.
func (l *Loop) startFeatures(ctx context.Context, candidates []models.Feature, slots int, resume bool) int {
	started := 0
	for _, f := range candidates {
		if started >= slots {
			break
		}
		if err := l.pool.StartCoding(ctx, f.ID, resume); err != nil {
			l.logger.Log("scheduler", "start coding agent rejected",
				debuglog.F("feature_id", f.ID), debuglog.F("resume", resume), debuglog.F("error", err))
			continue
		}
		started++
	}
	return started
}

// waitOrDone waits on the completion event (or timeout) and reports
// whether the caller should keep looping (true) or ctx was cancelled
// (false).
func (l *Loop) waitOrDone(ctx context.Context, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		l.pool.Completion().Wait(timeout)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	}
}
