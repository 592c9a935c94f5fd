// Package session implements the Session Lifecycle: the startup sequence
// that seeds an empty catalog via the one-shot initializer worker, hands
// off to the Scheduler Loop, and the shutdown sequence that stops both
// agent pools and drains their process trees. It is grounded on the
// teacher's internal/orchestrator/orchestrator_lifecycle.go (Run/Stop),
// with the decompose/baseline/merge-queue/git-branch setup that lifecycle
// performs replaced by the single initializer-invocation-and-catalog-
// reopen concern this spec calls for.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sundog75/autocoder/internal/catalog"
	"github.com/sundog75/autocoder/internal/debuglog"
	"github.com/sundog75/autocoder/internal/graph"
	"github.com/sundog75/autocoder/internal/pool"
	"github.com/sundog75/autocoder/internal/procsup"
	"github.com/sundog75/autocoder/internal/scheduler"
)

// InitializerTimeout bounds how long the one-shot initializer worker is
// given to seed the catalog before it is killed and the session aborts.
const InitializerTimeout = 1800 * time.Second

// ErrInitializerFailed is returned when the initializer subprocess exits
// nonzero or times out.
var ErrInitializerFailed = errors.New("session: initializer failed to seed catalog")

// ErrCatalogEmptyAfterInit is returned when the initializer reports success
// but the catalog still has no features afterward.
var ErrCatalogEmptyAfterInit = errors.New("session: catalog still empty after initializer ran")

// Session owns the full lifecycle: initializer (if needed), the scheduler
// loop, and shutdown.
type Session struct {
	id      string
	store   catalog.Store
	pool    *pool.Manager
	loop    *scheduler.Loop
	spec    pool.WorkerSpec
	logger  *debuglog.Logger
	control *controlWatcher
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger attaches a debug logger, propagated to the scheduler loop as
// well. The pool keeps the logger it was constructed with.
func WithLogger(l *debuglog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New constructs a Session over an already-open catalog store, an
// already-constructed pool.Manager, and the worker spec used to invoke the
// initializer.
func New(store catalog.Store, p *pool.Manager, spec pool.WorkerSpec, opts ...Option) *Session {
	s := &Session{
		id:      uuid.New().String(),
		store:   store,
		pool:    p,
		spec:    spec,
		logger:  debuglog.Nop(),
		control: newControlWatcher(spec.ProjectDir),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loop = scheduler.New(s.store, s.pool, scheduler.WithLogger(s.logger), scheduler.WithPauseCheck(s.control.ShouldPause))
	return s
}

// ID returns the session's generated identifier, used to tag log entries
// across a run.
func (s *Session) ID() string { return s.id }

// Run performs startup (initializing the catalog if empty) and then drives
// the scheduler loop to completion, until an operator drops a stop file
// into the project's control directory, or until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Log("session", "starting", debuglog.F("session_id", s.id))

	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		// The ticker's stat check catches a stop file the watcher missed or
		// could not see (no watcher, or the file predates it).
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-s.control.StopSignal():
				s.logger.Log("session", "stop file observed in control directory, cancelling")
				cancel()
				return
			case <-ticker.C:
				s.control.ShouldStop()
			case <-runCtx.Done():
				return
			}
		}
	}()

	return s.loop.Run(runCtx)
}

// Shutdown stops both agent pools and waits (up to drainTimeout per poll)
// for their process trees to finish tearing down. Callers invoke this after
// Run returns, whether it completed normally or was cancelled, since
// testing agents may still be running either way.
func (s *Session) Shutdown(drainTimeout time.Duration) {
	s.logger.Log("session", "shutting down, stopping agent pools")
	s.pool.StopAll()
	s.loop.Drain(drainTimeout)
	s.control.Close()
	s.logger.Log("session", "shutdown complete")
}

// ensureInitialized runs the one-shot initializer worker if the catalog has
// no features yet, then reopens the catalog connection (the initializer
// writes to the same SQLite file from a separate process) and rewires the
// pool to the fresh connection.
func (s *Session) ensureInitialized(ctx context.Context) error {
	has, err := s.store.HasAnyFeatures(ctx)
	if err != nil {
		return fmt.Errorf("session: checking catalog state: %w", err)
	}
	if has {
		return nil
	}

	s.logger.Section("catalog empty, running initializer")

	initCtx, cancel := context.WithTimeout(ctx, InitializerTimeout)
	defer cancel()

	exitCh := make(chan int, 1)
	child, err := procsup.Spawn(procsup.SpawnOptions{
		Ctx:     initCtx,
		Argv:    s.spec.InitializerArgv(),
		WorkDir: s.spec.ProjectDir,
		OnLine:  func(line string) { s.logger.Log("initializer", line) },
		OnExit:  func(_ *procsup.Child, exitCode int) { exitCh <- exitCode },
	})
	if err != nil {
		return fmt.Errorf("%w: spawn: %v", ErrInitializerFailed, err)
	}

	select {
	case exitCode := <-exitCh:
		if exitCode != 0 {
			return fmt.Errorf("%w: exit code %d", ErrInitializerFailed, exitCode)
		}
	case <-initCtx.Done():
		_ = procsup.KillTree(child, procsup.DefaultKillTimeout)
		return fmt.Errorf("%w: timed out after %s", ErrInitializerFailed, InitializerTimeout)
	}

	path := s.store.Path()
	if path == "" {
		// No backing file (e.g. an in-memory store used in tests) — there is
		// nothing to reopen.
		return s.verifySeeded(ctx)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Log("session", "closing pre-initializer catalog connection failed", debuglog.F("error", err))
	}
	fresh, err := catalog.Open(path)
	if err != nil {
		return fmt.Errorf("session: reopening catalog after initializer: %w", err)
	}
	s.store = fresh
	s.pool.SetStore(fresh)
	s.loop = scheduler.New(s.store, s.pool, scheduler.WithLogger(s.logger), scheduler.WithPauseCheck(s.control.ShouldPause))

	return s.verifySeeded(ctx)
}

func (s *Session) verifySeeded(ctx context.Context) error {
	has, err := s.store.HasAnyFeatures(ctx)
	if err != nil {
		return fmt.Errorf("session: verifying catalog after initializer: %w", err)
	}
	if !has {
		return ErrCatalogEmptyAfterInit
	}

	// A malformed dependency graph (unknown dependency, or a cycle) is not
	// fatal: per spec.md §8 scenario S4, the affected features simply never
	// become ready and the scheduler loop runs out of schedulable work. We
	// log it here so the problem is diagnosable instead of silently
	// manifesting as a stuck run.
	if snap, err := s.store.Snapshot(ctx); err == nil {
		if err := graph.CheckConsistency(snap); err != nil {
			s.logger.Log("session", "catalog dependency graph is malformed, affected features will never become ready",
				debuglog.F("error", err))
		}
	}

	return nil
}
