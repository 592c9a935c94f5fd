// Package pool implements the Coding Pool and Testing Pool: the two
// bounded, concurrently-running sets of worker subprocesses the scheduler
// drives. Both pools share one mutex (grounded on the teacher's
// internal/orchestrator/pool.go and scheduler.go running-map bookkeeping,
// generalized from task/agent objects to feature slots), since every
// admission decision needs to see both pools' sizes at once to respect the
// combined MaxTotalAgents cap.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sundog75/autocoder/internal/catalog"
	"github.com/sundog75/autocoder/internal/debuglog"
	"github.com/sundog75/autocoder/internal/procsup"
	"github.com/sundog75/autocoder/pkg/models"
)

type codingEntry struct {
	child  *procsup.Child
	cancel context.CancelFunc
}

type testingEntry struct {
	featureID int64
	child     *procsup.Child
}

// Manager owns the coding pool (keyed by feature id, at most one agent per
// feature) and the testing pool (keyed by child pid, since many testing
// agents may legitimately re-verify different features, or even the same
// one, concurrently).
type Manager struct {
	mu      sync.Mutex
	coding  map[int64]*codingEntry
	testing map[int]*testingEntry
	retries map[int64]int

	store          catalog.Store
	spec           WorkerSpec
	maxConcurrency int
	testingRatio   int
	yolo           bool
	active         bool
	killTimeout    time.Duration

	completion *CompletionEvent
	logger     *debuglog.Logger
	onOutput   func(featureID int64, line string)
	onStatus   func(featureID int64, status models.AgentStatus)
}

// Option configures a Manager at construction time, matching the teacher's
// functional-options pattern (internal/orchestrator/options.go).
type Option func(*Manager)

// WithLogger attaches a debug logger. The default is a no-op logger.
func WithLogger(l *debuglog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithOnOutput attaches the on_output callback invoked per streamed line.
func WithOnOutput(fn func(featureID int64, line string)) Option {
	return func(m *Manager) { m.onOutput = fn }
}

// WithOnStatus attaches the on_status callback invoked on agent lifecycle
// transitions.
func WithOnStatus(fn func(featureID int64, status models.AgentStatus)) Option {
	return func(m *Manager) { m.onStatus = fn }
}

// WithKillTimeout overrides DefaultKillTimeout for this Manager's process
// teardown.
func WithKillTimeout(d time.Duration) Option {
	return func(m *Manager) { m.killTimeout = d }
}

// New constructs a Manager. maxConcurrency and testingRatio are clamped into
// their spec-mandated ranges ([1, MaxParallelAgents] and
// [0, MaxTestingAgentRatio]) rather than rejected, since an out-of-range
// value from configuration is a caller mistake the core can absorb.
func New(store catalog.Store, spec WorkerSpec, maxConcurrency, testingRatio int, yolo bool, opts ...Option) *Manager {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if maxConcurrency > MaxParallelAgents {
		maxConcurrency = MaxParallelAgents
	}
	if testingRatio < 0 {
		testingRatio = 0
	}
	if testingRatio > MaxTestingAgentRatio {
		testingRatio = MaxTestingAgentRatio
	}

	m := &Manager{
		coding:         make(map[int64]*codingEntry),
		testing:        make(map[int]*testingEntry),
		retries:        make(map[int64]int),
		store:          store,
		spec:           spec,
		maxConcurrency: maxConcurrency,
		testingRatio:   testingRatio,
		yolo:           yolo,
		active:         true,
		killTimeout:    DefaultKillTimeout,
		completion:     NewCompletionEvent(),
		logger:         debuglog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Completion returns the shared completion event both pools signal.
func (m *Manager) Completion() *CompletionEvent { return m.completion }

// SetStore swaps the catalog backing this Manager, used after the
// initializer phase reopens a fresh connection to the same database file.
func (m *Manager) SetStore(store catalog.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// MaxConcurrency returns the coding pool's configured cap.
func (m *Manager) MaxConcurrency() int { return m.maxConcurrency }

// CodingCount returns the number of coding agents currently running.
func (m *Manager) CodingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.coding)
}

// TestingCount returns the number of testing agents currently running.
func (m *Manager) TestingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.testing)
}

// RetryCount returns how many times featureID's coding agent has exited
// nonzero so far.
func (m *Manager) RetryCount(featureID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries[featureID]
}

// Status returns a point-in-time snapshot for the external status query.
func (m *Manager) Status() models.PoolSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() models.PoolSnapshot {
	running := make([]int64, 0, len(m.coding))
	for id := range m.coding {
		running = append(running, id)
	}
	return models.PoolSnapshot{
		RunningFeatures:   running,
		CodingAgentCount:  len(m.coding),
		TestingAgentCount: len(m.testing),
		MaxConcurrency:    m.maxConcurrency,
		TestingAgentRatio: m.testingRatio,
		IsRunning:         m.active,
		YoloMode:          m.yolo,
	}
}

// persistStatus writes the current snapshot to the project's status file so
// the `status` subcommand, which runs as a separate process with no access
// to this Manager, can read it. Write failures are logged, not fatal —
// status reporting is a convenience, not part of the scheduling path.
func (m *Manager) persistStatus() {
	m.mu.Lock()
	snap := m.statusLocked()
	m.mu.Unlock()

	if err := writeStatusFile(m.spec.ProjectDir, snap); err != nil {
		m.logger.Log("status", "failed to persist status file", debuglog.F("error", err))
	}
}

// StartCoding admits a coding agent for featureID if capacity allows,
// claiming (or, if resume is true, re-verifying) the feature in the
// catalog before spawning. The feature id is reserved in the coding map
// before the catalog call and the spawn, so a concurrent StartCoding call
// for the same feature always sees ErrAlreadyRunning instead of racing to
// double-claim it.
func (m *Manager) StartCoding(ctx context.Context, featureID int64, resume bool) error {
	m.mu.Lock()
	if _, exists := m.coding[featureID]; exists {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(m.coding) >= m.maxConcurrency {
		m.mu.Unlock()
		return ErrAtMaxConcurrency
	}
	if len(m.coding)+len(m.testing) >= MaxTotalAgents {
		m.mu.Unlock()
		return ErrAtMaxTotal
	}
	m.coding[featureID] = &codingEntry{}
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		delete(m.coding, featureID)
		m.mu.Unlock()
	}

	if resume {
		if err := m.store.VerifyResumable(ctx, featureID); err != nil {
			release()
			return err
		}
	} else {
		if err := m.store.ClaimForCoding(ctx, featureID); err != nil {
			release()
			return err
		}
	}

	childCtx, cancel := context.WithCancel(ctx)
	child, err := procsup.Spawn(procsup.SpawnOptions{
		Ctx:         childCtx,
		Argv:        m.spec.CodingArgv(featureID),
		WorkDir:     m.spec.ProjectDir,
		KillTimeout: m.killTimeout,
		OnLine:      func(line string) { m.emitOutput(featureID, line) },
		OnExit:      func(_ *procsup.Child, exitCode int) { m.handleCodingExit(featureID, exitCode) },
	})
	if err != nil {
		cancel()
		release()
		_ = m.store.ReleaseInProgress(context.Background(), featureID)
		return fmt.Errorf("spawn coding agent for feature %d: %w", featureID, err)
	}

	m.mu.Lock()
	// A fast-exiting agent may already have run handleCodingExit and
	// removed the reservation; don't resurrect its slot.
	if _, reserved := m.coding[featureID]; reserved {
		m.coding[featureID] = &codingEntry{child: child, cancel: cancel}
	}
	m.mu.Unlock()

	m.emitStatus(featureID, models.AgentStatusRunning)
	return nil
}

// handleCodingExit runs once per coding agent, after its process tree has
// been torn down. It enforces invariant I7 (a feature that exits 0 but
// still shows not-passing is defensively released back to pending rather
// than left claimed forever) and increments the retry counter on failure.
func (m *Manager) handleCodingExit(featureID int64, exitCode int) {
	m.mu.Lock()
	delete(m.coding, featureID)
	m.mu.Unlock()

	ctx := context.Background()
	if snap, err := m.store.Snapshot(ctx); err == nil {
		for _, f := range snap {
			if f.ID == featureID && f.InProgress && !f.Passes {
				_ = m.store.ReleaseInProgress(ctx, featureID)
				break
			}
		}
	}

	if exitCode != 0 {
		m.mu.Lock()
		m.retries[featureID]++
		attempts := m.retries[featureID]
		m.mu.Unlock()

		if attempts >= MaxFeatureRetries {
			m.logger.Log("retry", "feature exhausted its retry budget",
				debuglog.F("feature_id", featureID), debuglog.F("attempts", attempts))
		}
		m.emitStatus(featureID, models.AgentStatusFailed)
	} else {
		m.emitStatus(featureID, models.AgentStatusCompleted)
	}

	m.completion.Signal()
}

// StopCoding cancels and kills the coding agent for featureID, if one is
// running. It is a no-op if no such agent exists.
func (m *Manager) StopCoding(featureID int64) {
	m.mu.Lock()
	entry, ok := m.coding[featureID]
	m.mu.Unlock()
	if !ok || entry.child == nil {
		return
	}
	entry.cancel()
	_ = procsup.KillTree(entry.child, m.killTimeout)
}

// MaintainTesting tops up the testing pool to testing_agent_ratio,
// spawning testing agents against arbitrary passing features that are not
// marked in-progress (the same feature may be picked for more than one
// testing agent), stopping as soon as the testing pool is full or the
// combined cap would be exceeded. It is a no-op in yolo mode, when
// testing_agent_ratio is zero, or after StopAll.
func (m *Manager) MaintainTesting(ctx context.Context) {
	if m.yolo || m.testingRatio == 0 {
		return
	}

	for {
		m.mu.Lock()
		full := len(m.testing) >= m.testingRatio || len(m.coding)+len(m.testing) >= MaxTotalAgents
		stopped := !m.active
		m.mu.Unlock()
		if full || stopped {
			return
		}

		featureID, ok, err := m.store.RandomPassingNotInProgress(ctx)
		if err != nil || !ok {
			return
		}

		child, err := procsup.Spawn(procsup.SpawnOptions{
			Argv:        m.spec.TestingArgv(featureID),
			WorkDir:     m.spec.ProjectDir,
			KillTimeout: m.killTimeout,
			OnLine:      func(line string) { m.emitOutput(featureID, line) },
			OnExit: func(c *procsup.Child, exitCode int) {
				m.handleTestingExit(featureID, c.PID(), exitCode)
			},
		})
		if err != nil {
			m.logger.Log("testing", "spawn failed",
				debuglog.F("feature_id", featureID), debuglog.F("error", err))
			return
		}

		m.mu.Lock()
		m.testing[child.PID()] = &testingEntry{featureID: featureID, child: child}
		m.mu.Unlock()

		m.emitStatus(featureID, models.AgentStatusRunning)
	}
}

// handleTestingExit runs once per testing agent. Testing agents carry no
// retry accounting of their own — a failed re-verification just leaves the
// feature's passing state as the catalog already has it, since only the
// worker (not the core) writes Passes.
func (m *Manager) handleTestingExit(featureID int64, pid int, exitCode int) {
	m.mu.Lock()
	delete(m.testing, pid)
	m.mu.Unlock()

	if exitCode == 0 {
		m.emitStatus(featureID, models.AgentStatusCompleted)
	} else {
		m.emitStatus(featureID, models.AgentStatusFailed)
	}
	m.completion.Signal()
}

// StopAll stops every coding agent and kills every testing agent's process
// tree, clearing the testing pool atomically so MaintainTesting can't
// refill it mid-shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	m.active = false
	codingIDs := make([]int64, 0, len(m.coding))
	for id := range m.coding {
		codingIDs = append(codingIDs, id)
	}
	m.mu.Unlock()
	for _, id := range codingIDs {
		m.StopCoding(id)
	}

	m.mu.Lock()
	entries := make([]*testingEntry, 0, len(m.testing))
	for _, e := range m.testing {
		entries = append(entries, e)
	}
	m.testing = make(map[int]*testingEntry)
	m.mu.Unlock()

	for _, e := range entries {
		_ = procsup.KillTree(e.child, m.killTimeout)
	}

	m.persistStatus()
}

func (m *Manager) emitOutput(featureID int64, line string) {
	if m.onOutput != nil {
		m.onOutput(featureID, line)
	}
}

func (m *Manager) emitStatus(featureID int64, status models.AgentStatus) {
	if m.onStatus != nil {
		m.onStatus(featureID, status)
	}
	m.persistStatus()
}
