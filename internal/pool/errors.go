package pool

import "errors"

// Sentinel errors surfaced by Manager admission control, matching the
// "admission refused" branch of the error taxonomy: these are expected,
// frequent outcomes of a busy scheduler, not failures worth logging loudly.
var (
	// ErrAlreadyRunning is returned when a coding agent is already active
	// for the requested feature.
	ErrAlreadyRunning = errors.New("pool: coding agent already running for this feature")
	// ErrAtMaxConcurrency is returned when the coding pool is already at
	// max_concurrency.
	ErrAtMaxConcurrency = errors.New("pool: coding pool at max concurrency")
	// ErrAtMaxTotal is returned when coding + testing would exceed
	// MaxTotalAgents.
	ErrAtMaxTotal = errors.New("pool: combined agent pools at max total")
)
