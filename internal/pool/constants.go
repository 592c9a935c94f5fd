package pool

import "time"

const (
	// MaxParallelAgents is the hard ceiling on max_concurrency accepted
	// from configuration.
	MaxParallelAgents = 5
	// MaxTotalAgents bounds coding + testing agents running at once,
	// regardless of how max_concurrency and testing_agent_ratio are set.
	MaxTotalAgents = 10
	// MaxTestingAgentRatio is the hard ceiling on testing_agent_ratio
	// accepted from configuration.
	MaxTestingAgentRatio = 3
	// MaxFeatureRetries is the number of nonzero-exit attempts a coding
	// agent gets on a single feature before it's left pending without
	// further retries.
	MaxFeatureRetries = 3
)

// DefaultKillTimeout bounds how long a stop request waits for a process
// tree to exit after SIGTERM before escalating to SIGKILL.
const DefaultKillTimeout = 5 * time.Second
