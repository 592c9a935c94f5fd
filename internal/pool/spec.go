package pool

import "strconv"

// WorkerSpec builds the argv for each of the three subprocess roles THE
// CORE spawns. The worker binary itself is out of scope for this spec; the
// core only needs to know how to invoke it.
type WorkerSpec struct {
	// BinaryPath is the worker executable to invoke.
	BinaryPath string
	// ProjectDir is the target project the worker operates on.
	ProjectDir string
	// Model, if set, is passed through to the worker.
	Model string
	// Yolo, if true, is passed through as a flag disabling the worker's own
	// confirmation prompts.
	Yolo bool
}

// CodingArgv builds the argv for a coding agent assigned to featureID:
// <worker> --project-dir <path> --max-iterations 1 --agent-type coding
// --feature-id <id> [--model <m>] [--yolo].
func (s WorkerSpec) CodingArgv(featureID int64) []string {
	argv := []string{
		s.BinaryPath,
		"--project-dir", s.ProjectDir,
		"--max-iterations", "1",
		"--agent-type", "coding",
		"--feature-id", strconv.FormatInt(featureID, 10),
	}
	return s.withCommonFlags(argv)
}

// TestingArgv builds the argv for a testing agent re-verifying featureID:
// <worker> --project-dir <path> --max-iterations 1 --agent-type testing
// --testing-feature-id <id> [--model <m>].
func (s WorkerSpec) TestingArgv(featureID int64) []string {
	argv := []string{
		s.BinaryPath,
		"--project-dir", s.ProjectDir,
		"--max-iterations", "1",
		"--agent-type", "testing",
		"--testing-feature-id", strconv.FormatInt(featureID, 10),
	}
	if s.Model != "" {
		argv = append(argv, "--model", s.Model)
	}
	return argv
}

// InitializerArgv builds the argv for the one-shot initializer that seeds
// the catalog when a project has no features yet:
// <worker> --project-dir <path> --max-iterations 1 --agent-type initializer
// [--model <m>].
func (s WorkerSpec) InitializerArgv() []string {
	argv := []string{
		s.BinaryPath,
		"--project-dir", s.ProjectDir,
		"--max-iterations", "1",
		"--agent-type", "initializer",
	}
	if s.Model != "" {
		argv = append(argv, "--model", s.Model)
	}
	return argv
}

func (s WorkerSpec) withCommonFlags(argv []string) []string {
	if s.Model != "" {
		argv = append(argv, "--model", s.Model)
	}
	if s.Yolo {
		argv = append(argv, "--yolo")
	}
	return argv
}
