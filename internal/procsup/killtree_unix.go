//go:build !windows

package procsup

import (
	"os/exec"
	"syscall"
	"time"
)

// setSysProcAttr puts the child in its own session: it detaches from the
// caller's controlling terminal and becomes the leader of a new process
// group, so signaling the negative pid reaches every descendant that
// doesn't explicitly escape the group. Grounded on baiirun-aetherflow's
// ExecProcessStarter, which sets the same flag with the comment "own
// process group so terminal signals don't propagate to daemon".
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// TreeKillReport summarizes a KillTree attempt. Exact descendant counts
// aren't tracked — POSIX process groups don't expose membership cheaply —
// so this reports only whether a signal was delivered and at what
// severity, matching the design note's "best-effort, never block shutdown
// on a slow-to-die descendant" guidance.
type TreeKillReport struct {
	SignaledTerm bool
	SignaledKill bool
	Exited       bool
}

// KillTree sends SIGTERM to child's process group, waits up to timeout for
// the child to be reaped, and escalates to SIGKILL if it hasn't exited by
// then. It never returns an error to the caller: a kill failure (the
// process already gone, permission denied) does not fail the completion
// path per the Process Supervisor's error-handling design.
func KillTree(child *Child, timeout time.Duration) TreeKillReport {
	report := TreeKillReport{}

	if err := syscall.Kill(-child.pid, syscall.SIGTERM); err == nil {
		report.SignaledTerm = true
	} else if err == syscall.ESRCH {
		report.Exited = true
		return report
	}

	select {
	case <-child.done:
		report.Exited = true
		return report
	case <-time.After(timeout):
	}

	if err := syscall.Kill(-child.pid, syscall.SIGKILL); err == nil {
		report.SignaledKill = true
	}

	select {
	case <-child.done:
		report.Exited = true
	case <-time.After(timeout):
	}

	return report
}
