// SPDX-License-Identifier: MIT

// Package procgroup spawns subprocesses in their own process group and
// signals the whole group, so helper processes forked by the download tool
// never outlive their job.
package procgroup

import (
	"os/exec"
	"strings"
	"syscall"

	"github.com/dlgram/dlgram/internal/metrics"
)

// Set configures the command to start in a new process group.
// Mandatory for Kill to reach the whole tree.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Kill sends sig to the command's process group. Safe to call on nil or
// never-started commands and on processes that already exited.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	err := kill(cmd, sig)
	name := sig.String()
	switch {
	case err == nil:
		metrics.IncProcTerminate(name, "sent")
	case strings.Contains(err.Error(), "process already finished"),
		strings.Contains(err.Error(), "no such process"):
		metrics.IncProcTerminate(name, "esrch")
		return nil
	default:
		metrics.IncProcTerminate(name, "error")
	}
	return err
}
