//go:build windows

package command

import "os/exec"

// setProcAttr is a no-op on Windows; process-group semantics there need job
// objects, which this package does not implement.
//
// TODO: use a job object with JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE so
// descendants of a cancelled agent process are reaped too.
func setProcAttr(cmd *exec.Cmd) {
}

// killProcessGroup is a no-op on Windows; context cancellation still kills
// the direct child via exec.CommandContext, just not its descendants.
func killProcessGroup(pid int) error {
	return nil
}
