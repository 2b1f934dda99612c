//go:build !windows

package command

import (
	"os/exec"
	"syscall"
)

// setProcAttr puts the child in its own process group so Stream can kill
// the whole tree (agent binaries routinely fork MCP servers, browsers,
// etc.) instead of just the direct child.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the entire group led by pid. The group id equals
// the leader's pid, and a negative pid addresses the group rather than the
// single process.
func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(-pid, syscall.SIGTERM)
}
