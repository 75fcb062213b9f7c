//go:build linux

package handler

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr ensures an abandoned handler cannot outlive the runtime
// client: the kernel delivers SIGKILL to the child when the client dies.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: unix.SIGKILL,
	}
}
