//go:build unix

package service

import (
	"os/exec"
	"syscall"
)

// setupProcess puts the worker in its own process group, so Kill reaches
// helpers the worker spawned.
func setupProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd) error {
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return cmd.Process.Kill()
}
