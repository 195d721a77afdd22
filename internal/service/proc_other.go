//go:build !unix

package service

import "os/exec"

func setupProcess(_ *exec.Cmd) {}

func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
