//go:build windows

package tools

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
)

// killProcessGroupOnCancel terminates the full process tree with taskkill
// when the command context ends.
func killProcessGroupOnCancel(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil || cmd.Process.Pid <= 0 {
			return nil
		}
		// /T: child processes, /F: force. Process.Kill below covers failures.
		_ = exec.Command("taskkill", "/PID", strconv.Itoa(cmd.Process.Pid), "/T", "/F").Run()
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return nil
	}
}
