//go:build !windows

package shell

import (
	"errors"
	"os"
	"syscall"
)

var defaultShell = []string{"/bin/sh", "-c"}

// the shell leads its own process group, so an interrupt reaches the
// whole pipeline and not just the shell
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func interrupt(p *os.Process) error {
	err := syscall.Kill(-p.Pid, syscall.SIGINT)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

func interruptedBySignal(state *os.ProcessState) bool {
	ws, ok := state.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled() && ws.Signal() == syscall.SIGINT
}
