//go:build windows

package shell

import (
	"os"
	"syscall"
)

var defaultShell = []string{"cmd", "/C"}

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// windows can't deliver SIGINT to another console process, kill it and let
// the interrupted flag classify the outcome
func interrupt(p *os.Process) error {
	return p.Kill()
}

func interruptedBySignal(*os.ProcessState) bool {
	return false
}
