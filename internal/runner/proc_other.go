//go:build !unix && !windows

package runner

import (
	"errors"
	"os"
	"os/exec"
)

func configureProcess(*exec.Cmd) {}

// killTree can only reach the leader on this platform.
func killTree(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
