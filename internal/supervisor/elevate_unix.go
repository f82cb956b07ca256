//go:build !windows

package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// unixElevator escalates through sudo.
type unixElevator struct{}

// NewElevator returns the platform's privilege escalation strategy.
func NewElevator() Elevator {
	return unixElevator{}
}

func (unixElevator) IsElevated() bool {
	return os.Geteuid() == 0
}

func (unixElevator) Command(ctx context.Context, exe string, args []string) *exec.Cmd {
	// -E keeps the composed environment; sudo would otherwise reset it and
	// the child would never see its PYAPPIFY_* variables.
	sudoArgs := append([]string{"-E", exe}, args...)
	return exec.CommandContext(ctx, "sudo", sudoArgs...)
}

func (unixElevator) KillElevated(ctx context.Context, pid int32) error {
	cmd := exec.CommandContext(ctx, "sudo", "kill", "-9", strconv.Itoa(int(pid)))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("elevated kill of pid %d failed: %w", pid, err)
	}
	return nil
}
