//go:build windows

package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// windowsElevator escalates through the UAC RunAs verb.
type windowsElevator struct{}

// NewElevator returns the platform's privilege escalation strategy.
func NewElevator() Elevator {
	return windowsElevator{}
}

// IsElevated probes for administrative rights; `net session` fails without
// them.
func (windowsElevator) IsElevated() bool {
	return exec.Command("net", "session").Run() == nil
}

func (windowsElevator) Command(ctx context.Context, exe string, args []string) *exec.Cmd {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = "'" + strings.ReplaceAll(a, "'", "''") + "'"
	}
	script := fmt.Sprintf("Start-Process -FilePath '%s' -Verb RunAs -Wait", exe)
	if len(quoted) > 0 {
		script = fmt.Sprintf("Start-Process -FilePath '%s' -ArgumentList %s -Verb RunAs -Wait",
			exe, strings.Join(quoted, ","))
	}
	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
}

func (windowsElevator) KillElevated(ctx context.Context, pid int32) error {
	script := fmt.Sprintf("Start-Process -FilePath 'taskkill' -ArgumentList '/F','/PID','%s' -Verb RunAs -Wait",
		strconv.Itoa(int(pid)))
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("elevated kill of pid %d failed: %w", pid, err)
	}
	return nil
}
