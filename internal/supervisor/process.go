package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// RelatedPIDs returns the PIDs of processes whose executable lives under the
// app's directory. Processes we cannot inspect are skipped.
func RelatedPIDs(appDir string) ([]int32, error) {
	canonical, err := filepath.Abs(appDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve app dir %s: %w", appDir, err)
	}
	prefix := canonical + string(filepath.Separator)

	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var pids []int32
	for _, p := range procs {
		exe, err := p.Exe()
		if err != nil || exe == "" {
			continue
		}
		if strings.HasPrefix(exe, prefix) {
			pids = append(pids, p.Pid)
		}
	}
	return pids, nil
}

// AnyRunning reports whether any process is executing out of the app's
// directory.
func AnyRunning(appDir string) bool {
	pids, err := RelatedPIDs(appDir)
	return err == nil && len(pids) > 0
}

// TerminateResult reports what a stop attempt did.
type TerminateResult struct {
	// Targeted is false when no process belonged to the app.
	Targeted bool
	// StillRunning is true when processes survived the kill attempts.
	StillRunning bool
}

// Terminate kills every process running out of the app's directory. A
// process surviving the normal kill gets one elevated attempt. After any
// kill a short grace period passes before the final recheck.
func (s *Service) Terminate(ctx context.Context, app, appDir string) (TerminateResult, error) {
	pids, err := RelatedPIDs(appDir)
	if err != nil {
		return TerminateResult{}, err
	}
	if len(pids) == 0 {
		s.log.Info("no processes targeted", zap.String("app", app))
		return TerminateResult{}, nil
	}

	for _, pid := range pids {
		p, err := process.NewProcess(pid)
		if err != nil {
			continue
		}
		s.log.Info("killing process", zap.String("app", app), zap.Int32("pid", pid))
		if err := p.Kill(); err != nil {
			if alive, aliveErr := p.IsRunning(); aliveErr == nil && !alive {
				continue
			}
			s.log.Warn("standard kill failed, attempting elevated",
				zap.Int32("pid", pid), zap.Error(err))
			if err := s.elevator.KillElevated(ctx, pid); err != nil {
				s.log.Error("elevated kill failed", zap.Int32("pid", pid), zap.Error(err))
			}
		}
	}

	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
		return TerminateResult{Targeted: true}, ctx.Err()
	}

	return TerminateResult{
		Targeted:     true,
		StillRunning: AnyRunning(appDir),
	}, nil
}
