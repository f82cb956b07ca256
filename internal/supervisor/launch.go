package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/pyappify/pyappify/internal/events"
	"github.com/pyappify/pyappify/internal/logging"
	"github.com/pyappify/pyappify/internal/manifest"
	"github.com/pyappify/pyappify/internal/paths"
)

// Elevator is the per-platform privilege escalation strategy.
type Elevator interface {
	// IsElevated reports whether the manager itself already has elevated
	// privileges.
	IsElevated() bool
	// Command wraps an invocation so it runs elevated.
	Command(ctx context.Context, exe string, args []string) *exec.Cmd
	// KillElevated force-kills a process with elevated privileges.
	KillElevated(ctx context.Context, pid int32) error
}

// Service launches and stops app processes.
type Service struct {
	log      *logging.Logger
	sink     events.Sink
	layout   paths.Layout
	elevator Elevator
}

// New creates a supervisor using the given escalation strategy.
func New(log *logging.Logger, sink events.Sink, layout paths.Layout, elevator Elevator) *Service {
	return &Service{log: log, sink: sink, layout: layout, elevator: elevator}
}

// Launch starts the app's main script without blocking. The outcome is
// reported asynchronously through the sink's Finish event. Extra args are
// forwarded to the child.
func (s *Service) Launch(ctx context.Context, app string, profile manifest.Profile, appVersion string, extraArgs []string) error {
	if profile.MainScript == "" {
		return fmt.Errorf("main script empty for profile %q of app %q", profile.Name, app)
	}

	workingDir := s.layout.WorkingDir(app)
	if info, err := os.Stat(workingDir); err != nil || !info.IsDir() {
		return fmt.Errorf("working directory not found: %s", workingDir)
	}

	python := s.layout.VenvPython(app)
	if _, err := os.Stat(python); err != nil {
		return fmt.Errorf("venv interpreter not found at %s", python)
	}

	scriptPath, err := ResolveScript(profile.MainScript, workingDir, s.layout.VenvScriptsDir(app))
	if err != nil {
		return err
	}

	exe, args := commandFor(python, scriptPath)
	args = append(args, extraArgs...)

	env := ComposeEnv(profile, appVersion).Apply(os.Environ())

	needsElevation := profile.IsAdmin() && !s.elevator.IsElevated()
	if profile.IsAdmin() && !needsElevation {
		s.sink.Info(app, "Admin rights requested, but process is already elevated. Using standard execution.")
	}

	var cmd *exec.Cmd
	if needsElevation {
		s.sink.Info(app, "Elevation required, using admin execution.")
		cmd = s.elevator.Command(ctx, exe, args)
	} else {
		cmd = exec.CommandContext(ctx, exe, args...)
	}
	cmd.Dir = workingDir
	cmd.Env = env

	s.sink.Info(app, fmt.Sprintf("Launching %s %s", exe, strings.Join(args, " ")))
	s.log.Info("launching app process",
		zap.String("app", app),
		zap.String("exe", exe),
		zap.Strings("args", args),
		zap.Bool("elevated", needsElevation))

	go s.runAndReport(cmd, app, needsElevation)
	return nil
}

// runAndReport waits for the process and publishes the terminal event.
func (s *Service) runAndReport(cmd *exec.Cmd, app string, elevated bool) {
	var err error
	if elevated {
		// Elevated launches go through a broker process; its output is not
		// ours to read.
		err = cmd.Run()
	} else {
		err = s.runStreaming(cmd, app)
	}
	if err != nil {
		s.sink.Error(app, fmt.Sprintf("Script run error: %v", err))
		s.sink.Finish(app, false)
		return
	}
	s.sink.Info(app, "Script run success")
	s.sink.Finish(app, true)
}

// commandFor decides whether the script runs through the interpreter or as
// an executable entry point.
func commandFor(python, scriptPath string) (string, []string) {
	if strings.HasSuffix(scriptPath, ".py") || strings.HasSuffix(scriptPath, ".pyw") {
		return python, []string{scriptPath}
	}
	return scriptPath, nil
}
