package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pyappify/pyappify/internal/config"
	"github.com/pyappify/pyappify/internal/events"
	"github.com/pyappify/pyappify/internal/gitsync"
	"github.com/pyappify/pyappify/internal/logging"
	"github.com/pyappify/pyappify/internal/orchestrator"
	"github.com/pyappify/pyappify/internal/paths"
	"github.com/pyappify/pyappify/internal/pyruntime"
	"github.com/pyappify/pyappify/internal/registry"
	"github.com/pyappify/pyappify/internal/supervisor"
	"github.com/pyappify/pyappify/internal/version"
)

// envCommand and envProfile allow driving the binary from a wrapper that
// cannot pass arguments, mirroring the installer's contract.
const (
	envCommand = "PYAPPIFY_COMMAND"
	envProfile = "PYAPPIFY_PROFILE_NAME"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pyappify",
		Short:         "Install, update and run a managed Python application",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Environment-driven dispatch for argument-less launchers.
			if command := os.Getenv(envCommand); command != "" {
				return dispatchEnvCommand(command)
			}
			return cmd.Help()
		},
	}

	root.AddCommand(
		newSetupCmd(),
		newRunCmd(),
		newStopCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newListCmd(),
		newVersionsCmd(),
		newNotesCmd(),
	)
	return root
}

func dispatchEnvCommand(command string) error {
	switch command {
	case "setup":
		profile := os.Getenv(envProfile)
		if profile == "" {
			profile = "default"
		}
		sh, err := bootstrap()
		if err != nil {
			return err
		}
		defer sh.close()
		return sh.setup(profile)
	default:
		return fmt.Errorf("unsupported %s value %q", envCommand, command)
	}
}

// shell holds the wired services behind every subcommand.
type shell struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *logging.Logger
	cfg    *config.Config
	layout paths.Layout
	svc    *orchestrator.Service
}

func bootstrap() (*shell, error) {
	cfg := config.LoadOrDefault()

	logDir := cfg.Logging.Dir
	if logDir != "" && !filepath.IsAbs(logDir) {
		logDir = filepath.Join(cfg.Paths.DataDir, logDir)
	}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			logDir = ""
		}
	}
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		LogDir:      logDir,
	})
	if err != nil {
		log = logging.NewDefault()
	}

	sink := events.NewLogSink(log)
	layout := paths.New(cfg.Paths.DataDir)
	reg := registry.New(layout, log)
	git := gitsync.New(log, sink)
	py := pyruntime.New(log, sink, layout, cfg)
	proc := supervisor.New(log, sink, layout, supervisor.NewElevator())
	svc := orchestrator.New(log, sink, cfg, layout, reg, git, py, proc)
	svc.MarkAutoStartHandled()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return &shell{ctx: ctx, cancel: cancel, log: log, cfg: cfg, layout: layout, svc: svc}, nil
}

func (sh *shell) close() {
	sh.cancel()
	_ = sh.log.Sync()
}

// loadApp loads state from disk and returns the managed app's name.
func (sh *shell) loadApp() (string, error) {
	apps, err := sh.svc.Load(sh.ctx)
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return "", fmt.Errorf("no managed app found")
	}
	return apps[0].Name, nil
}

func (sh *shell) setup(profile string) error {
	name, err := sh.loadApp()
	if err != nil {
		return err
	}
	return sh.svc.Setup(sh.ctx, name, profile)
}
