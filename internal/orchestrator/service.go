// Package orchestrator coordinates the full app lifecycle: loading state,
// setup, version updates, start, stop and deletion. It owns the registry and
// drives the synchronizer, the provisioner and the supervisor.
package orchestrator

import (
	"context"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/pyappify/pyappify/internal/config"
	"github.com/pyappify/pyappify/internal/events"
	"github.com/pyappify/pyappify/internal/logging"
	"github.com/pyappify/pyappify/internal/manifest"
	"github.com/pyappify/pyappify/internal/paths"
	"github.com/pyappify/pyappify/internal/registry"
	"github.com/pyappify/pyappify/internal/supervisor"
)

// GitSyncer is the repository synchronization surface the orchestrator needs.
type GitSyncer interface {
	Ensure(ctx context.Context, app, url, repoPath string) error
	FetchVersions(ctx context.Context, app, repoPath string) ([]string, string, error)
	Checkout(ctx context.Context, app, repoPath, tag string) (plumbing.Hash, error)
	DiffNotes(ctx context.Context, app, repoPath, targetTag string) ([]string, error)
}

// EnvProvisioner provisions runtimes and installs dependencies.
type EnvProvisioner interface {
	EnsureEnv(ctx context.Context, app, spec string) (string, error)
	InstallDeps(ctx context.Context, app, spec, pipArgs string) error
}

// ProcessManager launches and terminates app processes.
type ProcessManager interface {
	Launch(ctx context.Context, app string, profile manifest.Profile, appVersion string, extraArgs []string) error
	Terminate(ctx context.Context, app, appDir string) (supervisor.TerminateResult, error)
}

// Service is the lifecycle coordinator.
type Service struct {
	log    *logging.Logger
	sink   events.Sink
	cfg    *config.Config
	layout paths.Layout
	reg    *registry.Registry
	git    GitSyncer
	py     EnvProvisioner
	proc   ProcessManager

	// isRunning is injectable for tests; defaults to a process scan.
	isRunning func(appDir string) bool

	autoStartMu   sync.Mutex
	autoStartDone bool
}

// New wires a lifecycle coordinator.
func New(
	log *logging.Logger,
	sink events.Sink,
	cfg *config.Config,
	layout paths.Layout,
	reg *registry.Registry,
	git GitSyncer,
	py EnvProvisioner,
	proc ProcessManager,
) *Service {
	return &Service{
		log:       log,
		sink:      sink,
		cfg:       cfg,
		layout:    layout,
		reg:       reg,
		git:       git,
		py:        py,
		proc:      proc,
		isRunning: supervisor.AnyRunning,
	}
}

// Apps returns the current records, running apps first.
func (s *Service) Apps() []*registry.App {
	return s.reg.List()
}

func (s *Service) publishApps() {
	s.sink.Apps(s.reg.List())
}

// MarkAutoStartHandled suppresses the one-shot auto-start, used when an
// explicit command takes over the session.
func (s *Service) MarkAutoStartHandled() {
	s.autoStartMu.Lock()
	s.autoStartDone = true
	s.autoStartMu.Unlock()
}
