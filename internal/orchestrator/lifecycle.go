package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pyappify/pyappify/internal/fsutil"
	"github.com/pyappify/pyappify/internal/manifest"
	"github.com/pyappify/pyappify/internal/pyruntime"
)

// startupWatchTimeout bounds how long a fresh launch is polled for
// liveness.
const startupWatchTimeout = 10 * time.Second

// Setup installs the app with the named profile: clone or refresh the
// repository, rebuild the working copy, provision the environment and
// install dependencies.
func (s *Service) Setup(ctx context.Context, name, profileName string) error {
	mu := s.reg.Lock(name)
	mu.Lock()
	defer mu.Unlock()

	err := s.setupLocked(ctx, name, profileName)
	if err != nil {
		s.sink.Error(name, err.Error())
	}
	s.sink.Finish(name, err == nil)
	return err
}

func (s *Service) setupLocked(ctx context.Context, name, profileName string) error {
	app, ok := s.reg.Get(name)
	if !ok {
		return fmt.Errorf("app %q not found", name)
	}
	profile, _ := app.Profile()
	if profile.GitURL == "" {
		return fmt.Errorf("app %q has no git URL configured", name)
	}

	if err := s.git.Ensure(ctx, name, profile.GitURL, s.layout.RepoDir(name)); err != nil {
		return err
	}

	if err := os.RemoveAll(s.layout.WorkingDir(name)); err != nil {
		return fmt.Errorf("failed to clear working copy: %w", err)
	}
	if err := s.rebuildWorking(name); err != nil {
		return err
	}

	m := s.workingManifest(name)
	setupProfile, found := m.Profile(profileName)
	if !found {
		s.log.Warn("profile not found, falling back to default",
			zap.String("app", name),
			zap.String("requested", profileName),
			zap.String("using", setupProfile.Name))
	}

	if _, err := s.py.EnsureEnv(ctx, name, setupProfile.RequiresPython); err != nil {
		return err
	}

	if setupProfile.Requirements != "" {
		if err := s.py.InstallDeps(ctx, name, setupProfile.Requirements, setupProfile.PipArgs); err != nil {
			return err
		}
	} else {
		s.sink.Info(name, fmt.Sprintf("No requirements in profile %q. Skipping dependency sync.", setupProfile.Name))
	}

	app.ApplyManifest(m)
	app.Installed = true
	app.CurrentProfile = setupProfile.Name
	if err := s.reg.Upsert(app); err != nil {
		return err
	}

	if _, err := s.RefreshFromDisk(ctx); err != nil {
		s.log.Error("failed to refresh versions after setup", zap.Error(err))
	}
	s.publishApps()
	return nil
}

// Update checks out a version and reconciles the environment. Dependencies
// are reinstalled only when the requirements spec or its file content
// changed across the checkout.
func (s *Service) Update(ctx context.Context, name, version string) error {
	mu := s.reg.Lock(name)
	mu.Lock()
	defer mu.Unlock()

	err := s.updateLocked(ctx, name, version)
	if err != nil {
		s.sink.Error(name, err.Error())
	}
	s.sink.Finish(name, err == nil)
	return err
}

func (s *Service) updateLocked(ctx context.Context, name, version string) error {
	app, ok := s.reg.Get(name)
	if !ok {
		return fmt.Errorf("app %q not found", name)
	}
	workingDir := s.layout.WorkingDir(name)

	oldProfile, _ := app.Profile()
	oldSpec := oldProfile.Requirements
	oldContent := pyruntime.SpecContent(oldSpec, workingDir)

	commit, err := s.git.Checkout(ctx, name, s.layout.RepoDir(name), version)
	if err != nil {
		return err
	}
	s.sink.Info(name, fmt.Sprintf("Checked out version %s at commit %s", version, commit))

	if err := s.rebuildWorking(name); err != nil {
		return err
	}

	m := s.workingManifest(name)
	newProfile, _ := m.Profile(app.CurrentProfile)
	newSpec := newProfile.Requirements
	newContent := pyruntime.SpecContent(newSpec, workingDir)

	if pyruntime.ShouldSync(oldSpec, oldContent, newSpec, newContent) {
		if oldSpec != newSpec {
			s.sink.Info(name, fmt.Sprintf("Requirements spec changed from %q to %q. Syncing dependencies.", oldSpec, newSpec))
		} else {
			s.sink.Info(name, fmt.Sprintf("Content of %q changed. Syncing dependencies.", pyruntime.SpecFileName(newSpec)))
		}
		if err := s.py.InstallDeps(ctx, name, newSpec, newProfile.PipArgs); err != nil {
			return err
		}
	} else {
		s.sink.Info(name, "Requirements are up to date. Skipping dependency sync.")
	}

	app.ApplyManifest(m)
	app.CurrentVersion = version
	if err := s.reg.Upsert(app); err != nil {
		return err
	}
	s.sink.Info(name, fmt.Sprintf("Updated %s to version %s", name, version))
	s.publishApps()
	return nil
}

// Start launches the app's current profile without blocking. A missing venv
// resets the installation instead of starting a broken app.
func (s *Service) Start(ctx context.Context, name string, extraArgs []string) error {
	s.MarkAutoStartHandled()

	mu := s.reg.Lock(name)
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(s.layout.VenvPython(name)); err != nil {
		s.log.Warn("venv missing on start, resetting app", zap.String("app", name))
		if err := s.deleteLocked(name); err != nil {
			return err
		}
		s.sink.Finish(name, false)
		return fmt.Errorf("environment for %q was missing; the app has been reset, run setup again", name)
	}

	app, ok := s.reg.Get(name)
	if !ok {
		return fmt.Errorf("app %q not found", name)
	}
	profile, _ := app.Profile()

	app.LastStart = time.Now().UTC()
	if err := s.reg.Upsert(app); err != nil {
		s.log.Error("failed to persist last start time",
			zap.String("app", name), zap.Error(err))
	}

	if err := s.proc.Launch(ctx, name, profile, app.CurrentVersion, extraArgs); err != nil {
		s.sink.Finish(name, false)
		return err
	}

	go s.watchStartup(name)
	return nil
}

// watchStartup polls for the launched process to appear, then reflects the
// observed state in the registry.
func (s *Service) watchStartup(name string) {
	appDir := s.layout.AppDir(name)
	deadline := time.Now().Add(startupWatchTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(time.Second)
		if s.isRunning(appDir) {
			if changed, _ := s.reg.SetRunning(name, true); changed {
				s.publishApps()
			}
			return
		}
	}
	s.log.Warn("app did not appear to be running within the startup window",
		zap.String("app", name))
	if changed, _ := s.reg.SetRunning(name, s.isRunning(appDir)); changed {
		s.publishApps()
	}
}

// Stop terminates every process of the app and records the final state.
func (s *Service) Stop(ctx context.Context, name string) error {
	mu := s.reg.Lock(name)
	mu.Lock()
	defer mu.Unlock()

	appDir := s.layout.AppDir(name)
	res, err := s.proc.Terminate(ctx, name, appDir)
	if err != nil {
		return err
	}
	if !res.Targeted {
		s.sink.Info(name, "No processes targeted.")
	}

	stillRunning := res.StillRunning
	if changed, err := s.reg.SetRunning(name, stillRunning); err != nil {
		return err
	} else if changed {
		s.publishApps()
	}
	if stillRunning && res.Targeted {
		s.log.Warn("app may still be running", zap.String("app", name))
	}
	return nil
}

// Delete removes the app's on-disk state and demotes the record to not
// installed. The record itself survives so the app can be set up again.
func (s *Service) Delete(ctx context.Context, name string) error {
	mu := s.reg.Lock(name)
	mu.Lock()
	defer mu.Unlock()

	if err := s.deleteLocked(name); err != nil {
		return err
	}
	s.publishApps()
	return nil
}

func (s *Service) deleteLocked(name string) error {
	appDir := s.layout.AppDir(name)
	if err := os.RemoveAll(appDir); err != nil {
		s.log.Error("failed to delete app directory",
			zap.String("path", appDir), zap.Error(err))
	} else {
		s.log.Info("deleted app directory", zap.String("path", appDir))
	}

	app, ok := s.reg.Get(name)
	if !ok {
		return fmt.Errorf("app %q not found", name)
	}
	app.Installed = false
	app.Running = false
	return s.reg.Upsert(app)
}

// UpdateNotes returns the changelog preview for moving to a version.
func (s *Service) UpdateNotes(ctx context.Context, name, version string) ([]string, error) {
	mu := s.reg.Lock(name)
	mu.Lock()
	defer mu.Unlock()

	return s.git.DiffNotes(ctx, name, s.layout.RepoDir(name), version)
}

// rebuildWorking mirrors the repository into the working copy, leaving the
// venv and git metadata alone.
func (s *Service) rebuildWorking(name string) error {
	repoDir := s.layout.RepoDir(name)
	workingDir := s.layout.WorkingDir(name)

	if _, err := os.Stat(repoDir); err != nil {
		return fmt.Errorf("repository for %q not found at %s", name, repoDir)
	}
	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create working dir: %w", err)
	}
	if err := fsutil.CopyDirExcluding(repoDir, workingDir, []string{".git"}); err != nil {
		return fmt.Errorf("failed to copy repository into working copy: %w", err)
	}
	if err := fsutil.DeleteExtraneous(workingDir, repoDir, []string{".venv"}); err != nil {
		return fmt.Errorf("failed to prune working copy: %w", err)
	}
	return nil
}

// workingManifest loads the working copy's manifest, falling back to the
// embedded template when it is missing or broken.
func (s *Service) workingManifest(name string) *manifest.Manifest {
	m, err := manifest.ParseFile(s.layout.ManifestPath(name))
	if err != nil {
		s.log.Warn("working copy manifest unusable, using embedded template",
			zap.String("app", name), zap.Error(err))
		tmpl, tmplErr := manifest.Embedded()
		if tmplErr != nil {
			return &manifest.Manifest{Name: name, Profiles: []manifest.Profile{{Name: "default"}}}
		}
		tmpl.Name = name
		return tmpl
	}
	return m
}

// Poller periodically refreshes each app's running flag. The visible hook
// lets an attached shell pause scanning while hidden.
func (s *Service) Poller(ctx context.Context, visible func() bool) {
	interval := s.cfg.Poller.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("starting periodic app status updates",
		zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if visible != nil && !visible() {
			continue
		}

		changed := false
		for _, name := range s.reg.Names() {
			running := s.isRunning(s.layout.AppDir(name))
			if flipped, err := s.reg.SetRunning(name, running); err != nil {
				s.log.Error("failed to persist running flag",
					zap.String("app", name), zap.Error(err))
			} else if flipped {
				changed = true
			}
		}
		if changed {
			s.publishApps()
		}
	}
}
