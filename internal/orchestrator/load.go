package orchestrator

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pyappify/pyappify/internal/manifest"
	"github.com/pyappify/pyappify/internal/registry"
)

// Load brings the registry in line with disk state on startup: the embedded
// template seeds the single managed app, stale sibling directories are
// removed, broken installations are demoted, and versions are refreshed from
// the remote. The first successful load may auto-start the app.
func (s *Service) Load(ctx context.Context) ([]*registry.App, error) {
	if len(s.reg.Names()) > 0 {
		s.log.Info("apps already loaded, refreshing from disk")
		s.publishApps()
		return s.reg.List(), nil
	}

	tmpl, err := manifest.Embedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded app template: %w", err)
	}

	s.cleanupStaleDirs(tmpl.Name)

	app, err := s.prepareApp(tmpl)
	if err != nil {
		return nil, err
	}
	if err := s.reg.Upsert(app); err != nil {
		return nil, err
	}
	s.publishApps()

	if changed, err := s.RefreshFromDisk(ctx); err != nil {
		s.log.Error("failed to refresh versions from disk", zap.Error(err))
	} else if changed {
		s.publishApps()
	}

	s.maybeAutoStart(ctx)
	return s.reg.List(), nil
}

// prepareApp reconciles one app's persisted record against the template and
// the on-disk installation.
func (s *Service) prepareApp(tmpl *manifest.Manifest) (*registry.App, error) {
	name := tmpl.Name

	var app *registry.App
	if _, err := os.Stat(s.layout.RecordPath(name)); err == nil {
		loaded, err := s.reg.LoadRecord(name)
		if err != nil {
			return nil, err
		}
		app = loaded
		app.Running = s.isRunning(s.layout.AppDir(name))
		app.ApplyManifest(tmpl)
	} else {
		s.log.Info("no record on disk, creating from embedded template",
			zap.String("app", name))
		app = &registry.App{Name: name}
		app.ApplyManifest(tmpl)
	}

	if app.Installed {
		if _, err := os.Stat(s.layout.VenvPython(name)); err != nil {
			s.log.Warn("venv missing for installed app, resetting",
				zap.String("app", name))
			if err := os.RemoveAll(s.layout.AppDir(name)); err != nil {
				s.log.Warn("failed to remove app dir during reset",
					zap.String("app", name), zap.Error(err))
			}
			app.Installed = false
		} else if _, err := os.Stat(s.layout.RepoDir(name)); err != nil {
			s.log.Warn("repository missing for installed app, marking not installed",
				zap.String("app", name))
			app.Installed = false
		}
	}

	s.applyWorkingManifest(app)
	return app, nil
}

// applyWorkingManifest overlays the working copy's manifest onto the record.
// A missing or unparseable manifest leaves the record untouched.
func (s *Service) applyWorkingManifest(app *registry.App) {
	path := s.layout.ManifestPath(app.Name)
	if _, err := os.Stat(path); err != nil {
		return
	}
	m, err := manifest.ParseFile(path)
	if err != nil {
		s.log.Warn("failed to parse working copy manifest, keeping current profiles",
			zap.String("app", app.Name), zap.Error(err))
		return
	}
	app.ApplyManifest(m)
}

// cleanupStaleDirs removes app directories left behind by renames; only the
// embedded app's directory belongs under apps/.
func (s *Service) cleanupStaleDirs(current string) {
	entries, err := os.ReadDir(s.layout.AppsDir())
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == current {
			continue
		}
		stale := s.layout.AppDir(entry.Name())
		s.log.Info("removing stale application directory", zap.String("path", stale))
		if err := os.RemoveAll(stale); err != nil {
			s.log.Warn("failed to remove stale app directory",
				zap.String("path", stale), zap.Error(err))
		}
	}
}

// RefreshFromDisk re-reads versions from each installed app's repository,
// reporting whether any record changed.
func (s *Service) RefreshFromDisk(ctx context.Context) (bool, error) {
	changed := false
	for _, name := range s.reg.Names() {
		app, ok := s.reg.Get(name)
		if !ok {
			continue
		}
		if !app.Installed {
			continue
		}
		if _, err := os.Stat(s.layout.RepoDir(name)); err != nil {
			continue
		}

		versions, current, err := s.git.FetchVersions(ctx, name, s.layout.RepoDir(name))
		if err != nil {
			s.log.Error("failed to fetch versions",
				zap.String("app", name), zap.Error(err))
			continue
		}
		if current == app.CurrentVersion && equalStrings(versions, app.AvailableVersions) {
			continue
		}
		app.AvailableVersions = versions
		app.CurrentVersion = current
		if err := s.reg.Upsert(app); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// maybeAutoStart launches the app once per session when it is installed and
// already on the newest version.
func (s *Service) maybeAutoStart(ctx context.Context) {
	s.autoStartMu.Lock()
	if s.autoStartDone {
		s.autoStartMu.Unlock()
		return
	}
	s.autoStartDone = true
	s.autoStartMu.Unlock()

	apps := s.reg.List()
	if len(apps) != 1 {
		return
	}
	app := apps[0]
	latest := len(app.AvailableVersions) > 0 && app.CurrentVersion == app.AvailableVersions[0]
	if !app.Installed || !latest {
		s.log.Info("auto-start conditions not met",
			zap.String("app", app.Name),
			zap.Bool("installed", app.Installed),
			zap.Bool("latest", latest))
		return
	}

	s.log.Info("auto-starting app", zap.String("app", app.Name))
	go func() {
		if err := s.Start(ctx, app.Name, nil); err != nil {
			s.log.Error("auto-start failed",
				zap.String("app", app.Name), zap.Error(err))
		}
	}()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
