// Package paths provides the standardized on-disk layout used across the
// manager. All components resolve app directories through a Layout so the
// structure stays consistent between the registry, the synchronizer, the
// provisioner and the supervisor.
package paths

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Layout resolves filesystem locations under a single data root.
type Layout struct {
	DataDir string
}

// New creates a Layout rooted at dataDir.
func New(dataDir string) Layout {
	return Layout{DataDir: dataDir}
}

// AppsDir returns the directory containing all managed apps.
func (l Layout) AppsDir() string {
	return filepath.Join(l.DataDir, "apps")
}

// AppDir returns the base directory of one app.
func (l Layout) AppDir(name string) string {
	return filepath.Join(l.AppsDir(), name)
}

// RepoDir returns the app's git clone.
func (l Layout) RepoDir(name string) string {
	return filepath.Join(l.AppDir(name), "repo")
}

// WorkingDir returns the app's working copy, rebuilt from the repo on every
// setup and update.
func (l Layout) WorkingDir(name string) string {
	return filepath.Join(l.AppDir(name), "app")
}

// ManifestPath returns the app's manifest inside the working copy.
func (l Layout) ManifestPath(name string) string {
	return filepath.Join(l.WorkingDir(name), "pyappify.yml")
}

// RecordPath returns the app's persisted registry record.
func (l Layout) RecordPath(name string) string {
	return filepath.Join(l.AppDir(name), "app.json")
}

// VenvDir returns the app's isolated environment directory.
func (l Layout) VenvDir(name string) string {
	return filepath.Join(l.WorkingDir(name), ".venv")
}

// VenvPython returns the environment's interpreter path.
func (l Layout) VenvPython(name string) string {
	return VenvPythonIn(l.VenvDir(name))
}

// VenvScriptsDir returns the environment's executable directory, where
// installed console entry points land.
func (l Layout) VenvScriptsDir(name string) string {
	return ScriptsDirIn(l.VenvDir(name))
}

// RuntimesDir returns the directory holding shared Python installations.
func (l Layout) RuntimesDir() string {
	return filepath.Join(l.DataDir, "pythons")
}

// RuntimeDir returns the installation directory for one Python version.
func (l Layout) RuntimeDir(version string) string {
	return filepath.Join(l.RuntimesDir(), version)
}

// RuntimePython returns the interpreter path inside a runtime installation.
func (l Layout) RuntimePython(version string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(l.RuntimeDir(version), "python.exe")
	}
	return filepath.Join(l.RuntimeDir(version), "bin", "python3")
}

// VenvPythonIn returns the interpreter path for an arbitrary venv directory.
func VenvPythonIn(venvDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(venvDir, "bin", "python")
}

// ScriptsDirIn returns the executable directory for an arbitrary venv.
func ScriptsDirIn(venvDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvDir, "Scripts")
	}
	return filepath.Join(venvDir, "bin")
}

// ValidateAppName checks that a name is safe for path construction.
func ValidateAppName(name string) error {
	if name == "" {
		return fmt.Errorf("app name cannot be empty")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("app name cannot be an absolute path")
	}
	if filepath.Clean(name) != name || filepath.Base(name) != name {
		return fmt.Errorf("app name contains invalid path components")
	}
	return nil
}
