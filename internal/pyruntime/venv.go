package pyruntime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// EnsureEnv makes the app's venv match the runtime required by spec,
// reusing an existing venv only when its interpreter reports the resolved
// version. It returns the venv interpreter path.
func (s *Service) EnsureEnv(ctx context.Context, app, spec string) (string, error) {
	runtimePython, version, err := s.EnsureRuntime(ctx, app, spec)
	if err != nil {
		return "", err
	}

	venvDir := s.layout.VenvDir(app)
	venvPython := s.layout.VenvPython(app)

	recreate := true
	if _, err := os.Stat(venvPython); err == nil {
		got, err := interpreterVersion(ctx, venvPython)
		if err != nil {
			s.log.Warn("failed to probe existing venv, recreating",
				zap.String("venv", venvDir), zap.Error(err))
		} else if got == version {
			s.log.Info("reusing existing venv",
				zap.String("venv", venvDir), zap.String("version", got))
			recreate = false
		} else {
			s.log.Warn("venv version mismatch, recreating",
				zap.String("found", got), zap.String("required", version))
		}
	}

	if recreate {
		if err := os.RemoveAll(venvDir); err != nil {
			return "", fmt.Errorf("failed to remove existing venv %s: %w", venvDir, err)
		}
		s.sink.Info(app, fmt.Sprintf("Creating virtual environment with Python %s...", version))
		cmd := exec.CommandContext(ctx, runtimePython, "-m", "venv", venvDir)
		if err := s.runStreaming(cmd, app, "venv creation"); err != nil {
			return "", err
		}
	}

	if _, err := os.Stat(venvPython); err != nil {
		return "", fmt.Errorf("venv interpreter missing at %s after setup", venvPython)
	}
	return venvPython, nil
}

// SpecFileName resolves a requirements spec to the file whose content
// determines whether dependencies changed.
func SpecFileName(spec string) string {
	if strings.HasSuffix(spec, ".txt") {
		return spec
	}
	return "pyproject.toml"
}

// SpecContent reads the dependency file a spec refers to. A missing file
// reads as empty, so content comparison still works across versions that
// added or removed it.
func SpecContent(spec, workingDir string) string {
	if spec == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(workingDir, SpecFileName(spec)))
	if err != nil {
		return ""
	}
	return string(data)
}

// ShouldSync decides whether dependencies must be reinstalled after an
// update. Sync happens only when the new profile declares requirements and
// either the spec itself or the referenced file's content changed.
func ShouldSync(oldSpec, oldContent, newSpec, newContent string) bool {
	if newSpec == "" {
		return false
	}
	return oldSpec != newSpec || oldContent != newContent
}

// InstallDeps installs the profile's requirements into the app's venv.
// A .txt spec installs with -r; anything else installs the project itself
// from its pyproject.
func (s *Service) InstallDeps(ctx context.Context, app, spec, pipArgs string) error {
	workingDir := s.layout.WorkingDir(app)
	venvPython := s.layout.VenvPython(app)
	if _, err := os.Stat(venvPython); err != nil {
		return fmt.Errorf("venv interpreter not found at %s", venvPython)
	}

	args := []string{"-m", "pip", "install"}
	if strings.HasSuffix(spec, ".txt") {
		reqPath := filepath.Join(workingDir, spec)
		if _, err := os.Stat(reqPath); err != nil {
			return fmt.Errorf("requirements file not found at %s", reqPath)
		}
		args = append(args, "-r", reqPath)
	} else {
		args = append(args, ".")
	}

	if cacheDir := s.cfg.EffectivePipCacheDir(); cacheDir != "" {
		args = append(args, "--cache-dir", cacheDir)
	}
	if s.cfg.Pip.IndexURL != "" {
		args = append(args, "--index-url", s.cfg.Pip.IndexURL)
	}
	args = append(args, strings.Fields(pipArgs)...)

	cmd := exec.CommandContext(ctx, venvPython, args...)
	cmd.Dir = workingDir
	if err := s.runStreaming(cmd, app, "pip install"); err != nil {
		return err
	}
	s.sink.Info(app, fmt.Sprintf("Successfully installed requirements for %s.", app))
	return nil
}

// interpreterVersion runs `python --version` and parses the reported
// version. Older interpreters print it on stderr instead of stdout.
func interpreterVersion(ctx context.Context, python string) (string, error) {
	cmd := exec.CommandContext(ctx, python, "--version")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s --version failed: %w (stderr: %s)",
			python, err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if !strings.HasPrefix(out, "Python ") {
		if alt := strings.TrimSpace(stderr.String()); strings.HasPrefix(alt, "Python ") {
			out = alt
		}
	}
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "Python" {
		return "", fmt.Errorf("unexpected --version output %q from %s", out, python)
	}
	return fields[1], nil
}
