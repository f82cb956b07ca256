package pyruntime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyappify/pyappify/internal/config"
	"github.com/pyappify/pyappify/internal/events"
	"github.com/pyappify/pyappify/internal/logging"
	"github.com/pyappify/pyappify/internal/paths"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		spec string
		want string
		ok   bool
	}{
		{"3.12", "3.12.10", true},
		{"3.12.4", "3.12.10", true},
		{"3.13", "3.13.2", true},
		{"3.7", "3.7.9", true},
		{"3.6", "", false},
		{"3", "", false},
		{"3.12.4.1", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.spec)
		if tt.ok {
			require.NoError(t, err, tt.spec)
			assert.Equal(t, tt.want, got, tt.spec)
		} else {
			assert.Error(t, err, tt.spec)
		}
	}
}

func TestEnsureRuntimeFallsBackToConfiguredDefault(t *testing.T) {
	layout := paths.New(t.TempDir())
	cfg := config.Default()
	cfg.Paths.DataDir = layout.DataDir

	interpreter := layout.RuntimePython("3.12.10")
	require.NoError(t, os.MkdirAll(filepath.Dir(interpreter), 0o755))
	require.NoError(t, os.WriteFile(interpreter, []byte("#!/bin/sh\n"), 0o755))

	svc := New(logging.NewNop(), events.NopSink{}, layout, cfg)
	python, version, err := svc.EnsureRuntime(context.Background(), "demo", "")
	require.NoError(t, err)
	assert.Equal(t, "3.12.10", version, "empty requirement resolves through the default series")
	assert.Equal(t, interpreter, python)
}

func TestDownloadURLsOrder(t *testing.T) {
	urls, err := downloadURLs("3.12.10", false)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Contains(t, urls[0], "github.com/astral-sh")
	assert.Contains(t, urls[1], "modelscope.cn")

	urls, err = downloadURLs("3.12.10", true)
	require.NoError(t, err)
	assert.Contains(t, urls[0], "modelscope.cn")
}

func TestCompareNumeric(t *testing.T) {
	assert.Equal(t, 1, compareNumeric("3.12.10", "3.12.9"))
	assert.Equal(t, -1, compareNumeric("3.9.1", "3.10.0"))
	assert.Equal(t, 0, compareNumeric("3.12", "3.12.0"))
}

func TestFindInstalledPrefersExact(t *testing.T) {
	dir := t.TempDir()
	for _, v := range []string{"3.12.4", "3.12.10", "3.11.12", "junk"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, v), 0o755))
	}

	all := func(string) bool { return true }

	got, err := findInstalled(dir, "3.12", "3.12.10", all)
	require.NoError(t, err)
	assert.Equal(t, "3.12.10", got)

	got, err = findInstalled(dir, "3.12", "3.12.99", all)
	require.NoError(t, err)
	assert.Empty(t, got, "exact requirement with no match finds nothing")

	got, err = findInstalled(dir, "3.12", "", all)
	require.NoError(t, err)
	assert.Equal(t, "3.12.10", got, "without exact the newest patch wins")

	got, err = findInstalled(dir, "3.12", "3.12.10", func(string) bool { return false })
	require.NoError(t, err)
	assert.Empty(t, got, "installations without an interpreter are ignored")

	got, err = findInstalled(filepath.Join(dir, "missing"), "3.12", "", all)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSpecFileName(t *testing.T) {
	assert.Equal(t, "requirements.txt", SpecFileName("requirements.txt"))
	assert.Equal(t, "dev-requirements.txt", SpecFileName("dev-requirements.txt"))
	assert.Equal(t, "pyproject.toml", SpecFileName("pyproject"))
	assert.Equal(t, "pyproject.toml", SpecFileName("."))
}

func TestShouldSync(t *testing.T) {
	tests := []struct {
		name                 string
		oldSpec, oldContent  string
		newSpec, newContent  string
		want                 bool
	}{
		{"unchanged", "requirements.txt", "a==1", "requirements.txt", "a==1", false},
		{"content changed", "requirements.txt", "a==1", "requirements.txt", "a==2", true},
		{"spec changed", "requirements.txt", "a==1", "dev.txt", "a==1", true},
		{"requirements removed", "requirements.txt", "a==1", "", "", false},
		{"requirements added", "", "", "requirements.txt", "a==1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldSync(tt.oldSpec, tt.oldContent, tt.newSpec, tt.newContent)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpecContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("a==1\n"), 0o644))

	assert.Equal(t, "a==1\n", SpecContent("requirements.txt", dir))
	assert.Empty(t, SpecContent("", dir))
	assert.Empty(t, SpecContent("missing.txt", dir))
	assert.Empty(t, SpecContent("pyproject", dir), "missing pyproject.toml reads as empty")
}

func TestFileNameFromURL(t *testing.T) {
	name, err := fileNameFromURL("https://example.com/a/b/cpython-3.12.10.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "cpython-3.12.10.tar.gz", name)

	_, err = fileNameFromURL("https://example.com/")
	assert.Error(t, err)
}
