package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root string, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func exists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}

func TestCopyDirExcluding(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	write(t, src, "main.py", "print()")
	write(t, src, "pkg/mod.py", "pass")
	write(t, src, ".git/HEAD", "ref")

	require.NoError(t, CopyDirExcluding(src, dst, []string{".git"}))

	assert.Equal(t, "print()", read(t, dst, "main.py"))
	assert.Equal(t, "pass", read(t, dst, "pkg/mod.py"))
	assert.False(t, exists(dst, ".git"), ".git must not be copied")
}

func TestCopyDirOverwritesStaleContent(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	write(t, src, "main.py", "new")
	write(t, dst, "main.py", "old")

	require.NoError(t, CopyDirExcluding(src, dst, nil))
	assert.Equal(t, "new", read(t, dst, "main.py"))
}

func TestDeleteExtraneousMirrorsSource(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	write(t, src, "keep.py", "x")
	write(t, dst, "keep.py", "x")
	write(t, dst, "removed.py", "x")
	write(t, dst, "gone/inner.py", "x")
	write(t, dst, ".venv/bin/python", "x")

	require.NoError(t, DeleteExtraneous(dst, src, []string{".venv"}))

	assert.True(t, exists(dst, "keep.py"))
	assert.False(t, exists(dst, "removed.py"))
	assert.False(t, exists(dst, "gone"))
	assert.True(t, exists(dst, ".venv/bin/python"), "kept entries survive the mirror")
}

func TestDeleteExtraneousKeepsSharedSubtrees(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	write(t, src, "pkg/mod.py", "x")
	write(t, dst, "pkg/mod.py", "x")
	write(t, dst, "pkg/extra.py", "x")

	require.NoError(t, DeleteExtraneous(dst, src, nil))

	assert.True(t, exists(dst, "pkg/mod.py"))
	assert.False(t, exists(dst, "pkg/extra.py"), "files missing from source are removed")
}
