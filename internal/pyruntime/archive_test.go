package pyruntime

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	name string
	body string
	dir  bool
}

func writeTarGz(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	writeTarEntries(t, gz, entries)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func writeTarZst(t *testing.T, path string, entries []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw, err := zstd.NewWriter(f)
	require.NoError(t, err)
	writeTarEntries(t, zw, entries)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func writeTarEntries(t *testing.T, w interface{ Write([]byte) (int, error) }, entries []tarEntry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o755}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
}

func TestExtractArchiveStripsPrefix(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "runtime.tar.gz")
	writeTarGz(t, archive, []tarEntry{
		{name: "python/", dir: true},
		{name: "python/bin/", dir: true},
		{name: "python/bin/python3", body: "#!interpreter"},
		{name: "python/lib/thing.py", body: "pass"},
		{name: "stray/outside.txt", body: "skipped"},
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, extractArchive(archive, dest))

	data, err := os.ReadFile(filepath.Join(dest, "bin", "python3"))
	require.NoError(t, err)
	assert.Equal(t, "#!interpreter", string(data))

	_, err = os.Stat(filepath.Join(dest, "stray"))
	assert.True(t, os.IsNotExist(err), "entries outside python/ are skipped")
	_, err = os.Stat(filepath.Join(dest, "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractArchiveZstd(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "runtime.tar.zst")
	writeTarZst(t, archive, []tarEntry{
		{name: "python/python.exe", body: "exe"},
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, extractArchive(archive, dest))

	data, err := os.ReadFile(filepath.Join(dest, "python.exe"))
	require.NoError(t, err)
	assert.Equal(t, "exe", string(data))
}

func TestExtractArchiveRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archive, []tarEntry{
		{name: "python/../../escape.txt", body: "evil"},
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	err := extractArchive(archive, dest)
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractArchiveUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "runtime.rar")
	require.NoError(t, os.WriteFile(archive, []byte("x"), 0o644))
	assert.Error(t, extractArchive(archive, filepath.Join(dir, "out")))
}
