package pyruntime

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// archivePrefix is the top-level directory standalone builds wrap their
// files in. Entries outside it are skipped.
const archivePrefix = "python/"

// extractArchive unpacks a .tar.gz or .tar.zst runtime archive into dest,
// stripping the top-level directory.
func extractArchive(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	var stream io.Reader
	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read gzip stream of %s: %w", archivePath, err)
		}
		defer gz.Close()
		stream = gz
	case strings.HasSuffix(archivePath, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read zstd stream of %s: %w", archivePath, err)
		}
		defer zr.Close()
		stream = zr
	default:
		return fmt.Errorf("unsupported archive format: %s", archivePath)
	}

	return extractTar(tar.NewReader(stream), dest)
}

func extractTar(tr *tar.Reader, dest string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		name := filepath.ToSlash(hdr.Name)
		if !strings.HasPrefix(name, archivePrefix) {
			continue
		}
		rel := strings.TrimPrefix(name, archivePrefix)
		if rel == "" {
			continue
		}

		outPath, err := securePath(dest, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", outPath, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("failed to create parent of %s: %w", outPath, err)
			}
			os.Remove(outPath)
			if err := os.Symlink(hdr.Linkname, outPath); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", outPath, err)
			}
		case tar.TypeReg:
			if err := writeEntry(outPath, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		}
	}
}

// securePath joins rel under dest, rejecting traversal outside of it.
func securePath(dest, rel string) (string, error) {
	out := filepath.Join(dest, filepath.FromSlash(rel))
	if !strings.HasPrefix(out, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", rel)
	}
	return out, nil
}

func writeEntry(outPath string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", outPath, err)
	}
	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return f.Close()
}
