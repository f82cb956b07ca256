package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ResolveScript locates a profile's main script: first as a file in the
// working copy, then as an installed entry point in the venv's scripts
// directory, probing platform extensions.
func ResolveScript(script, workingDir, scriptsDir string) (string, error) {
	if p := filepath.Join(workingDir, script); isFile(p) {
		return p, nil
	}
	if p := filepath.Join(scriptsDir, script); isFile(p) {
		return p, nil
	}

	var extensions []string
	if runtime.GOOS == "windows" {
		extensions = []string{".exe", ".bat", ".cmd", ".ps1"}
	} else {
		extensions = []string{".sh"}
	}
	for _, ext := range extensions {
		if p := filepath.Join(scriptsDir, script+ext); isFile(p) {
			return p, nil
		}
	}

	return "", fmt.Errorf("script %q not found in %s or as an executable in %s",
		script, workingDir, scriptsDir)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
