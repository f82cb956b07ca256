// Package pyruntime provisions managed Python installations and per-app
// virtual environments: resolving version specs against the known standalone
// builds, downloading and unpacking them, creating venvs and syncing
// dependencies.
package pyruntime

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// patch describes one known standalone CPython build.
type patch struct {
	series  string
	version string
	primary string
	mirror  string
}

// knownPatches pins the newest vetted patch release for every supported
// series. Builds come from python-build-standalone with a modelscope mirror.
var knownPatches = []patch{
	{"3.13", "3.13.2",
		"https://github.com/astral-sh/python-build-standalone/releases/download/20250317/cpython-3.13.2+20250317-x86_64-pc-windows-msvc-install_only_stripped.tar.gz",
		"https://www.modelscope.cn/models/okoldking/ok/resolve/master/pythons/cpython-3.13.2+20250317-x86_64-pc-windows-msvc-install_only_stripped.tar.gz"},
	{"3.12", "3.12.10",
		"https://github.com/astral-sh/python-build-standalone/releases/download/20250517/cpython-3.12.10+20250517-x86_64-pc-windows-msvc-install_only_stripped.tar.gz",
		"https://www.modelscope.cn/models/okoldking/ok/resolve/master/pythons/cpython-3.12.10+20250517-x86_64-pc-windows-msvc-install_only_stripped.tar.gz"},
	{"3.11", "3.11.12",
		"https://github.com/astral-sh/python-build-standalone/releases/download/20250517/cpython-3.11.12+20250517-x86_64-pc-windows-msvc-install_only_stripped.tar.gz",
		"https://www.modelscope.cn/models/okoldking/ok/resolve/master/pythons/cpython-3.11.12+20250517-x86_64-pc-windows-msvc-install_only_stripped.tar.gz"},
	{"3.10", "3.10.16",
		"https://github.com/astral-sh/python-build-standalone/releases/download/20250317/cpython-3.10.16+20250317-x86_64-pc-windows-msvc-install_only_stripped.tar.gz",
		"https://www.modelscope.cn/models/okoldking/ok/resolve/master/pythons/cpython-3.10.16+20250317-x86_64-pc-windows-msvc-install_only_stripped.tar.gz"},
	{"3.9", "3.9.21",
		"https://github.com/astral-sh/python-build-standalone/releases/download/20250317/cpython-3.9.21+20250317-x86_64-pc-windows-msvc-install_only_stripped.tar.gz",
		"https://www.modelscope.cn/models/okoldking/ok/resolve/master/pythons/cpython-3.9.21+20250317-x86_64-pc-windows-msvc-install_only_stripped.tar.gz"},
	{"3.8", "3.8.20",
		"https://github.com/astral-sh/python-build-standalone/releases/download/20241002/cpython-3.8.20+20241002-x86_64-pc-windows-msvc-install_only_stripped.tar.gz",
		"https://www.modelscope.cn/models/okoldking/ok/resolve/master/pythons/cpython-3.8.20+20241002-x86_64-pc-windows-msvc-install_only_stripped.tar.gz"},
	{"3.7", "3.7.9",
		"https://github.com/astral-sh/python-build-standalone/releases/download/20200822/cpython-3.7.9-x86_64-pc-windows-msvc-shared-pgo-20200823T0118.tar.zst",
		"https://www.modelscope.cn/models/okoldking/ok/resolve/master/pythons/cpython-3.7.9-x86_64-pc-windows-msvc-shared-pgo-20200823T0118.tar.zst"},
}

var patchDirPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// SupportedSeries lists the major.minor series a profile may require.
func SupportedSeries() []string {
	out := make([]string, len(knownPatches))
	for i, p := range knownPatches {
		out[i] = p.series
	}
	return out
}

// Resolve maps a version spec (X.Y or X.Y.Z) to the pinned patch release for
// its series. Specs outside the supported set are an error.
func Resolve(spec string) (string, error) {
	series, err := seriesOf(spec)
	if err != nil {
		return "", err
	}
	for _, p := range knownPatches {
		if p.series == series {
			return p.version, nil
		}
	}
	return "", fmt.Errorf("unsupported Python series %s (supported: %s)",
		series, strings.Join(SupportedSeries(), ", "))
}

// seriesOf reduces a spec to its major.minor series.
func seriesOf(spec string) (string, error) {
	parts := strings.Split(spec, ".")
	switch len(parts) {
	case 2, 3:
		return parts[0] + "." + parts[1], nil
	default:
		return "", fmt.Errorf("invalid version format %q, expected X.Y or X.Y.Z", spec)
	}
}

// downloadURLs returns the archive URLs for a resolved patch version, ordered
// by preference.
func downloadURLs(version string, preferMirror bool) ([]string, error) {
	for _, p := range knownPatches {
		if p.version == version || p.series == version {
			if preferMirror {
				return []string{p.mirror, p.primary}, nil
			}
			return []string{p.primary, p.mirror}, nil
		}
	}
	return nil, fmt.Errorf("no download URL known for Python %s", version)
}

// compareNumeric orders dotted numeric versions, treating missing components
// as zero.
func compareNumeric(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// findInstalled scans the runtimes directory for an installation satisfying
// the series, preferring the exact pinned version. It returns the directory
// name of the best match, or "".
func findInstalled(runtimesDir, series, exact string, interpreterPresent func(version string) bool) (string, error) {
	entries, err := os.ReadDir(runtimesDir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read runtimes dir %s: %w", runtimesDir, err)
	}

	best := ""
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, series) || !patchDirPattern.MatchString(name) {
			continue
		}
		if !interpreterPresent(name) {
			continue
		}
		if exact != "" {
			if name == exact {
				return name, nil
			}
			continue
		}
		if best == "" || compareNumeric(name, best) > 0 {
			best = name
		}
	}
	if exact != "" {
		return "", nil
	}
	return best, nil
}
