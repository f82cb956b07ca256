// Package supervisor launches, watches and stops app processes. Child
// environments are composed explicitly and handed to the process; the
// manager's own environment is never mutated.
package supervisor

import (
	"os"
	"strconv"
	"strings"

	"github.com/pyappify/pyappify/internal/manifest"
	"github.com/pyappify/pyappify/internal/version"
)

// EnvVar is one variable set on the child process.
type EnvVar struct {
	Key   string
	Value string
}

// EnvSpec describes the child environment as a delta against the parent's:
// variables to set and variables that must not leak through.
type EnvSpec struct {
	Set    []EnvVar
	Remove []string
}

// ComposeEnv builds the environment contract for an app process. Inherited
// interpreter configuration is stripped so the app always runs against its
// own venv.
func ComposeEnv(profile manifest.Profile, appVersion string) EnvSpec {
	spec := EnvSpec{
		Remove: []string{"PYTHONHOME", "PYTHONSTARTUP", "VIRTUAL_ENV"},
	}

	if profile.PythonPath != "" {
		spec.Set = append(spec.Set, EnvVar{"PYTHONPATH", profile.PythonPath})
	} else {
		spec.Remove = append(spec.Remove, "PYTHONPATH")
	}

	if appVersion != "" {
		spec.Set = append(spec.Set, EnvVar{"PYAPPIFY_APP_VERSION", appVersion})
	}
	spec.Set = append(spec.Set,
		EnvVar{"PYAPPIFY_APP_PROFILE", profile.Name},
		EnvVar{"PYAPPIFY_PID", strconv.Itoa(os.Getpid())},
		EnvVar{"PYAPPIFY_UPGRADEABLE", "1"},
		EnvVar{"PYAPPIFY_VERSION", version.Version},
		EnvVar{"PYTHONIOENCODING", "utf-8"},
		EnvVar{"PYTHONUNBUFFERED", "1"},
	)
	if exe, err := os.Executable(); err == nil {
		spec.Set = append(spec.Set, EnvVar{"PYAPPIFY_EXECUTABLE", exe})
	}
	return spec
}

// Apply merges the spec over a base environment in KEY=VALUE form, dropping
// removed and overridden keys from the base.
func (e EnvSpec) Apply(base []string) []string {
	drop := make(map[string]struct{}, len(e.Remove)+len(e.Set))
	for _, key := range e.Remove {
		drop[key] = struct{}{}
	}
	for _, v := range e.Set {
		drop[v.Key] = struct{}{}
	}

	out := make([]string, 0, len(base)+len(e.Set))
	for _, entry := range base {
		key := entry
		if i := strings.IndexByte(entry, '='); i >= 0 {
			key = entry[:i]
		}
		if _, skip := drop[key]; skip {
			continue
		}
		out = append(out, entry)
	}
	for _, v := range e.Set {
		out = append(out, v.Key+"="+v.Value)
	}
	return out
}
