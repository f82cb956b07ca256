// Package manifest parses pyappify.yml, the declarative document describing an
// app and its execution profiles. A manifest ships embedded as a template and
// is refreshed from the synchronized working copy after every checkout.
package manifest

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// FileName is the manifest file looked up in the working copy.
const FileName = "pyappify.yml"

//go:embed pyappify.yml
var embedded []byte

// Profile is a named execution configuration.
type Profile struct {
	Name           string `yaml:"name" json:"name"`
	MainScript     string `yaml:"main_script" json:"main_script"`
	Admin          *bool  `yaml:"admin" json:"admin,omitempty"`
	Requirements   string `yaml:"requirements" json:"requirements"`
	PythonPath     string `yaml:"PYTHONPATH" json:"PYTHONPATH"`
	GitURL         string `yaml:"git_url" json:"git_url"`
	RequiresPython string `yaml:"requires_python" json:"requires_python"`
	PipArgs        string `yaml:"pip_args" json:"pip_args"`
}

// IsAdmin reports whether the profile demands elevated privileges.
func (p Profile) IsAdmin() bool {
	return p.Admin != nil && *p.Admin
}

// Manifest describes one app: its name and ordered profiles. The first
// profile is the default and the inheritance source for the rest.
type Manifest struct {
	Name     string    `yaml:"name" json:"name"`
	Profiles []Profile `yaml:"profiles" json:"profiles"`
}

// Parse decodes a manifest and applies profile inheritance. A manifest with
// no profiles is invalid.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Profiles) == 0 {
		return nil, fmt.Errorf("manifest %q declares no profiles", m.Name)
	}
	ApplyInheritance(&m)
	return &m, nil
}

// ParseFile decodes a manifest from disk.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return Parse(data)
}

// Embedded returns the built-in template manifest.
func Embedded() (*Manifest, error) {
	return Parse(embedded)
}

// ApplyInheritance copies the first profile's value into every later profile
// whose field was left empty. One-way, non-recursive, idempotent.
func ApplyInheritance(m *Manifest) {
	if len(m.Profiles) < 2 {
		return
	}
	first := m.Profiles[0]
	for i := range m.Profiles[1:] {
		p := &m.Profiles[i+1]
		if p.MainScript == "" {
			p.MainScript = first.MainScript
		}
		if p.Admin == nil {
			p.Admin = first.Admin
		}
		if p.Requirements == "" {
			p.Requirements = first.Requirements
		}
		if p.PythonPath == "" {
			p.PythonPath = first.PythonPath
		}
		if p.GitURL == "" {
			p.GitURL = first.GitURL
		}
		if p.RequiresPython == "" {
			p.RequiresPython = first.RequiresPython
		}
		if p.PipArgs == "" {
			p.PipArgs = first.PipArgs
		}
	}
}

// Profile returns the named profile, falling back to the first profile when
// the name does not resolve.
func (m *Manifest) Profile(name string) (Profile, bool) {
	for _, p := range m.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	if len(m.Profiles) > 0 {
		return m.Profiles[0], false
	}
	return Profile{}, false
}
