// Package registry tracks the set of managed apps and persists each one as an
// app.json record beside its on-disk state.
package registry

import (
	"time"

	"github.com/pyappify/pyappify/internal/manifest"
)

// App is the persisted record for one managed app.
type App struct {
	Name              string             `json:"name"`
	CurrentVersion    string             `json:"current_version"`
	AvailableVersions []string           `json:"available_versions"`
	Running           bool               `json:"running"`
	LastStart         time.Time          `json:"last_start"`
	CurrentProfile    string             `json:"current_profile"`
	Installed         bool               `json:"installed"`
	Profiles          []manifest.Profile `json:"profiles"`
}

// Profile returns the app's active profile. When CurrentProfile does not
// resolve, the first profile is used.
func (a *App) Profile() (manifest.Profile, bool) {
	if len(a.Profiles) == 0 {
		return manifest.Profile{}, false
	}
	for _, p := range a.Profiles {
		if p.Name == a.CurrentProfile {
			return p, true
		}
	}
	return a.Profiles[0], true
}

// ApplyManifest replaces the record's profile set with the manifest's and
// keeps the current profile selection when it still exists.
func (a *App) ApplyManifest(m *manifest.Manifest) {
	a.Profiles = m.Profiles
	if a.CurrentProfile == "" && len(m.Profiles) > 0 {
		a.CurrentProfile = m.Profiles[0].Name
		return
	}
	for _, p := range m.Profiles {
		if p.Name == a.CurrentProfile {
			return
		}
	}
	if len(m.Profiles) > 0 {
		a.CurrentProfile = m.Profiles[0].Name
	}
}

// Clone returns a deep copy safe to hand to callers.
func (a *App) Clone() *App {
	cp := *a
	cp.AvailableVersions = append([]string(nil), a.AvailableVersions...)
	cp.Profiles = append([]manifest.Profile(nil), a.Profiles...)
	for i := range cp.Profiles {
		if cp.Profiles[i].Admin != nil {
			v := *cp.Profiles[i].Admin
			cp.Profiles[i].Admin = &v
		}
	}
	return &cp
}
