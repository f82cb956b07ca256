package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guiDoc = `
name: demo
profiles:
  - name: cli
    main_script: main.py
    requirements: requirements.txt
    git_url: https://example.com/demo.git
    requires_python: "3.12"
  - name: gui
    main_script: gui.py
    admin: true
`

func TestParseAppliesInheritance(t *testing.T) {
	m, err := Parse([]byte(guiDoc))
	require.NoError(t, err)
	require.Len(t, m.Profiles, 2)

	gui := m.Profiles[1]
	assert.Equal(t, "gui.py", gui.MainScript, "explicit field must survive")
	assert.True(t, gui.IsAdmin())
	assert.Equal(t, "requirements.txt", gui.Requirements)
	assert.Equal(t, "https://example.com/demo.git", gui.GitURL)
	assert.Equal(t, "3.12", gui.RequiresPython)
}

func TestInheritanceIsIdempotent(t *testing.T) {
	m, err := Parse([]byte(guiDoc))
	require.NoError(t, err)

	before := make([]Profile, len(m.Profiles))
	copy(before, m.Profiles)
	ApplyInheritance(m)
	assert.Equal(t, before, m.Profiles)
}

func TestInheritanceIsOneWay(t *testing.T) {
	doc := `
name: demo
profiles:
  - name: first
    main_script: main.py
  - name: second
    requirements: extra.txt
`
	m, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Empty(t, m.Profiles[0].Requirements, "first profile never inherits from later ones")
	assert.Equal(t, "main.py", m.Profiles[1].MainScript)
}

func TestAdminInheritsPointer(t *testing.T) {
	doc := `
name: demo
profiles:
  - name: first
    main_script: main.py
    admin: true
  - name: second
  - name: third
    admin: false
`
	m, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.True(t, m.Profiles[1].IsAdmin(), "unset admin inherits")
	assert.False(t, m.Profiles[2].IsAdmin(), "explicit false is kept")
}

func TestParseRejectsEmptyProfiles(t *testing.T) {
	_, err := Parse([]byte("name: empty\nprofiles: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("not: [valid"))
	assert.Error(t, err)
}

func TestEmbeddedTemplateParses(t *testing.T) {
	m, err := Embedded()
	require.NoError(t, err)
	assert.NotEmpty(t, m.Name)
	require.NotEmpty(t, m.Profiles)
	assert.NotEmpty(t, m.Profiles[0].MainScript)
}

func TestProfileLookupFallsBack(t *testing.T) {
	m, err := Parse([]byte(guiDoc))
	require.NoError(t, err)

	p, ok := m.Profile("gui")
	assert.True(t, ok)
	assert.Equal(t, "gui", p.Name)

	p, ok = m.Profile("missing")
	assert.False(t, ok)
	assert.Equal(t, "cli", p.Name, "unknown profile falls back to the default")
}
