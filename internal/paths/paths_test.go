package paths

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutShape(t *testing.T) {
	l := New("/data")

	assert.Equal(t, filepath.Join("/data", "apps", "demo", "repo"), l.RepoDir("demo"))
	assert.Equal(t, filepath.Join("/data", "apps", "demo", "app"), l.WorkingDir("demo"))
	assert.Equal(t, filepath.Join("/data", "apps", "demo", "app", "pyappify.yml"), l.ManifestPath("demo"))
	assert.Equal(t, filepath.Join("/data", "pythons", "3.12.10"), l.RuntimeDir("3.12.10"))

	assert.True(t, strings.HasPrefix(l.VenvDir("demo"), l.WorkingDir("demo")),
		"venv lives inside the working copy")
	assert.True(t, strings.HasPrefix(l.VenvPython("demo"), l.VenvDir("demo")))
}

func TestValidateAppName(t *testing.T) {
	assert.NoError(t, ValidateAppName("demo"))
	assert.NoError(t, ValidateAppName("my-app_2"))

	assert.Error(t, ValidateAppName(""))
	assert.Error(t, ValidateAppName("../escape"))
	assert.Error(t, ValidateAppName("a/b"))
	assert.Error(t, ValidateAppName(string(filepath.Separator)+"abs"))
}
