//go:build !windows

package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElevatorCommandPreservesEnvironment(t *testing.T) {
	cmd := NewElevator().Command(context.Background(), "/apps/demo/app/.venv/bin/python", []string{"main.py", "--debug"})

	assert.Equal(t,
		[]string{"sudo", "-E", "/apps/demo/app/.venv/bin/python", "main.py", "--debug"},
		cmd.Args,
		"environment must survive the privilege boundary")
}
