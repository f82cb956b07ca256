package supervisor

import (
	"bufio"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// runStreaming runs the command to completion, forwarding its output to the
// sink line by line.
func (s *Service) runStreaming(cmd *exec.Cmd, app string) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				s.sink.Info(app, line)
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				s.sink.Error(app, line)
			}
		}
	}()
	wg.Wait()

	return cmd.Wait()
}
