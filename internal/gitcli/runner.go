// Package gitcli drives git through the command line and extracts
// structured diffs from the repository history.
package gitcli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command in a directory and returns its combined output.
// Tests substitute a fake; production uses ExecRunner.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args in dir and returns combined stdout/stderr.
// A non-zero exit becomes an error carrying the output.
func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output != "" {
			return output, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, output)
		}
		return output, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return output, nil
}
