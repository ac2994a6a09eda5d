// Package pwsh runs PowerShell scripts through the pwsh executable and
// decodes their JSON output.
package pwsh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultExecutable is the PowerShell 7 binary name looked up on PATH.
const DefaultExecutable = "pwsh"

// ErrNotFound is returned when the pwsh executable cannot be located.
var ErrNotFound = errors.New("pwsh executable not found")

// Runner executes a PowerShell script and returns its standard output.
type Runner interface {
	Run(ctx context.Context, script string) ([]byte, error)
}

// Shell runs scripts with a real pwsh process.
type Shell struct {
	Executable string
}

// NewShell returns a Shell for the given executable, falling back to
// DefaultExecutable when empty.
func NewShell(executable string) *Shell {
	if executable == "" {
		executable = DefaultExecutable
	}
	return &Shell{Executable: executable}
}

// Available reports whether the executable can be resolved.
func (s *Shell) Available() bool {
	_, err := exec.LookPath(s.Executable)
	return err == nil
}

// Run executes script with a non-interactive, profile-less pwsh session.
func (s *Shell) Run(ctx context.Context, script string) ([]byte, error) {
	path, err := exec.LookPath(s.Executable)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Executable)
	}

	cmd := exec.CommandContext(ctx, path, Args(script)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pwsh failed: %w (stderr: %s)", err, msg)
		}
		return nil, fmt.Errorf("pwsh failed: %w", err)
	}

	return output, nil
}

// Args returns the pwsh argument vector used to execute script.
func Args(script string) []string {
	return []string{
		"-NoLogo",
		"-NoProfile",
		"-NonInteractive",
		"-Command",
		"$ErrorActionPreference = 'Stop'; $ProgressPreference = 'SilentlyContinue'; " + script,
	}
}

// RunJSON runs script and decodes its JSON output into v. Empty output
// leaves v untouched.
func RunJSON(ctx context.Context, r Runner, script string, v any) error {
	output, err := r.Run(ctx, script)
	if err != nil {
		return err
	}

	output = bytes.TrimSpace(output)
	if len(output) == 0 {
		return nil
	}

	if err := json.Unmarshal(output, v); err != nil {
		return fmt.Errorf("failed to parse pwsh output: %w", err)
	}

	return nil
}
