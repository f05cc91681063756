package terminal

import (
	"os"
	"os/exec"
)

var fallbackShells = []string{"/bin/bash", "/bin/sh"}

// DefaultShell returns the user's login shell from $SHELL, falling back to
// bash and then sh.
func DefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	for _, candidate := range fallbackShells {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate
		}
	}
	return fallbackShells[0]
}
