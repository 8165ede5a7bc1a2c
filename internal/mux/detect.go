package mux

import (
	"fmt"
	"os/exec"
)

// FromName creates a Host by multiplexer name. The binary must be on PATH;
// whether its server is running is left to EnsureHost.
func FromName(name, session string) (Host, error) {
	if session == "" {
		return nil, fmt.Errorf("host session name is required")
	}
	switch name {
	case "", "tmux":
		if _, err := exec.LookPath("tmux"); err != nil {
			return nil, fmt.Errorf("tmux not found in PATH: %w", err)
		}
		return NewTmux(session), nil
	case "zellij":
		return nil, fmt.Errorf("zellij support is not yet implemented")
	default:
		return nil, fmt.Errorf("unknown multiplexer: %q (supported: tmux)", name)
	}
}
