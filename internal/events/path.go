package events

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSocketPath is where the hook collector listens unless configured
// otherwise.
func DefaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "command-center", "events.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("command-center-%d", os.Getuid()), "events.sock")
}
