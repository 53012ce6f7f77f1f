package path

import (
	"fmt"
	"os"
	"path/filepath"
)

// ExpandPath resolves a leading ~ to the current user's home directory.
// Configured target roots use ~ so one config file works across machines.
func ExpandPath(p string) (string, error) {
	if len(p) == 0 {
		return "", fmt.Errorf("empty path")
	}

	if p == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}

	if len(p) >= 2 && p[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, p[2:]), nil
	}

	return p, nil
}
