//go:build !windows

package fsops

import (
	"os"

	"github.com/google/renameio"
)

// WriteFile replaces path atomically.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
