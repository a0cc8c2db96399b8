// pkg/platform/utils.go
package platform

import (
	"os"
	"os/exec"
)

// commandExists checks if a command is available in PATH
func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// exists checks if a path exists, following symlinks
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
