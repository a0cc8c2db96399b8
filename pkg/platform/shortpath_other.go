//go:build !windows

package platform

import "errors"

func shortPathName(string) (string, error) {
	return "", errors.New("short path names are only available on windows")
}
