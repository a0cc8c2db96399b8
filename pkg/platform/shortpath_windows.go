//go:build windows

package platform

import (
	"golang.org/x/sys/windows"
)

func shortPathName(path string) (string, error) {
	long, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return "", err
	}
	n, err := windows.GetShortPathName(long, nil, 0)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, n)
	if _, err := windows.GetShortPathName(long, &buf[0], n); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf), nil
}
