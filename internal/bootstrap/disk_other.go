//go:build !unix

package bootstrap

import "errors"

// DiskFree is unsupported on this platform.
func DiskFree(string) (uint64, error) {
	return 0, errors.New("disk usage reporting not supported on this platform")
}
