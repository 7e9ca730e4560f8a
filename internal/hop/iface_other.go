//go:build !linux

package hop

import "errors"

// defaultRouteIface is unavailable on non-Linux platforms; callers fall
// back to the configured interface.
func defaultRouteIface() (string, error) {
	return "", errors.New("hop: default route detection requires linux")
}
