//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for unsupported platforms.

package affinity

import "errors"

// setAffinityPlatform is unavailable on this platform.
func setAffinityPlatform(cpuID int) error {
	return errors.New("affinity: not supported on this platform")
}
