// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations
// live in separate files guarded by build tags. Runtime instances are
// pinned one per core so independent schedulers do not migrate.

package affinity

// SetAffinity pins the current OS thread to a given logical CPU. The caller
// must have locked the goroutine to its thread first.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}
