// File: api/stats.go
// Package api
// Author: momentics <momentics@gmail.com>
//
// Runtime statistics snapshot, collected per instance.

package api

// Stats is a point-in-time snapshot of one runtime instance.
type Stats struct {
	// Fibers
	FibersLive    int
	FibersSpawned uint64

	// Stacks
	StacksLive   int
	StacksPooled int
	StacksMapped uint64

	// Reactor
	SQESubmitted  uint64
	CQEReaped     uint64
	Cancellations uint64
	WaitersParked int
}
