// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package fsio provides fiber-facing file primitives: open, positional and
// sequential read/write, fsync and close, all suspending the calling fiber
// on the ring. Print and Eprint write to the process stdio the same way.
package fsio
