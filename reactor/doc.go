// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor turns blocking-looking fiber I/O into io_uring
// submission/completion traffic. It owns the submission accumulator, the
// cookie table mapping in-flight operations to parked fibers, and the
// cancellation-in-flight bookkeeping. The scheduler flushes the accumulator
// when it goes idle; the reactor flushes eagerly when the SQ would overflow.
package reactor
