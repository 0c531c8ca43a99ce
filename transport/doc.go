// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport provides fiber-facing TCP primitives. Every method
// with a blocking signature suspends the calling fiber on the ring instead
// of the thread; all of them are cancellation check points.
package transport
