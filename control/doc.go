// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package control provides observability for fiber runtime instances: a
// registry collecting per-instance statistics snapshots across threads and
// the zerolog-based lifecycle trace logger.
package control
