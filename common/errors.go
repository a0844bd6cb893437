package common

import "github.com/cockroachdb/errors"

// Sentinel errors shared by every storage engine implementation in this
// module. Engine-specific errors (corruption reports, read-only mode,
// busy/non-blocking rejections) live in the engine's own package but are
// wrapped against these where the taxonomy overlaps, so callers can keep
// using errors.Is regardless of which engine they're talking to.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrDiskFull    = errors.New("disk full")

	ErrClosed   = errors.New("storage engine closed")
	ErrKeyEmpty = errors.New("key cannot be empty")
)
