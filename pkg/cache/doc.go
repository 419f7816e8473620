// Package cache provides the dashboard summary cache: a process-local expirable LRU
// (L1) in front of an optional shared Redis tier (L2).
//
// Values are opaque byte slices; callers serialize. A missing key is reported as
// ErrCacheMiss so callers can tell a miss from an unavailable backend.
package cache
