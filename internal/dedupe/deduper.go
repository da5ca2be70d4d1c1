// Package dedupe guards against redelivery of already-confirmed event
// identities across a longer horizon than the tracker's in-flight table.
package dedupe

import "context"

// Deduper answers "was this key seen before?" and marks it seen atomically.
type Deduper interface {
	// Seen returns true when key was already recorded; a false return also
	// records the key so the next call returns true.
	Seen(ctx context.Context, key string) (bool, error)
}
