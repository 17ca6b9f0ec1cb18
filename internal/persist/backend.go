// Package persist makes the message store survive restarts. A Backend
// stores whole snapshots; a Saver decides when a snapshot is written.
package persist

import (
	"context"

	"github.com/Usernoise/chatd/internal/store"
)

// Backend reads and writes complete store snapshots. A Write must be
// all-or-nothing: after a crash a reader sees either the previous snapshot
// or the new one, never a mix.
type Backend interface {
	Write(ctx context.Context, snap store.Snapshot) error
	// Read returns the last written snapshot. A missing snapshot is an
	// empty result, not an error.
	Read(ctx context.Context) (store.Snapshot, error)
	Close() error
}
