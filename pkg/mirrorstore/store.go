package mirrorstore

import (
	"context"
	"errors"
	"time"
)

// ErrStoreClosed is returned when operations are attempted on a closed store.
var ErrStoreClosed = errors.New("mirrorstore: store is closed")

// Store persists encoded mirror snapshots by name, usually the switcher
// address. Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data under name until expiresAt, replacing any previous
	// snapshot.
	Save(ctx context.Context, name string, data []byte, expiresAt time.Time) error

	// Load returns the snapshot stored under name.
	// Returns (nil, nil) if there is none or it has expired.
	Load(ctx context.Context, name string) ([]byte, error)

	// Delete removes a snapshot. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases any resources held by the store.
	Close() error
}
