package mirrorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vango-dev/burp/pkg/mirror"
)

// CurrentFormat is the version of the stored snapshot envelope.
// Increment when making breaking changes to the format.
const CurrentFormat = 1

// envelope is the JSON form written to a store.
type envelope struct {
	Format   int              `json:"format"`
	Name     string           `json:"name"`
	Snapshot *mirror.Snapshot `json:"snapshot"`
}

// Encode serialises snap for storage under name.
func Encode(name string, snap *mirror.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("mirrorstore: nil snapshot")
	}
	return json.Marshal(envelope{Format: CurrentFormat, Name: name, Snapshot: snap})
}

// Decode parses data written by Encode.
func Decode(data []byte) (*mirror.Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("mirrorstore: decode: %w", err)
	}
	if env.Format != CurrentFormat {
		return nil, fmt.Errorf("mirrorstore: unsupported format %d", env.Format)
	}
	if env.Snapshot == nil {
		return nil, fmt.Errorf("mirrorstore: envelope has no snapshot")
	}
	return env.Snapshot, nil
}

// SaveSnapshot encodes snap and stores it under name for ttl.
func SaveSnapshot(ctx context.Context, st Store, name string, snap *mirror.Snapshot, ttl time.Duration) error {
	data, err := Encode(name, snap)
	if err != nil {
		return err
	}
	return st.Save(ctx, name, data, time.Now().Add(ttl))
}

// LoadSnapshot loads and decodes the snapshot stored under name.
// Returns (nil, nil) if there is none.
func LoadSnapshot(ctx context.Context, st Store, name string) (*mirror.Snapshot, error) {
	data, err := st.Load(ctx, name)
	if err != nil || data == nil {
		return nil, err
	}
	return Decode(data)
}
