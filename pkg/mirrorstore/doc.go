// Package mirrorstore persists mirror snapshots between process runs.
//
// A snapshot saved at shutdown can seed the next session's mirror, so
// readers see the last known state while the switcher's dump is still in
// flight. Seeded entries are marked stale until the device confirms them.
//
// # Stores
//
// The Store interface stores opaque snapshot bytes by name:
//
//	store := mirrorstore.NewMemoryStore()
//	// or
//	store := mirrorstore.NewSQLStore(db, mirrorstore.WithSQLDialect(mirrorstore.DialectSQLite))
//	// or
//	store := mirrorstore.NewS3Store(s3.NewFromConfig(cfg), "bucket", "burp/")
//
// # Encoding
//
// SaveSnapshot and LoadSnapshot wrap a mirror.Snapshot in a versioned JSON
// envelope. Envelopes with an unknown format are rejected rather than
// guessed at.
//
// # Recording
//
// A Recorder saves a live session on an interval and once more when the
// session ends:
//
//	rec := mirrorstore.NewRecorder(store, sess, mirrorstore.RecorderConfig{Name: addr}, logger)
//	go rec.Run(ctx)
package mirrorstore
