package mirrorstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/burp/pkg/mirror"
)

// Source is what a Recorder snapshots. *session.Session satisfies it.
type Source interface {
	Export() *mirror.Snapshot
	Synced() bool
	Done() <-chan struct{}
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Name is the store key, usually the switcher address.
	Name string

	// Interval is how often the mirror is saved.
	// Default: 30 seconds.
	Interval time.Duration

	// TTL is how long a saved snapshot stays loadable.
	// Default: 24 hours.
	TTL time.Duration
}

// Recorder saves a session's mirror to a Store periodically and once more
// when the session ends. Snapshots are only taken after the initial sync,
// so a half-dumped mirror never overwrites a complete one.
type Recorder struct {
	store  Store
	src    Source
	config RecorderConfig
	logger *slog.Logger
	saves  int
}

// NewRecorder creates a recorder. Call Run to start it.
func NewRecorder(store Store, src Source, config RecorderConfig, logger *slog.Logger) *Recorder {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		src:    src,
		config: config,
		logger: logger.With("component", "recorder", "name", config.Name),
	}
}

// Run saves until ctx is cancelled or the source ends. It returns the
// number of snapshots written.
func (r *Recorder) Run(ctx context.Context) int {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.save(ctx)
		case <-r.src.Done():
			// Final save outlives ctx so a shutdown still persists.
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			r.save(final)
			cancel()
			return r.saves
		case <-ctx.Done():
			return r.saves
		}
	}
}

func (r *Recorder) save(ctx context.Context) {
	if !r.src.Synced() {
		return
	}
	snap := r.src.Export()
	if snap.Len() == 0 {
		return
	}
	if err := SaveSnapshot(ctx, r.store, r.config.Name, snap, r.config.TTL); err != nil {
		r.logger.Warn("failed to save snapshot", "error", err)
		return
	}
	r.saves++
	r.logger.Debug("snapshot saved", "entries", snap.Len(), "generation", snap.Generation)
}
