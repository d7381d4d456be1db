package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/square-catalog-cache/pkg/kv"
	"github.com/rs/zerolog"
)

// ErrInvalidEntry indicates a cached value is corrupted.
var ErrInvalidEntry = errors.New("invalid cache entry")

// Manager reads and writes the snapshot record in a kv.Store.
type Manager struct {
	store  kv.Store
	logger zerolog.Logger
}

// NewManager creates a new cache manager.
func NewManager(store kv.Store, logger zerolog.Logger) *Manager {
	if store == nil {
		panic("store cannot be nil")
	}
	return &Manager{
		store:  store,
		logger: logger,
	}
}

// Load reads the snapshot and last-write timestamp.
// Missing or corrupt values are reported as absent fields, never as errors.
// Only store failures are returned.
func (m *Manager) Load(ctx context.Context) (Record, error) {
	var rec Record

	raw, err := m.store.Get(ctx, SnapshotKey().String())
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return Record{}, fmt.Errorf("load snapshot: %w", err)
	case !validSnapshot(raw):
		m.logger.Warn().Int("bytes", len(raw)).Msg("Ignoring corrupt cached snapshot")
	default:
		rec.Snapshot = []byte(raw)
	}

	ts, err := m.store.Get(ctx, LastWriteKey().String())
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return Record{}, fmt.Errorf("load last write: %w", err)
	default:
		parsed, perr := ParseTimestamp(ts)
		if perr != nil {
			m.logger.Warn().Err(perr).Msg("Ignoring malformed last-write timestamp")
			break
		}
		rec.LastWrite = &parsed
	}

	return rec, nil
}

// SaveSnapshot overwrites the snapshot key.
func (m *Manager) SaveSnapshot(ctx context.Context, data []byte) error {
	if data == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if err := m.store.Put(ctx, SnapshotKey().String(), string(data)); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("save snapshot: %w", err)
	}
	SnapshotSize.Set(float64(len(data)))
	return nil
}

// Touch records now as the last-write timestamp.
func (m *Manager) Touch(ctx context.Context, now time.Time) error {
	if err := m.store.Put(ctx, LastWriteKey().String(), FormatTimestamp(now)); err != nil {
		CacheErrors.WithLabelValues("touch").Inc()
		return fmt.Errorf("save last write: %w", err)
	}
	return nil
}
