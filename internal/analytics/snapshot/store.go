// Package snapshot keeps a rolling history of aggregated analytics stats in
// a capped Redis list so dashboards can chart trends across restarts of the
// aggregation service.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/analytics"
)

// DefaultKey is the Redis list holding snapshots, newest first.
const DefaultKey = "studio:analytics:snapshots"

const (
	defaultRetention = 60
	finalSaveTimeout = 5 * time.Second
)

// ListStore is the subset of the Redis client the store needs.
type ListStore interface {
	PushCapped(ctx context.Context, key string, value []byte, limit int64) error
	Range(ctx context.Context, key string, n int64) ([][]byte, error)
}

// StatsSource produces the stats to save.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// Store appends snapshots to a capped list.
type Store struct {
	list      ListStore
	key       string
	retention int64
	logger    *slog.Logger
}

// NewStore keeps at most retention snapshots under DefaultKey.
func NewStore(list ListStore, retention int) *Store {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Store{
		list:      list,
		key:       DefaultKey,
		retention: int64(retention),
		logger:    slog.Default().With("component", "analytics-snapshots"),
	}
}

// Save pushes stats to the head of the list and trims the tail.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := s.list.PushCapped(ctx, s.key, data, s.retention); err != nil {
		return fmt.Errorf("pushing snapshot to %s: %w", s.key, err)
	}
	s.logger.Debug("snapshot saved", "events", stats.TotalEvents, "matches", stats.Matches)
	return nil
}

// List returns up to limit snapshots, newest first. Entries that no longer
// decode are logged and left out.
func (s *Store) List(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.list.Range(ctx, s.key, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	out := make([]analytics.AggregatedStats, 0, len(raw))
	for i, data := range raw {
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("dropping undecodable snapshot", "index", i, "error", err)
			continue
		}
		out = append(out, stats)
	}
	return out, nil
}

// Latest returns the newest snapshot, or nil when none were saved yet.
func (s *Store) Latest(ctx context.Context) (*analytics.AggregatedStats, error) {
	list, err := s.List(ctx, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// Start saves a snapshot of src every interval until ctx ends. Ticks that
// saw no new events since the previous save are skipped; one last snapshot
// is always written on the way out. The returned channel closes once the
// loop has exited.
func (s *Store) Start(ctx context.Context, src StatsSource, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		saved := int64(-1)
		for {
			select {
			case <-ticker.C:
				stats := src.Stats()
				if stats.TotalEvents == saved {
					continue
				}
				if err := s.Save(ctx, stats); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
					continue
				}
				saved = stats.TotalEvents
			case <-ctx.Done():
				finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
				if err := s.Save(finalCtx, src.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				cancel()
				return
			}
		}
	}()
	s.logger.Info("snapshot loop started", "interval", interval, "retention", s.retention)
	return done
}
