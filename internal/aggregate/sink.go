package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"sync"

	"ammCore/internal/model"
	"ammCore/internal/storage"
)

// JSONLSink keeps upserted metrics in memory and rewrites Path with the full
// set after each call. Metrics are keyed by pool, window size and start. Rows
// already in Path are loaded on the first call.
type JSONLSink struct {
	Path string

	mu   sync.Mutex
	rows map[string]model.PoolWindowMetrics
}

func (s *JSONLSink) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows == nil {
		s.rows = make(map[string]model.PoolWindowMetrics)
		err := storage.ScanJSONL(s.Path, func(m model.PoolWindowMetrics) error {
			s.rows[metricsKey(m)] = m
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load metrics: %w", err)
		}
	}
	for _, m := range metrics {
		s.rows[metricsKey(m)] = m
	}
	return storage.WriteJSONL(s.Path, s.sorted())
}

// Metrics returns the upserted metrics ordered by pool and window start.
func (s *JSONLSink) Metrics() []model.PoolWindowMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

func (s *JSONLSink) sorted() []model.PoolWindowMetrics {
	out := make([]model.PoolWindowMetrics, 0, len(s.rows))
	for _, m := range s.rows {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PoolAddress != out[j].PoolAddress {
			return out[i].PoolAddress < out[j].PoolAddress
		}
		if out[i].WindowSizeSecs != out[j].WindowSizeSecs {
			return out[i].WindowSizeSecs < out[j].WindowSizeSecs
		}
		return out[i].WindowStart.Before(out[j].WindowStart)
	})
	return out
}

func metricsKey(m model.PoolWindowMetrics) string {
	return m.PoolAddress + "|" + m.WindowStart.UTC().Format("20060102T150405") + "|" + strconv.FormatInt(m.WindowSizeSecs, 10)
}
