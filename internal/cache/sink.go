/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/gnb_scheduler/internal/models"
)

// ResultSink mirrors slot results into the cache, writing each cell at most
// once per interval. It satisfies driver.ResultSink.
type ResultSink struct {
	cache    *Cache
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	written map[models.CellIndex]time.Time
}

// NewResultSink creates a throttled mirror. A zero interval writes every result.
func NewResultSink(c *Cache, interval time.Duration) *ResultSink {
	return &ResultSink{
		cache:    c,
		interval: interval,
		now:      time.Now,
		written:  make(map[models.CellIndex]time.Time),
	}
}

// Deliver implements driver.ResultSink.
func (s *ResultSink) Deliver(ctx context.Context, res *models.SlotResult) error {
	if !s.cache.IsAvailable() || !s.due(res.Cell) {
		return nil
	}
	return s.cache.SetLatestResult(ctx, res)
}

// due reports whether cell should be written now and records the write.
func (s *ResultSink) due(cell models.CellIndex) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.written[cell]; ok && now.Sub(last) < s.interval {
		return false
	}
	s.written[cell] = now
	return true
}
