/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package driver

import (
	"context"
	"sync"

	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/rs/zerolog"
)

// ResultSink receives every frozen slot result, in slot order per cell. It is the
// boundary towards the physical layer. Deliver is called from worker goroutines;
// results are immutable and may be retained.
type ResultSink interface {
	Deliver(ctx context.Context, res *models.SlotResult) error
}

// Discard drops results.
type Discard struct{}

// Deliver implements ResultSink.
func (Discard) Deliver(context.Context, *models.SlotResult) error { return nil }

// LogSink logs a summary of every non-empty result at debug level.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a logging sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "phy_sink").Logger()}
}

// Deliver implements ResultSink.
func (s *LogSink) Deliver(_ context.Context, res *models.SlotResult) error {
	if len(res.Downlink) == 0 && len(res.Uplink) == 0 {
		return nil
	}
	s.logger.Debug().
		Uint16("cell", uint16(res.Cell)).
		Str("slot", res.SlotLabel).
		Int("dl", len(res.Downlink)).
		Int("ul", len(res.Uplink)).
		Msg("slot result")
	return nil
}

// Collector keeps every result in memory, for simulations and tests.
type Collector struct {
	mu      sync.Mutex
	results []*models.SlotResult
}

// Deliver implements ResultSink.
func (c *Collector) Deliver(_ context.Context, res *models.SlotResult) error {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	return nil
}

// Results returns the collected results in arrival order.
func (c *Collector) Results() []*models.SlotResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.SlotResult, len(c.results))
	copy(out, c.results)
	return out
}

// Multi fans a result out to several sinks and returns the first error.
type Multi []ResultSink

// Deliver implements ResultSink.
func (m Multi) Deliver(ctx context.Context, res *models.SlotResult) error {
	var first error
	for _, s := range m {
		if err := s.Deliver(ctx, res); err != nil && first == nil {
			first = err
		}
	}
	return first
}
