/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package driver supplies the slot clock. It ticks at the air-interface slot
// rate, runs the pipeline of every configured cell once per slot and hands the
// results to the physical layer.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
	"github.com/friendsincode/gnb_scheduler/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Source is the part of the scheduler the driver needs.
type Source interface {
	ConfiguredCells() []models.CellIndex
	CellConfig(models.CellIndex) (models.CellConfigRequest, bool)
	Result(slot.Point, models.CellIndex) *models.SlotResult
}

// Config controls the slot clock.
type Config struct {
	// Numerology of the clock. Cells with a lower numerology run on every
	// 2^(clock-cell) tick; cells with a higher one are not driven.
	Numerology uint8
	// SlotDuration is the tick period. Zero selects 1 ms >> Numerology.
	SlotDuration time.Duration
	// Workers splits cells by index modulo Workers.
	Workers int
}

// Driver runs the per-slot pipelines on a fixed set of worker goroutines. A cell
// is always served by the same worker, so its pipeline is never concurrent.
type Driver struct {
	src    Source
	sink   ResultSink
	cfg    Config
	logger zerolog.Logger

	ticks    atomic.Uint64
	overruns atomic.Uint64
	// next is the first tick not yet run. Run resumes from it so slot numbers
	// keep increasing across leadership terms.
	next    atomic.Uint64
	skipped map[models.CellIndex]bool
}

// New creates a driver. A nil sink discards results.
func New(cfg Config, src Source, sink ResultSink, logger zerolog.Logger) *Driver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = time.Millisecond >> cfg.Numerology
	}
	if sink == nil {
		sink = Discard{}
	}
	return &Driver{
		src:     src,
		sink:    sink,
		cfg:     cfg,
		logger:  logger.With().Str("component", "driver").Logger(),
		skipped: make(map[models.CellIndex]bool),
	}
}

// Ticks returns the number of ticks processed.
func (d *Driver) Ticks() uint64 { return d.ticks.Load() }

// Overruns returns the number of ticks that took longer than a slot.
func (d *Driver) Overruns() uint64 { return d.overruns.Load() }

// Run ticks until ctx is cancelled. The tick number follows the wall clock, so
// slots missed during an overrun are skipped rather than replayed. A later Run
// continues after the last tick of the previous one.
func (d *Driver) Run(ctx context.Context) error {
	period := d.cfg.SlotDuration
	base := d.next.Load()
	d.logger.Info().
		Uint64("resume_tick", base).
		Dur("slot_duration", period).
		Uint8("numerology", d.cfg.Numerology).
		Int("workers", d.cfg.Workers).
		Msg("slot driver started")

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	start := time.Now()

	next := base
	for {
		if err := d.Tick(ctx, next); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			d.logger.Info().Uint64("ticks", d.Ticks()).Msg("slot driver stopped")
			return ctx.Err()
		case now := <-ticker.C:
			due := base + uint64(now.Sub(start)/period)
			if due <= next {
				due = next + 1
			}
			if due > next+1 {
				d.overruns.Add(1)
				telemetry.SlotOverruns.Inc()
				d.logger.Warn().Uint64("tick", next).Uint64("skipped", due-next-1).Msg("slot overrun")
			}
			next = due
		}
	}
}

// Tick runs every cell due at tick n and waits for all workers.
func (d *Driver) Tick(ctx context.Context, n uint64) error {
	type job struct {
		idx models.CellIndex
		sl  slot.Point
	}
	buckets := make([][]job, d.cfg.Workers)
	due := 0
	for _, idx := range d.src.ConfiguredCells() {
		cfg, ok := d.src.CellConfig(idx)
		if !ok {
			continue
		}
		sl, ok := d.slotFor(n, cfg)
		if !ok {
			continue
		}
		w := int(idx) % d.cfg.Workers
		buckets[w] = append(buckets[w], job{idx: idx, sl: sl})
		due++
	}

	ctx, span := telemetry.StartTick(ctx, n, due)

	g, gctx := errgroup.WithContext(ctx)
	for w := range buckets {
		jobs := buckets[w]
		if len(jobs) == 0 {
			continue
		}
		g.Go(func() error {
			for _, j := range jobs {
				if err := d.runCell(gctx, j.idx, j.sl); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()
	d.ticks.Add(1)
	if n >= d.next.Load() {
		d.next.Store(n + 1)
	}
	telemetry.EndSpan(span, err)
	return err
}

// slotFor maps tick n onto the slot clock of a cell.
func (d *Driver) slotFor(n uint64, cfg models.CellConfigRequest) (slot.Point, bool) {
	if cfg.Numerology > d.cfg.Numerology {
		if !d.skipped[cfg.Index] {
			d.skipped[cfg.Index] = true
			d.logger.Warn().
				Uint16("cell", uint16(cfg.Index)).
				Uint8("numerology", cfg.Numerology).
				Msg("cell numerology above clock numerology, not driven")
		}
		return slot.Point{}, false
	}
	shift := d.cfg.Numerology - cfg.Numerology
	if n&(1<<shift-1) != 0 {
		return slot.Point{}, false
	}
	count := (n >> shift) % uint64(slot.Modulus(cfg.Numerology))
	return slot.NewPoint(cfg.Numerology, uint32(count)), true
}

// runCell runs one pipeline pass. A contract violation is turned into an error
// that stops the driver.
func (d *Driver) runCell(ctx context.Context, idx models.CellIndex, sl slot.Point) (err error) {
	ctx, span := telemetry.StartCellSlot(ctx, uint16(idx), sl.Numerology(), sl.String())
	defer func() { telemetry.EndSpan(span, err) }()
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("cell %d slot %s: %w", idx, sl, e)
			} else {
				err = fmt.Errorf("cell %d slot %s: %v", idx, sl, r)
			}
			d.logger.Error().Err(err).Msg("pipeline aborted")
		}
	}()

	res := d.src.Result(sl, idx)
	span.SetAttributes(
		telemetry.AttrGrantsDL.Int(len(res.Downlink)),
		telemetry.AttrGrantsUL.Int(len(res.Uplink)),
	)
	if err := d.sink.Deliver(ctx, res); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn().Err(err).Uint16("cell", uint16(idx)).Str("slot", sl.String()).Msg("result delivery failed")
	}
	return nil
}
