/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package diag

import "github.com/rs/zerolog"

// Logger forwards diagnostics to a zerolog logger.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a sink that logs every diagnostic.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("component", "diag").Logger()}
}

// Record implements Sink.
func (l *Logger) Record(entry Entry) {
	ev := l.logger.Warn()
	if entry.Kind == KindContractViolation {
		ev = l.logger.Error()
	}
	ev = ev.Str("kind", string(entry.Kind))
	if entry.Cell != NoCell {
		ev = ev.Int("cell", entry.Cell)
	}
	if entry.Slot != "" {
		ev = ev.Str("slot", entry.Slot)
	}
	if len(entry.Fields) > 0 {
		ev = ev.Fields(entry.Fields)
	}
	ev.Msg(entry.Message)
}

// Multi fans a diagnostic out to several sinks.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(entry Entry) {
	for _, s := range m {
		if s != nil {
			s.Record(entry)
		}
	}
}

// Nop discards diagnostics.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(Entry) {}
