/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the output format and level of the process logger.
type Options struct {
	// Environment "development" selects a console writer at debug level;
	// anything else logs JSON lines at info level.
	Environment string
	// Level overrides the environment default when set (zerolog level names).
	Level string
	// InstanceID, when set, is attached to every line as "instance".
	InstanceID string
	// Out defaults to stdout.
	Out io.Writer
	// Extra receives the raw JSON lines in addition to Out.
	Extra io.Writer
}

// New builds a logger and installs it as the zerolog global.
func New(opts Options) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	dev := strings.EqualFold(opts.Environment, "development")

	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	var writer io.Writer = out
	if dev {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000000"}
	}
	if opts.Extra != nil {
		writer = zerolog.MultiLevelWriter(writer, opts.Extra)
	}

	ctx := zerolog.New(writer).With().Timestamp().Str("service", "gnbsched")
	if opts.InstanceID != "" {
		ctx = ctx.Str("instance", opts.InstanceID)
	}
	logger := ctx.Logger().Level(level)
	log.Logger = logger
	return logger, nil
}
