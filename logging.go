// FILE: logging.go
// Package main – process-wide structured logger.
//
// Every component logs through this one zerolog.Logger instead of calling
// log.Printf directly; no component formats its own timestamp.

package main

import (
	"os"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func initLogging(pretty bool, verbose bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	var out = os.Stdout
	if pretty {
		w := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
		logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
		return
	}
	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}
