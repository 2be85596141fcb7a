// FILE: journal.go
// Package main – append-only CSV trade/event journal.
//
// Grounded on _examples/original_source/src/gridbot/state/manager.py's
// init_csv/log_trade; column list is taken verbatim from there (and from
// SPEC_FULL §6). Not on the critical path: a journal write failure is logged
// and swallowed, never propagated to the processor loop.

package main

import (
	"encoding/csv"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Journal struct {
	path string
}

func NewJournal(path string) *Journal { return &Journal{path: path} }

// Init creates the CSV file with a header row if it doesn't exist yet.
func (j *Journal) Init() error {
	if j.path == "" {
		return nil
	}
	if _, err := os.Stat(j.path); err == nil {
		return nil
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	return w.Write([]string{"time", "event", "price", "qty", "pnl", "total_pnl", "note"})
}

// Log appends one event row and mirrors it to the structured logger. Errors
// are logged, never returned to the caller's control flow — journaling is
// explicitly not on the critical path (SPEC_FULL §4.10).
func (j *Journal) Log(event string, price, qty, pnl, totalPnL decimal.Decimal, note string) {
	logger.Info().Str("event", event).Str("price", price.String()).Str("qty", qty.String()).
		Str("pnl", pnl.String()).Str("total_pnl", totalPnL.String()).Str("note", note).Msg("journal")

	if j.path == "" {
		return
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Error().Err(err).Msg("journal: open failed")
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	row := []string{
		time.Now().UTC().Format(time.RFC3339),
		event,
		price.String(),
		qty.String(),
		pnl.String(),
		totalPnL.String(),
		note,
	}
	if err := w.Write(row); err != nil {
		logger.Error().Err(err).Msg("journal: write failed")
	}
}
