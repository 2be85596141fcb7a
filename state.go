// FILE: state.go
// Package main – durable engine state: atomic snapshot persistence.
//
// Persistence shape follows trader.go's saveStateFrom/loadState (write a
// temp file, then rename over the real path). The fsync-before-rename and
// corrupt/empty-file quarantine behavior is ported from
// _examples/original_source/src/gridbot/state/manager.py, whose save_state/
// load_state the teacher's own version left out.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// Position is one open grid lot: a confirmed buy fill awaiting its TP.
type Position struct {
	Entry      decimal.Decimal `json:"entry"`
	Qty        decimal.Decimal `json:"qty"`
	TPPrice    decimal.Decimal `json:"tp_price"`
	TPOrderID  string          `json:"tp_order_id"`
}

// BotState is the single persisted JSON document (SPEC_FULL §3/§6).
//
// OpenBuyPriceToID is the persisted shadow of EngineState.OpenBuyMap (price
// key -> venue order id), kept here so a restart recovers live buys without
// waiting for the first SyncFromVenue. Not persisted: TPBlockedSet (rebuilt
// from Positions on load), SuppressUntil, PendingSubmissions and
// SuspectedFilled (all start empty), and the venue filters (fetched again at
// startup).
type BotState struct {
	BasePrice decimal.Decimal `json:"base_price"`
	Positions []Position      `json:"positions"`

	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	TotalBuys   int             `json:"total_buys"`
	TotalSells  int             `json:"total_sells"`

	SpentToday decimal.Decimal `json:"spent_today"`
	SpentDate  string          `json:"spent_date"`

	OpenBuyPriceToID map[string]string `json:"open_buy_price_to_id"`

	HandledFills      []string           `json:"handled_fills"`
	RecentSubmissions map[string]int64   `json:"recent_submissions"` // price -> unix seconds

	HaltPlacement bool `json:"halt_placement"`
}

func freshState() BotState {
	return BotState{
		BasePrice:         decimal.Zero,
		Positions:         nil,
		RealizedPnL:       decimal.Zero,
		SpentToday:        decimal.Zero,
		SpentDate:         time.Now().Format("2006-01-02"),
		OpenBuyPriceToID:  map[string]string{},
		HandledFills:      nil,
		RecentSubmissions: map[string]int64{},
	}
}

// StateStore persists BotState to a single JSON file, atomically.
type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore { return &StateStore{path: path} }

// Save writes state atomically: marshal -> write temp -> fsync -> rename.
// After Save returns, a subsequent Load either sees this full state or the
// prior committed state — never a partial file.
func (s *StateStore) Save(st BotState) error {
	if s.path == "" {
		return nil
	}
	bs, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open temp state file: %w", err)
	}
	if _, err := f.Write(bs); err != nil {
		f.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp state file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Load reads the state file. fresh==true means no usable prior state was
// found (first run, or the file was corrupt/empty and has been quarantined
// aside); the returned state is then a freshState().
func (s *StateStore) Load() (st BotState, fresh bool, err error) {
	if s.path == "" {
		return freshState(), true, nil
	}
	info, statErr := os.Stat(s.path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return freshState(), true, nil
		}
		return BotState{}, false, statErr
	}
	if info.Size() < 2 {
		s.quarantine("empty")
		return freshState(), true, nil
	}

	bs, err := os.ReadFile(s.path)
	if err != nil {
		return BotState{}, false, err
	}
	var loaded BotState
	if err := json.Unmarshal(bs, &loaded); err != nil {
		s.quarantine("corrupt")
		return freshState(), true, nil
	}
	if loaded.OpenBuyPriceToID == nil {
		loaded.OpenBuyPriceToID = map[string]string{}
	}
	if loaded.RecentSubmissions == nil {
		loaded.RecentSubmissions = map[string]int64{}
	}

	today := time.Now().Format("2006-01-02")
	if loaded.SpentDate != today {
		loaded.SpentDate = today
		loaded.SpentToday = decimal.Zero
	}
	return loaded, false, nil
}

// quarantine moves a corrupt/empty state file aside with a timestamped
// suffix so the next Load starts fresh without losing the evidence.
func (s *StateStore) quarantine(reason string) {
	suffix := fmt.Sprintf(".%s.%d.bak", reason, time.Now().Unix())
	backup := s.path + suffix
	_ = os.Rename(s.path, backup)
	dir := filepath.Dir(s.path)
	logger.Warn().Str("state_file", s.path).Str("backup", filepath.Join(dir, filepath.Base(backup))).Str("reason", reason).Msg("quarantined unusable state file")
}
