// FILE: planner.go
// Package main – Grid Planner: candidate buy levels descending from base_price.
//
// Grounded on _examples/original_source/src/gridbot/core/grid_logic.py's
// build_grid_candidates.

package main

import (
	"github.com/shopspring/decimal"
)

const maxCandidateIterations = 20000

// GridPlanner computes the descending ladder of candidate buy prices.
type GridPlanner struct {
	cfg Config
}

func NewGridPlanner(cfg Config) *GridPlanner { return &GridPlanner{cfg: cfg} }

// BuildCandidates returns up to cfg.MaxLadders candidate prices descending
// from basePrice-gridStep, skipping any price in tpBlocked (a TP already
// references that entry — it is deferred, not rejected). The search is
// capped at maxCandidateIterations as a safety bound.
func (p *GridPlanner) BuildCandidates(basePrice decimal.Decimal, tpBlocked map[string]struct{}) []decimal.Decimal {
	candidates := make([]decimal.Decimal, 0, p.cfg.MaxLadders)
	price := basePrice.Sub(p.cfg.GridStep)
	for i := 0; i < maxCandidateIterations && len(candidates) < p.cfg.MaxLadders; i++ {
		if _, blocked := tpBlocked[priceKey(price)]; !blocked {
			candidates = append(candidates, price)
		}
		price = price.Sub(p.cfg.GridStep)
	}
	return candidates
}
