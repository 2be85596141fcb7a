// FILE: quantizer.go
// Package main – price/quantity quantization against venue symbol filters.
//
// All arithmetic here is exact decimal (github.com/shopspring/decimal); the
// venue adapters send prices and quantities as decimal strings, and float64
// only appears when metrics.go sets its Prometheus gauges.

package main

import (
	"github.com/shopspring/decimal"
)

// Filters describes the venue's tick/step/min constraints for one symbol.
type Filters struct {
	TickSize      decimal.Decimal
	StepSize      decimal.Decimal
	MinQty        decimal.Decimal
	MinNotional   decimal.Decimal
	PricePrecision int
	QtyPrecision   int
}

// Quantizer rounds prices/quantities to venue-legal values.
type Quantizer struct {
	f Filters
}

func NewQuantizer(f Filters) *Quantizer { return &Quantizer{f: f} }

// ClampPrice rounds x down to the nearest multiple of TickSize.
func (q *Quantizer) ClampPrice(x decimal.Decimal) decimal.Decimal {
	return roundDownToStep(x, q.f.TickSize)
}

// ClampQty enforces MinQty then rounds down to the nearest multiple of StepSize.
func (q *Quantizer) ClampQty(qty decimal.Decimal) decimal.Decimal {
	if qty.LessThan(q.f.MinQty) {
		qty = q.f.MinQty
	}
	return roundDownToStep(qty, q.f.StepSize)
}

// EnsureMinNotional grows qty to the smallest quantized value whose notional
// meets MinNotional. remainingBudget is the daily-cap headroom in quote terms;
// if the adjusted notional would exceed it, ok is false and qty is unusable.
func (q *Quantizer) EnsureMinNotional(price, qty, remainingBudget decimal.Decimal) (adjusted decimal.Decimal, ok bool) {
	adjusted = q.ClampQty(qty)
	notional := price.Mul(adjusted)
	if notional.GreaterThanOrEqual(q.f.MinNotional) {
		return adjusted, notional.LessThanOrEqual(remainingBudget)
	}
	if q.f.StepSize.IsZero() || price.IsZero() {
		return adjusted, false
	}
	// grow qty in StepSize increments until min-notional is met
	for notional.LessThan(q.f.MinNotional) {
		adjusted = adjusted.Add(q.f.StepSize)
		notional = price.Mul(adjusted)
	}
	adjusted = roundDownToStep(adjusted, q.f.StepSize)
	if adjusted.LessThan(q.f.MinQty) {
		adjusted = q.ClampQty(adjusted)
		notional = price.Mul(adjusted)
	}
	return adjusted, notional.LessThanOrEqual(remainingBudget)
}

func roundDownToStep(x, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return x
	}
	quotient := x.Div(step).Truncate(0)
	return quotient.Mul(step)
}

// PricesEqual compares two quantized prices by their clamped string form, per
// the spec: two prices compare equal iff their clamped strings match.
func (q *Quantizer) PricesEqual(a, b decimal.Decimal) bool {
	return q.ClampPrice(a).StringFixed(int32(q.f.PricePrecision)) == q.ClampPrice(b).StringFixed(int32(q.f.PricePrecision))
}
