// FILE: clientid.go
// Package main – deterministic client order id scheme (SPEC_FULL §3).
//
// Both id shapes are pure functions of their inputs so a re-send after an
// ambiguous network failure is always safe: the venue deduplicates on
// clientOrderID, never on a fresh random value.

package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// buyClientID returns "B-<session>-<price_cents>-<nonce>".
func buyClientID(session string, price decimal.Decimal, nonce int64) string {
	cents := price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return fmt.Sprintf("B-%s-%d-%d", session, cents, nonce)
}

// tpClientID returns "T-<session>-<entry_cents>-<qty_mills>", a pure function
// of (entry, qty) so recovery can re-derive the same id for an existing TP.
func tpClientID(session string, entry, qty decimal.Decimal) string {
	cents := entry.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	mills := qty.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
	return fmt.Sprintf("T-%s-%d-%d", session, cents, mills)
}

// isOurClientID reports whether a client order id belongs to this session
// (used by the Placement Controller to filter open_orders to this engine's
// own orders via prefix match against the session tag).
func isOurClientID(clientOrderID, session string) bool {
	prefixB := "B-" + session + "-"
	prefixT := "T-" + session + "-"
	return strings.HasPrefix(clientOrderID, prefixB) || strings.HasPrefix(clientOrderID, prefixT)
}
