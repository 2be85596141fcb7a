// FILE: planner_test.go
package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Symbol:                    "BTCUSDT",
		GridStep:                  decimal.NewFromInt(10),
		TakeProfitOffset:          decimal.NewFromInt(10),
		MaxLadders:                5,
		MaxOpenTrades:             10,
		QtyPerLadder:              decimal.NewFromFloat(0.01),
		MaxSpreadBps:              decimal.NewFromInt(50),
		MaxDailyNotional:          decimal.NewFromInt(100000),
		TakerFee:                  decimal.NewFromFloat(0.0005),
		StrategySide:              SideLongOnly,
		TrailUp:                   true,
		TrailTriggerSteps:         1,
		TrailMaxCancelPerReanchor: 100,
		SessionTag:                "test",
		DuplicateCooldown:         0,
		SuppressAfterCancel:       0,
		SuppressOnUnknown:         0,
		PendingLockMax:            time.Second,
	}
}

func TestBuildCandidatesDescendsFromBaseMinusStep(t *testing.T) {
	p := NewGridPlanner(testConfig())
	base := decimal.NewFromInt(1000)
	candidates := p.BuildCandidates(base, map[string]struct{}{})
	require.Len(t, candidates, 5)
	require.True(t, candidates[0].Equal(decimal.NewFromInt(990)))
	require.True(t, candidates[4].Equal(decimal.NewFromInt(950)))
}

func TestBuildCandidatesSkipsTPBlockedLevels(t *testing.T) {
	p := NewGridPlanner(testConfig())
	base := decimal.NewFromInt(1000)
	blocked := map[string]struct{}{
		priceKey(decimal.NewFromInt(990)): {},
	}
	candidates := p.BuildCandidates(base, blocked)
	require.Len(t, candidates, 5)
	for _, c := range candidates {
		require.False(t, c.Equal(decimal.NewFromInt(990)))
	}
}
