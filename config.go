// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// Config holds every knob the grid engine uses (SPEC_FULL §3 "Engine
// configuration" / §6 environment variables). Loading goes through viper so
// env keys get typed defaults instead of a hand-rolled getEnv* chain. Invalid
// enum values (STRATEGY_SIDE, MARGIN_MODE) fall back to the documented
// default with a warning; a decimal setting that does not parse is read as
// zero with a warning, and malformed integer, float or boolean values are
// read as viper's zero value without a warning. The .env file (if present)
// is read by loadDotEnv() in env.go.
package main

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type StrategySide string

const (
	SideLongOnly  StrategySide = "LONG_ONLY"
	SideShortOnly StrategySide = "SHORT_ONLY"
)

// Config is immutable once loaded; all engine components read from the same
// instance for the life of the process.
type Config struct {
	Symbol string

	GridStep          decimal.Decimal
	TakeProfitOffset  decimal.Decimal
	MaxLadders        int
	MaxOpenTrades     int
	QtyPerLadder      decimal.Decimal
	MaxSpreadBps      decimal.Decimal
	MaxDailyNotional  decimal.Decimal
	TakerFee          decimal.Decimal
	AutoFee           bool
	MarginMode        string
	StrategySide      StrategySide

	TrailUp                   bool
	TrailTriggerSteps         int
	TrailMaxCancelPerReanchor int

	PriceRefresh time.Duration

	DuplicateCooldown       time.Duration
	SuppressAfterCancel     time.Duration
	SuppressOnUnknown       time.Duration
	PendingLockMax          time.Duration
	InstantTPRefill         bool

	SessionTag string

	DryRun       bool
	UseTestnet   bool
	ConfirmLive  bool

	StateFile string
	CSVFile   string

	TelegramBotToken string
	TelegramChatID   string

	DebugVerbose bool
	LogPretty    bool

	Port int
}

// loadConfigFromEnv binds every recognized key with its documented default
// and returns the populated Config. Invalid enum values (StrategySide,
// MarginMode) fall back to their default and log a warning.
func loadConfigFromEnv() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("symbol", "BTCUSDT")
	v.SetDefault("grid_step_usd", "1.0")
	v.SetDefault("take_profit_usd", "1.0")
	v.SetDefault("max_ladders", 15)
	v.SetDefault("max_open_trades", 20)
	v.SetDefault("qty_per_ladder", "1.0")
	v.SetDefault("max_spread_bps", "8.0")
	v.SetDefault("max_daily_usdt", "10000.0")
	v.SetDefault("taker_fee", "0.0005")
	v.SetDefault("auto_fee", false)
	v.SetDefault("margin_mode", "CROSSED")
	v.SetDefault("strategy_side", string(SideLongOnly))

	v.SetDefault("trail_up", true)
	v.SetDefault("trail_trigger_steps", 1)
	v.SetDefault("trail_max_cancel_per_reanchor", 100)

	v.SetDefault("price_refresh_sec", 0.5)

	v.SetDefault("duplicate_cooldown_sec", 90.0)
	v.SetDefault("suppress_sec_after_cancel", 8.0)
	v.SetDefault("suppress_sec_on_unknown", 3.0)
	v.SetDefault("pending_lock_max_sec", 3.0)
	v.SetDefault("instant_tp_refill", false)

	v.SetDefault("session_tag", "")

	v.SetDefault("dry_run", true)
	v.SetDefault("use_testnet", false)
	v.SetDefault("confirm_live", false)

	v.SetDefault("state_file", "bot_state.json")
	v.SetDefault("csv_file", "trades.csv")

	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("telegram_chat_id", "")

	v.SetDefault("debug_verbose", true)
	v.SetDefault("log_pretty", false)

	v.SetDefault("port", 8080)

	side := StrategySide(strings.ToUpper(strings.TrimSpace(v.GetString("strategy_side"))))
	if side != SideLongOnly && side != SideShortOnly {
		warnInvalidEnum("STRATEGY_SIDE", v.GetString("strategy_side"), string(SideLongOnly))
		side = SideLongOnly
	}

	marginMode := strings.ToUpper(strings.TrimSpace(v.GetString("margin_mode")))
	if marginMode != "CROSSED" && marginMode != "ISOLATED" {
		warnInvalidEnum("MARGIN_MODE", v.GetString("margin_mode"), "CROSSED")
		marginMode = "CROSSED"
	}

	cfg := Config{
		Symbol: strings.ToUpper(v.GetString("symbol")),

		GridStep:         decimalFromViper(v, "grid_step_usd"),
		TakeProfitOffset: decimalFromViper(v, "take_profit_usd"),
		MaxLadders:       v.GetInt("max_ladders"),
		MaxOpenTrades:    v.GetInt("max_open_trades"),
		QtyPerLadder:     decimalFromViper(v, "qty_per_ladder"),
		MaxSpreadBps:     decimalFromViper(v, "max_spread_bps"),
		MaxDailyNotional: decimalFromViper(v, "max_daily_usdt"),
		TakerFee:         decimalFromViper(v, "taker_fee"),
		AutoFee:          v.GetBool("auto_fee"),
		MarginMode:       marginMode,
		StrategySide:     side,

		TrailUp:                   v.GetBool("trail_up"),
		TrailTriggerSteps:         maxInt(1, v.GetInt("trail_trigger_steps")),
		TrailMaxCancelPerReanchor: v.GetInt("trail_max_cancel_per_reanchor"),

		PriceRefresh: durationFromSeconds(v.GetFloat64("price_refresh_sec")),

		DuplicateCooldown:   durationFromSeconds(v.GetFloat64("duplicate_cooldown_sec")),
		SuppressAfterCancel: durationFromSeconds(v.GetFloat64("suppress_sec_after_cancel")),
		SuppressOnUnknown:   durationFromSeconds(v.GetFloat64("suppress_sec_on_unknown")),
		PendingLockMax:      durationFromSeconds(v.GetFloat64("pending_lock_max_sec")),
		InstantTPRefill:     v.GetBool("instant_tp_refill"),

		SessionTag: effectiveSessionTag(v.GetString("session_tag")),

		DryRun:      v.GetBool("dry_run"),
		UseTestnet:  v.GetBool("use_testnet"),
		ConfirmLive: v.GetBool("confirm_live"),

		StateFile: v.GetString("state_file"),
		CSVFile:   v.GetString("csv_file"),

		TelegramBotToken: v.GetString("telegram_bot_token"),
		TelegramChatID:   v.GetString("telegram_chat_id"),

		DebugVerbose: v.GetBool("debug_verbose"),
		LogPretty:    v.GetBool("log_pretty"),

		Port: v.GetInt("port"),
	}
	return cfg
}

func decimalFromViper(v *viper.Viper, key string) decimal.Decimal {
	raw := v.GetString(key)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		warnInvalidEnum(strings.ToUpper(key), raw, "0")
		return decimal.Zero
	}
	return d
}

func durationFromSeconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func warnInvalidEnum(key, got, fallback string) {
	logger.Warn().Str("env", key).Str("value", got).Str("default", fallback).Msg("invalid enum value, falling back to default")
}
