// FILE: notify.go
// Package main – outbound alerting: Telegram notifications for engine events
// (the engine sends one when a state save fails), modeled on the Alerter
// interface pattern
// from _examples/other_examples/fa583cae_henrylee001199-code-Spot_Dual__internal-strategy-futures_grid.go.go,
// implemented with the telegram-bot-api library used by
// _examples/web3guy0-polybot.

package main

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Alerter sends a human-readable notification for an engine event. Fields
// are appended as "key=value" pairs; implementations must not block the
// processor worker for long or return an error the caller must handle —
// notification failures are logged and otherwise swallowed.
type Alerter interface {
	Notify(event string, fields map[string]string)
}

// NoopAlerter discards every notification. Used when no bot token is
// configured.
type NoopAlerter struct{}

func (NoopAlerter) Notify(event string, fields map[string]string) {
	logger.Debug().Str("event", event).Interface("fields", fields).Msg("alert (no telegram configured)")
}

// telegramQueueDepth bounds the fire-and-forget send queue (SPEC_FULL §4.12):
// small enough that a stuck Telegram API can't grow unbounded memory, large
// enough to absorb a burst of notifications without dropping any.
const telegramQueueDepth = 32

// TelegramAlerter sends notifications to a single chat via the Bot API. Notify
// only enqueues; a dedicated goroutine owns the actual HTTP call, so a slow or
// unreachable Telegram API never stalls the processor worker that called it.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	queue  chan string
}

func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	a := &TelegramAlerter{bot: bot, chatID: chatID, queue: make(chan string, telegramQueueDepth)}
	go a.run()
	return a, nil
}

func (a *TelegramAlerter) run() {
	for text := range a.queue {
		msg := tgbotapi.NewMessage(a.chatID, text)
		if _, err := a.bot.Send(msg); err != nil {
			logger.Warn().Err(err).Msg("telegram send failed")
		}
	}
}

func (a *TelegramAlerter) Notify(event string, fields map[string]string) {
	text := fmt.Sprintf("[gridbot] %s", event)
	for k, v := range fields {
		text += fmt.Sprintf("\n%s=%s", k, v)
	}
	select {
	case a.queue <- text:
	default:
		logger.Warn().Str("event", event).Msg("telegram queue full, dropping notification")
	}
}

// NewAlerter picks Telegram when both a token and chat id are configured,
// otherwise falls back to the no-op alerter.
func NewAlerter(cfg Config) Alerter {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
		return NoopAlerter{}
	}
	chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
	if err != nil {
		logger.Warn().Err(err).Str("telegram_chat_id", cfg.TelegramChatID).Msg("invalid telegram chat id, falling back to no-op alerter")
		return NoopAlerter{}
	}
	a, err := NewTelegramAlerter(cfg.TelegramBotToken, chatID)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, falling back to no-op alerter")
		return NoopAlerter{}
	}
	return a
}
