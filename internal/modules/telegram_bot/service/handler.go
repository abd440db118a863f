package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auto_trading_bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const confirmTimeout = time.Minute

// кнопки главного меню
var menuCommands = map[string]string{
	"▶️ Run":      "run",
	"📊 Status":    "status",
	"💰 Balance":   "balance",
	"⏸ Hold":      "hold",
	"▶️ Activate": "activate",
	"💹 Prices":    "prices",
	"🧾 Trades":    "trades",
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// 1) Обычные сообщения
	if msg := update.Message; msg != nil {
		chatID := msg.Chat.ID
		if !t.authorized(chatID) {
			logger.Warn("[TG] ignoring message from chat %d", chatID)
			return
		}

		if msg.IsCommand() {
			t.handleCommand(ctx, chatID, msg.Command(), msg.CommandArguments())
			return
		}

		if cmd, ok := menuCommands[strings.TrimSpace(msg.Text)]; ok {
			t.handleCommand(ctx, chatID, cmd, "")
		}
		return
	}

	// 2) Inline-кнопки (CallbackQuery)
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil || !t.authorized(cb.Message.Chat.ID) {
			return
		}
		// отвечаем ТГ, чтобы убрать "часики" на кнопке
		_, _ = t.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
		t.handleConfirmCallback(cb.Message.Chat.ID, cb.Data)
	}
}

func (t *Telegram) authorized(chatID int64) bool {
	return t.chatID != 0 && chatID == t.chatID
}

func (t *Telegram) handleCommand(ctx context.Context, chatID int64, command, args string) {
	logger.Info("[TG] /%s %s", command, args)

	switch command {
	case "start":
		msg := tgbotapi.NewMessage(chatID, helpText)
		msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("▶️ Run"),
				tgbotapi.NewKeyboardButton("📊 Status"),
				tgbotapi.NewKeyboardButton("💰 Balance"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("⏸ Hold"),
				tgbotapi.NewKeyboardButton("▶️ Activate"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("💹 Prices"),
				tgbotapi.NewKeyboardButton("🧾 Trades"),
			),
		)
		if _, err := t.SendMessage(ctx, msg); err != nil {
			logger.Error("[TG] start: %v", err)
		}
		return

	case "reset":
		// подтверждение блокирует, поэтому в отдельной горутине
		go func() {
			if !t.Confirm(ctx, chatID, "♻️ Reset the live account? All holdings and trade history will be dropped.", confirmTimeout) {
				return
			}
			t.reply(ctx, chatID, t.cmds.Reset(ctx))
		}()
		return

	case "run", "train", "backtest":
		// долгие команды не держат цикл обновлений
		_, _ = t.Send(ctx, chatID, "⏳ Working...")
		go t.reply(ctx, chatID, t.cmds.Handle(ctx, command, args))
		return

	case "prices", "balance":
		// ходят в price feed
		go t.reply(ctx, chatID, t.cmds.Handle(ctx, command, args))
		return
	}

	t.reply(ctx, chatID, t.cmds.Handle(ctx, command, args))
}

func (t *Telegram) reply(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := t.Send(ctx, chatID, text); err != nil {
		logger.Error("[TG] send: %v", err)
	}
}

// handleConfirmCallback обрабатывает callback-и вида CONF::token / REJ::token.
func (t *Telegram) handleConfirmCallback(chatID int64, data string) {
	verb, token := parseConfirmData(data)
	if verb == "" || token == "" {
		return
	}

	t.mu.Lock()
	p, ok := t.pendings[token]
	delete(t.pendings, token)
	t.mu.Unlock()
	if !ok {
		return
	}

	accepted := verb == "CONF"
	p.ch <- accepted

	status, emoji := "Cancelled", "❌"
	if accepted {
		status, emoji = "Confirmed", "✅"
	}

	_ = t.editReplyMarkupRemove(chatID, p.msgID)
	_ = t.editText(chatID, p.msgID, fmt.Sprintf("%s\n\n%s %s", p.prompt, emoji, status))
}
