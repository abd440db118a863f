package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auto_trading_bot/internal/models"
	"auto_trading_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

// Telegram is the chat transport. Without a token it is disabled and every
// method is a no-op.
type Telegram struct {
	bot      *tgbot.BotAPI
	chatID   int64
	cmds     *Commands
	mu       sync.Mutex
	pendings map[string]*pending
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewTelegram(token string, chatID int64, cmds *Commands) (*Telegram, error) {
	t := &Telegram{
		chatID:   chatID,
		cmds:     cmds,
		pendings: make(map[string]*pending),
	}
	if token == "" {
		logger.Info("[TG] no token configured, telegram disabled")
		return t, nil
	}

	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	t.bot = b
	logger.Info("[TG] authorized as @%s, chat %d", b.Self.UserName, chatID)
	return t, nil
}

func (t *Telegram) Enabled() bool { return t.bot != nil }

func (t *Telegram) Send(_ context.Context, chatID int64, msg string) (tgbot.Message, error) {
	if t.bot == nil {
		return tgbot.Message{}, nil
	}
	return t.bot.Send(tgbot.NewMessage(chatID, msg))
}

func (t *Telegram) SendMessage(_ context.Context, message tgbot.MessageConfig) (tgbot.Message, error) {
	if t.bot == nil {
		return tgbot.Message{}, nil
	}
	return t.bot.Send(message)
}

// NotifyAnalysis pushes a scheduled run report to the configured chat.
func (t *Telegram) NotifyAnalysis(ctx context.Context, res models.AnalysisResult) {
	if t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.Send(ctx, t.chatID, "⏰ Scheduled run\n\n"+FormatAnalysis(res)); err != nil {
		logger.Error("[TG] notify: %v", err)
	}
}

func (t *Telegram) editReplyMarkupRemove(chatID int64, msgID int) error {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	edit := tgbot.NewEditMessageReplyMarkup(chatID, msgID, rm)
	_, err := t.bot.Request(edit)
	return err
}

func (t *Telegram) editText(chatID int64, msgID int, text string) error {
	edit := tgbot.NewEditMessageText(chatID, msgID, text)
	_, err := t.bot.Request(edit)
	return err
}

// Confirm: сообщение с кнопками и ожиданием callback.
func (t *Telegram) Confirm(ctx context.Context, chatID int64, prompt string, timeout time.Duration) bool {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	p := &pending{
		ch:     make(chan bool, 1),
		prompt: prompt,
	}

	t.mu.Lock()
	t.pendings[token] = p
	t.mu.Unlock()

	btnYes := tgbot.NewInlineKeyboardButtonData("✅ Confirm", "CONF::"+token)
	btnNo := tgbot.NewInlineKeyboardButtonData("❌ Cancel", "REJ::"+token)
	kb := tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(btnYes, btnNo))

	msg := tgbot.NewMessage(chatID, prompt)
	msg.ReplyMarkup = kb

	sent, err := t.bot.Send(msg)
	if err != nil {
		logger.Error("[TG] confirm prompt: %v", err)
		t.dropPending(token)
		return false
	}
	t.mu.Lock()
	p.msgID = sent.MessageID
	t.mu.Unlock()

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		_ = t.editReplyMarkupRemove(chatID, p.msgID)
		_ = t.editText(chatID, p.msgID, fmt.Sprintf("%s\n\n⏳ Timed out", prompt))
		t.dropPending(token)
		return false
	case <-ctx.Done():
		_ = t.editReplyMarkupRemove(chatID, p.msgID)
		_ = t.editText(chatID, p.msgID, fmt.Sprintf("%s\n\n⛔️ Cancelled", prompt))
		t.dropPending(token)
		return false
	}
}

func (t *Telegram) dropPending(token string) {
	t.mu.Lock()
	delete(t.pendings, token)
	t.mu.Unlock()
}

// Start begins long polling in the background.
func (t *Telegram) Start(ctx context.Context) {
	if t.bot == nil {
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		defer close(t.done)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, update)
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if t.bot == nil || t.cancel == nil {
		return
	}
	t.bot.StopReceivingUpdates()
	t.cancel()
	<-t.done
}
