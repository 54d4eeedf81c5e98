package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotSender is the part of the Telegram bot API the notifier uses.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts alerts into an operator chat.
type TelegramNotifier struct {
	bot    BotSender
	chatID int64
}

// NewTelegramNotifier connects to the bot API.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewTelegramNotifierWithBot(bot, chatID), nil
}

// NewTelegramNotifierWithBot wraps an existing bot.
func NewTelegramNotifierWithBot(bot BotSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

// TicketCreated implements Notifier.
func (n *TelegramNotifier) TicketCreated(_ context.Context, s TicketSummary) error {
	text := fmt.Sprintf("🎫 New ticket [%s]\n%s\nfrom %s\n%s", s.Priority, s.Title, s.OwnerName, s.URL)
	return n.send(text)
}

// EscalationRequested implements Notifier.
func (n *TelegramNotifier) EscalationRequested(_ context.Context, e Escalation) error {
	text := fmt.Sprintf("🙋 Operator requested [%s]\n%s\n%s", e.Priority, e.Title, e.URL)
	if e.Reason != "" {
		text += "\nReason: " + e.Reason
	}
	return n.send(text)
}

func (n *TelegramNotifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
