package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

// TelegramNotifier pushes transition events to a staff chat.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
}

func NewTelegramNotifier(b *bot.Bot, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: b, chatID: chatID}
}

func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	text := fmt.Sprintf("Booking request %s: %s → %s (%s)\nCustomer: %s <%s>",
		event.RequestID,
		event.FromStatus,
		event.ToStatus,
		event.Action,
		event.Customer.Name,
		event.Customer.Email,
	)

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}

	return nil
}
