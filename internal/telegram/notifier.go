package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/agentchat/internal/config"
)

// Notifier posts operational alerts to an ops chat, optionally into a forum
// topic. A nil Notifier or a zero chat id disables it.
type Notifier struct {
	m       Messenger
	chatID  int64
	topicID int
}

func NewNotifier(m Messenger, chatID int64, topicID int) *Notifier {
	if chatID == 0 {
		return nil
	}
	return &Notifier{m: m, chatID: chatID, topicID: topicID}
}

func (n *Notifier) send(message string) {
	if n == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.NotifyTimeout)
	defer cancel()

	_, err := n.m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          n.chatID,
		Text:            truncate(message, config.MaxTelegramMessageLen),
		ParseMode:       models.ParseModeMarkdownV1,
		MessageThreadID: n.topicID,
	})
	if err != nil {
		slog.Error("failed to send ops notification", "error", err)
	}
}

// Error reports a failed chat turn.
func (n *Notifier) Error(err error, where string, userID string) {
	n.send(fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*User:* `%s`\n*Error:* `%s`\n*Time:* %s",
		where, userID, err.Error(), time.Now().UTC().Format("2006-01-02 15:04:05")))
}
