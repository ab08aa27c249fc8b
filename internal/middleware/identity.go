package middleware

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type ctxKey string

const ChatUserKey ctxKey = "chat_user"

// ChatUser identifies the Telegram user behind an update.
type ChatUser struct {
	UserID     string // tg:<telegram id>
	TelegramID int64
	ChatID     int64
	Name       string
}

// TelegramUserID is the user id recorded for a Telegram account.
func TelegramUserID(id int64) string {
	return "tg:" + strconv.FormatInt(id, 10)
}

// GetChatUser extracts the chat user from context.
func GetChatUser(ctx context.Context) *ChatUser {
	u, ok := ctx.Value(ChatUserKey).(*ChatUser)
	if !ok {
		return nil
	}
	return u
}

// Identity returns middleware that puts the sender of an update into context.
func Identity() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			var chatID int64

			if update.Message != nil {
				from = update.Message.From
				chatID = update.Message.Chat.ID
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
				if update.CallbackQuery.Message.Message != nil {
					chatID = update.CallbackQuery.Message.Message.Chat.ID
				}
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			ctx = context.WithValue(ctx, ChatUserKey, &ChatUser{
				UserID:     TelegramUserID(from.ID),
				TelegramID: from.ID,
				ChatID:     chatID,
				Name:       from.FirstName,
			})
			next(ctx, b, update)
		}
	}
}
