// Package telegram is the Telegram chat channel: it relays private messages
// and trade-file uploads to the chat service and lets users page through and
// switch between their sessions.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/set-night/agentchat/internal/config"
	"github.com/set-night/agentchat/internal/domain"
	"github.com/set-night/agentchat/internal/middleware"
	"github.com/set-night/agentchat/internal/service"
	"github.com/set-night/agentchat/internal/upload"
)

// Deps contains all dependencies required to construct a Bot.
type Deps struct {
	Token          string
	Platform       domain.Platform
	Chat           *service.ChatService
	Sessions       *service.SessionService
	Parser         *upload.Parser
	RateLimiter    echomw.RateLimiterStore
	MaxUploadBytes int64
	OpsChatID      int64
	OpsTopicID     int
}

type Bot struct {
	bot            *bot.Bot
	platform       domain.Platform
	chat           *service.ChatService
	sessions       *service.SessionService
	parser         *upload.Parser
	notifier       *Notifier
	active         *activeSessions
	maxUploadBytes int64
}

func New(deps Deps) (*Bot, error) {
	t := &Bot{
		platform:       deps.Platform,
		chat:           deps.Chat,
		sessions:       deps.Sessions,
		parser:         deps.Parser,
		active:         newActiveSessions(),
		maxUploadBytes: deps.MaxUploadBytes,
	}

	b, err := bot.New(deps.Token,
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.Identity(),
			middleware.RateLimit(deps.RateLimiter),
		),
		bot.WithDefaultHandler(t.handleMessage),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	t.bot = b
	t.notifier = NewNotifier(b, deps.OpsChatID, deps.OpsTopicID)
	t.register()
	return t, nil
}

func (t *Bot) register() {
	t.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, t.handleStart)
	t.bot.RegisterHandler(bot.HandlerTypeMessageText, "/new", bot.MatchTypePrefix, t.handleNew)
	t.bot.RegisterHandler(bot.HandlerTypeMessageText, "/sessions", bot.MatchTypePrefix, t.handleSessions)

	t.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSwitchSession, bot.MatchTypePrefix, t.handleSwitchSession)
	t.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSessionsPage, bot.MatchTypePrefix, t.handleSessionsPage)
	t.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbNewSession, bot.MatchTypeExact, t.handleNewSession)
	t.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbDeleteCurrent, bot.MatchTypeExact, t.handleDeleteCurrent)
	t.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbNoop, bot.MatchTypeExact, t.handleNoop)
}

// Run polls for updates until ctx is cancelled.
func (t *Bot) Run(ctx context.Context) {
	me, err := t.bot.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
	} else {
		slog.Info("starting telegram bot", "username", me.Username, "id", me.ID, "platform", t.platform)
	}
	t.bot.Start(ctx)
	slog.Info("telegram bot stopped")
}

func (t *Bot) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetChatUser(ctx)
	name := "there"
	if user != nil && user.Name != "" {
		name = user.Name
	}

	text := fmt.Sprintf("👋 Hi, *%s*!\n\n"+
		"Ask me anything about your trading and I'll pass it to the assistant. "+
		"You can also send a trade history file (CSV, Excel, JSON or an HTML statement) "+
		"with your question as the caption.\n\n"+
		"📋 *Commands:*\n"+
		"/new — Start a new conversation\n"+
		"/sessions — Browse and switch conversations", name)

	if err := SendLongMessage(ctx, b, update.Message.Chat.ID, text, 0); err != nil {
		slog.Error("send welcome", "error", err)
	}
}

func (t *Bot) handleNew(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	t.active.Clear(chatID)
	SendText(ctx, b, chatID, "🆕 Your next message starts a new conversation.")
}

// handleMessage runs a chat turn for a plain text message or a document.
func (t *Bot) handleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.Type != "private" {
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		return
	}
	user := middleware.GetChatUser(ctx)
	if user == nil {
		return
	}

	chatID := msg.Chat.ID
	query := strings.TrimSpace(msg.Text)

	var resource domain.Resource
	if msg.Document != nil {
		query = strings.TrimSpace(msg.Caption)
		if query == "" {
			SendText(ctx, b, chatID, "📎 Add a caption to the file telling me what to do with it.")
			return
		}
		var err error
		resource, err = t.parseDocument(ctx, b, msg.Document)
		if err != nil {
			slog.Warn("document rejected", "error", err, "user_id", user.UserID, "filename", msg.Document.FileName)
			SendText(ctx, b, chatID, userMessage(err))
			return
		}
	}
	if query == "" {
		return
	}

	stopTyping := StartTyping(ctx, b, chatID)
	res, err := t.chat.Chat(ctx, service.ChatRequest{
		Query:     query,
		UserID:    user.UserID,
		Platform:  t.platform,
		SessionID: t.active.Get(chatID),
		Resource:  resource,
	})
	stopTyping()
	if err != nil {
		slog.Error("telegram chat turn", "error", err, "user_id", user.UserID)
		t.notifier.Error(err, "chat turn", user.UserID)
		SendText(ctx, b, chatID, userMessage(err))
		return
	}

	t.active.Set(chatID, res.SessionID)
	if err := SendLongMessage(ctx, b, chatID, res.Message, msg.ID); err != nil {
		slog.Error("send reply", "error", err, "session_id", res.SessionID)
	}
}

func (t *Bot) parseDocument(ctx context.Context, b *bot.Bot, doc *models.Document) (domain.Resource, error) {
	if t.maxUploadBytes > 0 && doc.FileSize > t.maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidPayload, t.maxUploadBytes)
	}
	data, err := DownloadFile(ctx, b, doc.FileID, t.maxUploadBytes)
	if err != nil {
		return nil, err
	}
	return t.parser.Parse(doc.FileName, bytes.NewReader(data))
}

// userMessage is what the user sees when a turn fails.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "❌ Unsupported file. Send CSV, XLSX, JSON or an HTML statement."
	case errors.Is(err, domain.ErrInvalidPayload):
		return "❌ I couldn't read that file: " + err.Error()
	case errors.Is(err, domain.ErrRuntime):
		return "❌ The assistant is unavailable right now. Please try again later."
	}
	return "❌ Something went wrong while processing your request."
}

func (t *Bot) handleSessions(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetChatUser(ctx)
	if user == nil {
		return
	}
	t.sendSessionsPage(ctx, b, update.Message.Chat.ID, user, 1, 0)
}

// sendSessionsPage renders one page of the user's sessions. A non-zero
// messageID edits that message in place.
func (t *Bot) sendSessionsPage(ctx context.Context, b *bot.Bot, chatID int64, user *middleware.ChatUser, page, messageID int) {
	filter := domain.SessionFilter{Platform: t.platform, UserID: user.UserID}
	res, err := t.sessions.List(ctx, filter, domain.PageRequest{Page: page, PageSize: config.SessionsPerPage})
	if err != nil {
		slog.Error("list sessions", "error", err, "user_id", user.UserID)
		return
	}
	if page > 1 && page > res.TotalPages {
		res, err = t.sessions.List(ctx, filter, domain.PageRequest{Page: max(res.TotalPages, 1), PageSize: config.SessionsPerPage})
		if err != nil {
			slog.Error("list sessions", "error", err, "user_id", user.UserID)
			return
		}
	}

	labels := make(map[string]string, len(res.Items))
	for _, s := range res.Items {
		first, err := t.sessions.Messages(ctx, s.SessionID, domain.PageRequest{Page: 1, PageSize: 1})
		if err != nil {
			slog.Warn("first session message", "error", err, "session_id", s.SessionID)
			continue
		}
		if len(first.Items) > 0 {
			labels[s.SessionID] = first.Items[0].Message
		}
	}

	text, keyboard := renderSessionsPage(res, labels, t.active.Get(chatID))

	if messageID != 0 {
		_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   messageID,
			Text:        text,
			ParseMode:   models.ParseModeMarkdownV1,
			ReplyMarkup: keyboard,
		})
	} else {
		_, err = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        text,
			ParseMode:   models.ParseModeMarkdownV1,
			ReplyMarkup: keyboard,
		})
	}
	if err != nil {
		slog.Error("send sessions page", "error", err, "chat_id", chatID)
	}
}

func renderSessionsPage(res domain.ListResult[domain.Session], labels map[string]string, active string) (string, *models.InlineKeyboardMarkup) {
	text := fmt.Sprintf("📂 *Conversations* (%d)", res.Total)
	if res.Total == 0 {
		text += "\n\nNothing here yet. Send a message to start one."
	}

	var rows [][]models.InlineKeyboardButton
	for _, s := range res.Items {
		label := "📝 " + s.CreatedAt.Format("02.01 15:04")
		if snippet := labels[s.SessionID]; snippet != "" {
			label = snippetOf(snippet, 30)
		}
		if s.SessionID == active {
			label += " ✅"
		}
		rows = append(rows, ButtonRow(InlineButton(label, cbSwitchSession+s.SessionID)))
	}

	actions := ButtonRow(InlineButton("➕ New", cbNewSession))
	if active != "" {
		actions = append(actions, InlineButton("🗑 Delete current", cbDeleteCurrent))
	}
	rows = append(rows, actions)

	if res.TotalPages > 1 {
		rows = append(rows, PaginationRow(res.Page, res.TotalPages, cbSessionsPage))
	}
	return text, InlineKeyboard(rows...)
}

func snippetOf(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// callbackTarget answers the callback and returns the chat and message it
// came from.
func callbackTarget(ctx context.Context, b *bot.Bot, update *models.Update) (int64, int, bool) {
	if update.CallbackQuery == nil {
		return 0, 0, false
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	msg := update.CallbackQuery.Message.Message
	if msg == nil {
		return 0, 0, false
	}
	return msg.Chat.ID, msg.ID, true
}

func (t *Bot) handleSwitchSession(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackTarget(ctx, b, update)
	user := middleware.GetChatUser(ctx)
	if !ok || user == nil {
		return
	}

	sessionID := strings.TrimPrefix(update.CallbackQuery.Data, cbSwitchSession)
	sess, err := t.sessions.Get(ctx, sessionID)
	if err != nil || sess.UserID != user.UserID || sess.Platform != t.platform {
		slog.Warn("switch to unknown session", "error", err, "session_id", sessionID, "user_id", user.UserID)
		t.sendSessionsPage(ctx, b, chatID, user, 1, messageID)
		return
	}

	t.active.Set(chatID, sess.SessionID)
	t.sendSessionsPage(ctx, b, chatID, user, 1, messageID)
}

func (t *Bot) handleSessionsPage(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackTarget(ctx, b, update)
	user := middleware.GetChatUser(ctx)
	if !ok || user == nil {
		return
	}

	page, err := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, cbSessionsPage))
	if err != nil || page < 1 {
		page = 1
	}
	t.sendSessionsPage(ctx, b, chatID, user, page, messageID)
}

func (t *Bot) handleNewSession(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackTarget(ctx, b, update)
	user := middleware.GetChatUser(ctx)
	if !ok || user == nil {
		return
	}

	t.active.Clear(chatID)
	t.sendSessionsPage(ctx, b, chatID, user, 1, messageID)
}

func (t *Bot) handleDeleteCurrent(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, messageID, ok := callbackTarget(ctx, b, update)
	user := middleware.GetChatUser(ctx)
	if !ok || user == nil {
		return
	}

	if current := t.active.Get(chatID); current != "" {
		if _, err := t.sessions.Delete(ctx, current); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			slog.Error("delete session", "error", err, "session_id", current)
		}
		t.active.ClearSession(current)
	}
	t.sendSessionsPage(ctx, b, chatID, user, 1, messageID)
}

func (t *Bot) handleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	callbackTarget(ctx, b, update)
}
