package telegram

import (
	"fmt"

	"github.com/go-telegram/bot/models"
)

// Callback data prefixes for the /sessions view.
const (
	cbSwitchSession = "switch_session_"
	cbSessionsPage  = "sessions_page_"
	cbNewSession    = "new_session"
	cbDeleteCurrent = "delete_current"
	cbNoop          = "cur"
)

func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// PaginationRow renders prev/current/next buttons for a 1-based page.
// Arrows are omitted at either end.
func PaginationRow(page, totalPages int, callbackPrefix string) []models.InlineKeyboardButton {
	var row []models.InlineKeyboardButton

	if page > 1 {
		row = append(row, InlineButton("⬅️", fmt.Sprintf("%s%d", callbackPrefix, page-1)))
	}

	row = append(row, InlineButton(fmt.Sprintf("%d/%d", page, totalPages), cbNoop))

	if page < totalPages {
		row = append(row, InlineButton("➡️", fmt.Sprintf("%s%d", callbackPrefix, page+1)))
	}

	return row
}
