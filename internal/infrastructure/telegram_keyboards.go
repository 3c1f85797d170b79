package infrastructure

import (
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// InlineKeyboard lays the menu out one button per row. The callback data is
// the action name.
func InlineKeyboard(menu *entities.Menu) *tgbotapi.InlineKeyboardMarkup {
	if menu == nil || len(menu.Buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(menu.Buttons))
	for _, b := range menu.Buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Label, string(b.Action)),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
