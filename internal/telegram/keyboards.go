package telegram

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vntrieu/impostor/internal/games"
)

// OptionsKeyboard renders prompt options one button per row. Options that cannot be encoded are skipped.
func OptionsKeyboard(matchID string, opts []games.Option) (tgbotapi.InlineKeyboardMarkup, bool) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(opts))
	for _, opt := range opts {
		data, err := EncodeOption(matchID, opt)
		if err != nil {
			log.Printf("telegram keyboard skipped option match_id=%s: %v", matchID, err)
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(opt.Label, data)))
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

// LobbyKeyboard is attached to the match-created announcement.
func LobbyKeyboard(matchID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🙋 Join", opJoin+":"+matchID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Begin", opBegin+":"+matchID),
			tgbotapi.NewInlineKeyboardButtonData("⏹ End", opEnd+":"+matchID),
		),
	)
}
