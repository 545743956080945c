package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tube-courier/internal/coordinator"
	"tube-courier/internal/session"
)

const (
	qualityPrefix = "q"
	buttonsPerRow = 2
)

// qualityData encodes a button payload. Telegram caps callback data at 64
// bytes, so the encoding is referenced by index.
func qualityData(sid session.ID, idx int) string {
	return fmt.Sprintf("%s:%s:%d", qualityPrefix, sid, idx)
}

// parseQualityData decodes a payload built by qualityData.
func parseQualityData(data string) (session.ID, int, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != qualityPrefix || parts[1] == "" {
		return "", 0, false
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil || idx < 0 {
		return "", 0, false
	}
	return session.ID(parts[1]), idx, true
}

// qualityKeyboard lists the session's encodings, two per row, followed by a
// link to the source.
func qualityKeyboard(sess session.Session) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, opt := range sess.Options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(coordinator.OptionLabel(opt), qualityData(sess.ID, i)))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if sess.Reference.SourceURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("▶️ Open on YouTube", sess.Reference.SourceURL),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
