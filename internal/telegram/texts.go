package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/domain"
)

// UI texts in English
const (
	startText = "👋 I track what you spend your time on.\n\n" +
		"Every now and then I'll ask what you were doing — answer with one tap.\n" +
		"Tune the cadence, quiet hours and timezone in /settings.\n" +
		"/status shows your settings and recent activities."

	promptText       = "⏱ What were you doing?"
	stepReminderText = "👀 Still there? You left something unfinished — tap a button above or it will be dismissed."

	skippedText         = "Okay, skipped this one."
	snoozedTextFmt      = "Fine, I'll ask again in %dm."
	recordedTextFmt     = "Recorded: %s, %dm ✅"
	recordFailedText    = "Could not save the record, sorry."
	unknownCategoryText = "That category no longer exists. Pick another one."

	statusTitle = "🧾 Your current settings:"
	statusFmt   = "• Weekday interval: %dm\n" +
		"• Weekend interval: %dm\n" +
		"• Quiet hours: %s\n" +
		"• Snooze delay: %dm\n" +
		"• TZ: %s\n" +
		"• State: %s\n" +
		"• Next poll: %s\n"
	recentTitle = "📒 Recent activities:"

	hintText = "Use /settings to configure me, /status to see where you stand."
)

// pollKeyboard builds the answer buttons for one poll: category rows, then
// the sleep/skip/later row.
func pollKeyboard(cats []domain.Category) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	for _, c := range cats {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			c.Title, "poll:cat:"+strconv.FormatInt(c.ID, 10)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 2)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("😴 I slept", "poll:sleep"),
		tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", "poll:skip"),
		tgbotapi.NewInlineKeyboardButtonData("⏰ Later", "poll:later"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func settingsInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏲️ Weekday interval", "set_wd"),
			tgbotapi.NewInlineKeyboardButtonData("🛋 Weekend interval", "set_we"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌙 Quiet hours", "set_quiet"),
			tgbotapi.NewInlineKeyboardButtonData("⏰ Snooze delay", "set_snooze"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone", "set_tz"),
			tgbotapi.NewInlineKeyboardButtonData("🏷 New category", "set_cat"),
		),
	)
}

func intervalPresetsKeyboard(prefix string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("30m", prefix+":30m"),
			tgbotapi.NewInlineKeyboardButtonData("1h", prefix+":1h"),
			tgbotapi.NewInlineKeyboardButtonData("2h", prefix+":2h"),
			tgbotapi.NewInlineKeyboardButtonData("3h", prefix+":3h"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("4h", prefix+":4h"),
			tgbotapi.NewInlineKeyboardButtonData("6h", prefix+":6h"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", prefix+":custom"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_menu"),
		),
	)
}

func quietPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("22:00–08:00", "quiet:22:00-08:00"),
			tgbotapi.NewInlineKeyboardButtonData("23:00–07:00", "quiet:23:00-07:00"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Off", "quiet:off"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "quiet:custom"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_menu"),
		),
	)
}

func snoozePresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("10m", "snooze:10m"),
			tgbotapi.NewInlineKeyboardButtonData("15m", "snooze:15m"),
			tgbotapi.NewInlineKeyboardButtonData("30m", "snooze:30m"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1h", "snooze:1h"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "snooze:custom"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_menu"),
		),
	)
}

func tzPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/Moscow", "tz:Europe/Moscow"),
			tgbotapi.NewInlineKeyboardButtonData("Europe/Berlin", "tz:Europe/Berlin"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Asia/Almaty", "tz:Asia/Almaty"),
			tgbotapi.NewInlineKeyboardButtonData("UTC", "tz:UTC"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "tz:custom"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_menu"),
		),
	)
}
