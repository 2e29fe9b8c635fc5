package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/domain"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/steps"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/store"
)

// Defaults applied when a chat registers.
const (
	defaultWeekdayIntervalMin = 60
	defaultWeekendIntervalMin = 120
	defaultQuietStartM        = 22 * 60 // 22:00
	defaultQuietEndM          = 8 * 60  // 08:00
	defaultReminderDelayMin   = 15
)

// ensureConfig makes sure a settings row exists; if not, creates defaults.
func (r *Router) ensureConfig(ctx context.Context, chatID int64) (*domain.ScheduleConfig, error) {
	cfg, err := r.repo.GetConfig(ctx, chatID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	cfg = &domain.ScheduleConfig{
		ChatID:             chatID,
		Enabled:            true,
		TZ:                 r.defaultTZ,
		WeekdayIntervalMin: defaultWeekdayIntervalMin,
		WeekendIntervalMin: defaultWeekendIntervalMin,
		QuietEnabled:       true,
		QuietStartM:        defaultQuietStartM,
		QuietEndM:          defaultQuietEndM,
		ReminderDelayMin:   defaultReminderDelayMin,
		CreatedAt:          time.Now().UTC(),
	}
	if err := r.repo.UpsertConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// updateConfig applies a mutation to the chat's settings and re-arms the
// schedule with the fresh values (cancel+recreate, counting from now).
func (r *Router) updateConfig(ctx context.Context, chatID int64, mutate func(*domain.ScheduleConfig)) error {
	cfg, err := r.ensureConfig(ctx, chatID)
	if err != nil {
		return err
	}
	mutate(cfg)
	if err := r.repo.UpsertConfig(ctx, cfg); err != nil {
		return err
	}
	return r.sched.SchedulePrompt(ctx, chatID)
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	if _, err := r.ensureConfig(ctx, chatID); err != nil {
		r.log.Error("ensureConfig failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	// First registration arms the recurring poll.
	if err := r.sched.SchedulePrompt(ctx, chatID); err != nil {
		r.log.Error("initial schedule failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	r.sendText(chatID, startText)
}

func (r *Router) handleStatus(ctx context.Context, chatID int64) {
	cfg, err := r.ensureConfig(ctx, chatID)
	if err != nil {
		r.log.Error("ensureConfig failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	quiet := "off"
	if cfg.QuietEnabled {
		quiet = domain.FormatMinutes(cfg.QuietStartM) + "–" + domain.FormatMinutes(cfg.QuietEndM)
	}
	enabled := "✅ polling"
	if !cfg.Enabled {
		enabled = "⏸ paused"
	}
	next := "—"
	if cfg.Enabled && cfg.NextFireAt != nil {
		if s, err := domain.LocalizeTime(*cfg.NextFireAt, cfg.TZ); err == nil {
			next = s
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n"+statusFmt,
		statusTitle,
		cfg.WeekdayIntervalMin, cfg.WeekendIntervalMin,
		quiet,
		cfg.ReminderDelayMin,
		cfg.TZ,
		enabled,
		next,
	)

	if acts, err := r.repo.ListRecentActivities(ctx, chatID, 5); err == nil && len(acts) > 0 {
		b.WriteString("\n" + recentTitle + "\n")
		for _, a := range acts {
			when, _ := domain.LocalizeTime(a.EndAt, cfg.TZ)
			fmt.Fprintf(&b, "• %s — %s (%dm)\n", when, a.Description, int(a.Duration().Minutes()))
		}
	}

	r.sendText(chatID, b.String())
}

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	if _, err := r.ensureConfig(ctx, chatID); err != nil {
		r.log.Error("ensureConfig failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Error opening settings.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, "What do you want to configure?")
	msg.ReplyMarkup = settingsInlineKeyboard()
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (r *Router) handlePause(ctx context.Context, chatID int64) {
	if err := r.repo.SetEnabled(ctx, chatID, false); err != nil {
		r.log.Error("pause failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Failed to pause.")
		return
	}
	r.sched.CancelPrompt(chatID)
	r.sendText(chatID, "Paused ⏸ I won't ask until /resume.")
}

func (r *Router) handleResume(ctx context.Context, chatID int64) {
	if err := r.repo.SetEnabled(ctx, chatID, true); err != nil {
		r.log.Error("resume failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Failed to resume.")
		return
	}
	if err := r.sched.SchedulePrompt(ctx, chatID); err != nil {
		r.log.Error("schedule on resume failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	r.sendText(chatID, "Resumed ✅")
}

// handleStop deletes the account: recurring job, pending timers, step state
// and stored data all go.
func (r *Router) handleStop(ctx context.Context, chatID int64) {
	r.sched.CancelPrompt(chatID)
	r.timeout.CancelAll(chatID)
	if err := r.steps.Clear(ctx, chatID); err != nil {
		r.log.Warn("clear step on stop failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	if err := r.repo.DeleteChat(ctx, chatID); err != nil {
		r.log.Error("delete chat failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Failed to delete your data. Please try again later.")
		return
	}
	r.sendText(chatID, "All your data is gone. /start to begin again.")
}

// --- Interval flows (weekday / weekend) ---

func (r *Router) askIntervalPresets(ctx context.Context, chatID int64, cbID, prefix string) {
	_ = r.answerCallback(cbID, "")
	title := "Weekday interval:"
	if prefix == "we" {
		title = "Weekend interval:"
	}
	msg := tgbotapi.NewMessage(chatID, title)
	msg.ReplyMarkup = intervalPresetsKeyboard(prefix)
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (r *Router) handleIntervalCallback(ctx context.Context, chatID int64, data, cbID string, weekday bool) {
	_ = r.answerCallback(cbID, "")
	val := data[strings.Index(data, ":")+1:]
	if val == "custom" {
		r.sendText(chatID, "Enter an interval like 45m, 1h30m or 90:")
		if weekday {
			r.enterStep(ctx, chatID, stepIntervalWeekday)
		} else {
			r.enterStep(ctx, chatID, stepIntervalWeekend)
		}
		return
	}
	mins, err := domain.ParseIntervalMinutes(val)
	if err != nil {
		r.sendText(chatID, "Invalid interval. Example: 1h30m")
		return
	}
	r.applyInterval(ctx, chatID, mins, weekday)
}

func (r *Router) applyInterval(ctx context.Context, chatID int64, mins int, weekday bool) {
	err := r.updateConfig(ctx, chatID, func(c *domain.ScheduleConfig) {
		if weekday {
			c.WeekdayIntervalMin = mins
		} else {
			c.WeekendIntervalMin = mins
		}
	})
	if err != nil {
		r.log.Error("update interval failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Could not save the interval.")
		return
	}
	kind := "Weekday"
	if !weekday {
		kind = "Weekend"
	}
	r.sendText(chatID, fmt.Sprintf("%s interval updated: %dm", kind, mins))
}

// --- Quiet hours flow ---

func (r *Router) askQuietPresets(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Quiet hours — no polls inside this window:")
	msg.ReplyMarkup = quietPresetsKeyboard()
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (r *Router) handleQuietCallback(ctx context.Context, chatID int64, data, cbID string) {
	_ = r.answerCallback(cbID, "")
	val := strings.TrimPrefix(data, "quiet:")
	switch val {
	case "off":
		if err := r.updateConfig(ctx, chatID, func(c *domain.ScheduleConfig) {
			c.QuietEnabled = false
		}); err != nil {
			r.log.Error("disable quiet failed", zap.Error(err), zap.Int64("chat_id", chatID))
			r.sendText(chatID, "Could not save quiet hours.")
			return
		}
		r.sendText(chatID, "Quiet hours disabled.")
	case "custom":
		r.sendText(chatID, "Enter quiet hours as HH:MM–HH:MM (e.g., 23:00–07:00):")
		r.enterStep(ctx, chatID, stepQuietWindow)
	default:
		startM, endM, err := domain.ParseQuietWindow(val)
		if err != nil {
			r.sendText(chatID, "Invalid format. Example: 23:00–07:00")
			return
		}
		r.applyQuietWindow(ctx, chatID, startM, endM)
	}
}

func (r *Router) applyQuietWindow(ctx context.Context, chatID int64, startM, endM int) {
	err := r.updateConfig(ctx, chatID, func(c *domain.ScheduleConfig) {
		c.QuietEnabled = true
		c.QuietStartM = startM
		c.QuietEndM = endM
	})
	if err != nil {
		r.log.Error("update quiet window failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Could not save quiet hours.")
		return
	}
	r.sendText(chatID, "Quiet hours updated: "+domain.FormatMinutes(startM)+"–"+domain.FormatMinutes(endM))
}

// --- Snooze delay flow ---

func (r *Router) askSnoozePresets(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Snooze delay for \"remind me later\":")
	msg.ReplyMarkup = snoozePresetsKeyboard()
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (r *Router) handleSnoozeCallback(ctx context.Context, chatID int64, data, cbID string) {
	_ = r.answerCallback(cbID, "")
	val := strings.TrimPrefix(data, "snooze:")
	if val == "custom" {
		r.sendText(chatID, "Enter a snooze delay like 15m or 1h:")
		r.enterStep(ctx, chatID, stepSnoozeDelay)
		return
	}
	mins, err := domain.ParseIntervalMinutes(val)
	if err != nil {
		r.sendText(chatID, "Invalid delay. Example: 15m")
		return
	}
	r.applySnoozeDelay(ctx, chatID, mins)
}

func (r *Router) applySnoozeDelay(ctx context.Context, chatID int64, mins int) {
	err := r.updateConfig(ctx, chatID, func(c *domain.ScheduleConfig) {
		c.ReminderDelayMin = mins
	})
	if err != nil {
		r.log.Error("update snooze delay failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Could not save the delay (10m–3h allowed).")
		return
	}
	r.sendText(chatID, fmt.Sprintf("Snooze delay updated: %dm", mins))
}

// --- Timezone flow ---

func (r *Router) askTZPresets(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Choose a timezone or enter your own (Region/City):")
	msg.ReplyMarkup = tzPresetsKeyboard()
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (r *Router) handleTZCallback(ctx context.Context, chatID int64, data, cbID string) {
	_ = r.answerCallback(cbID, "")
	val := strings.TrimPrefix(data, "tz:")
	if val == "custom" {
		r.sendText(chatID, "Enter timezone (e.g., Europe/Moscow):")
		r.enterStep(ctx, chatID, stepTimezone)
		return
	}
	tz, err := domain.ValidateTZ(val)
	if err != nil {
		r.sendText(chatID, "Invalid timezone. Example: Europe/Moscow")
		return
	}
	r.applyTZ(ctx, chatID, tz)
}

func (r *Router) applyTZ(ctx context.Context, chatID int64, tz string) {
	if err := r.updateConfig(ctx, chatID, func(c *domain.ScheduleConfig) { c.TZ = tz }); err != nil {
		r.log.Error("update tz failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, "Could not save timezone.")
		return
	}
	r.sendText(chatID, "Timezone updated: "+tz)
}

// --- Category flow ---

func (r *Router) askNewCategory(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	r.sendText(chatID, "Send the new category name in a single message:")
	r.enterStep(ctx, chatID, stepNewCategory)
}

// --- Free-form input for "Custom…" flows ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	token, _, err := r.steps.Current(ctx, chatID)
	if errors.Is(err, steps.ErrNoStep) {
		r.sendText(chatID, hintText)
		return
	}
	if err != nil {
		r.log.Error("read step failed", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}

	switch token {
	case stepIntervalWeekday, stepIntervalWeekend:
		mins, err := domain.ParseIntervalMinutes(text)
		if err != nil {
			r.sendText(chatID, "Invalid interval, try again. Example: 1h30m")
			return // keep the step; the timeout chain stays armed
		}
		r.completeStep(ctx, chatID)
		r.applyInterval(ctx, chatID, mins, token == stepIntervalWeekday)

	case stepQuietWindow:
		startM, endM, err := domain.ParseQuietWindow(text)
		if err != nil {
			r.sendText(chatID, "Invalid format, try again. Example: 23:00–07:00")
			return
		}
		r.completeStep(ctx, chatID)
		r.applyQuietWindow(ctx, chatID, startM, endM)

	case stepSnoozeDelay:
		mins, err := domain.ParseIntervalMinutes(text)
		if err != nil {
			r.sendText(chatID, "Invalid delay, try again. Example: 15m")
			return
		}
		r.completeStep(ctx, chatID)
		r.applySnoozeDelay(ctx, chatID, mins)

	case stepTimezone:
		tz, err := domain.ValidateTZ(text)
		if err != nil {
			r.sendText(chatID, "Invalid timezone, try again. Example: Europe/Moscow")
			return
		}
		r.completeStep(ctx, chatID)
		r.applyTZ(ctx, chatID, tz)

	case stepNewCategory:
		id, err := r.repo.AddCategory(ctx, chatID, text)
		if err != nil {
			r.log.Error("add category failed", zap.Error(err), zap.Int64("chat_id", chatID))
			r.sendText(chatID, "Could not save the category.")
			return
		}
		r.completeStep(ctx, chatID)
		r.log.Info("category added", zap.Int64("chat_id", chatID), zap.Int64("category_id", id))
		r.sendText(chatID, "Category added: "+strings.TrimSpace(text))

	default:
		if steps.IsPollToken(token) {
			r.sendText(chatID, "Please answer the poll with its buttons above.")
			return
		}
		r.sendText(chatID, hintText)
	}
}
