package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/sched"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/steps"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/store"
)

// Step tokens for settings dialogues awaiting free-form input. Stored in the
// step store so the timeout service covers abandoned settings flows too.
const (
	stepIntervalWeekday = "settings:interval_weekday"
	stepIntervalWeekend = "settings:interval_weekend"
	stepQuietWindow     = "settings:quiet_window"
	stepSnoozeDelay     = "settings:snooze_delay"
	stepTimezone        = "settings:timezone"
	stepNewCategory     = "settings:new_category"
)

// Router wires Telegram updates to handlers and implements the scheduling
// core's outbound interfaces (prompt dispatch, step reminders).
type Router struct {
	bot       *tgbotapi.BotAPI
	log       *zap.Logger
	repo      store.Repo
	steps     steps.Store
	sched     *sched.Scheduler
	timeout   *sched.TimeoutService
	defaultTZ string
}

// NewRouter creates a new Telegram router.
func NewRouter(
	bot *tgbotapi.BotAPI,
	log *zap.Logger,
	repo store.Repo,
	st steps.Store,
	scheduler *sched.Scheduler,
	timeout *sched.TimeoutService,
	defaultTZ string,
) *Router {
	return &Router{
		bot:       bot,
		log:       log,
		repo:      repo,
		steps:     st,
		sched:     scheduler,
		timeout:   timeout,
		defaultTZ: defaultTZ,
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, chatID)
		case strings.HasPrefix(text, "/status"):
			r.handleStatus(ctx, chatID)
		case strings.HasPrefix(text, "/settings"):
			r.handleSettings(ctx, chatID)
		case strings.HasPrefix(text, "/pause"):
			r.handlePause(ctx, chatID)
		case strings.HasPrefix(text, "/resume"):
			r.handleResume(ctx, chatID)
		case strings.HasPrefix(text, "/stop"):
			r.handleStop(ctx, chatID)
		default:
			// Free-form text used by "Custom…" settings flows.
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case strings.HasPrefix(data, "poll:"):
			r.handlePollCallback(ctx, chatID, data, cb.ID)

		case data == "set_wd":
			r.askIntervalPresets(ctx, chatID, cb.ID, "wd")
		case strings.HasPrefix(data, "wd:"):
			r.handleIntervalCallback(ctx, chatID, data, cb.ID, true)

		case data == "set_we":
			r.askIntervalPresets(ctx, chatID, cb.ID, "we")
		case strings.HasPrefix(data, "we:"):
			r.handleIntervalCallback(ctx, chatID, data, cb.ID, false)

		case data == "set_quiet":
			r.askQuietPresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "quiet:"):
			r.handleQuietCallback(ctx, chatID, data, cb.ID)

		case data == "set_snooze":
			r.askSnoozePresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "snooze:"):
			r.handleSnoozeCallback(ctx, chatID, data, cb.ID)

		case data == "set_tz":
			r.askTZPresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "tz:"):
			r.handleTZCallback(ctx, chatID, data, cb.ID)

		case data == "set_cat":
			r.askNewCategory(ctx, chatID, cb.ID)

		case data == "back_to_menu":
			_ = r.answerCallback(cb.ID, "")
			r.handleSettings(ctx, chatID)

		default:
			// Unknown callback — ignore silently.
		}
		return
	}
}

// sendText sends a plain text message, logging delivery failures.
func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// enterStep records a settings dialogue step and arms its timeout chain.
func (r *Router) enterStep(ctx context.Context, chatID int64, token string) {
	if err := r.steps.Enter(ctx, chatID, token, nil); err != nil {
		r.log.Error("enter step failed", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	r.timeout.OnStepEntered(ctx, chatID, token)
}

// completeStep ends the current dialogue step and cancels pending timers.
func (r *Router) completeStep(ctx context.Context, chatID int64) {
	if err := r.steps.Clear(ctx, chatID); err != nil {
		r.log.Error("clear step failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	r.timeout.OnStepCompleted(chatID)
}
