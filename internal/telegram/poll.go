package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/domain"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/sched"
	"github.com/bgs2509/activity-tracker-bot-sub000/internal/steps"
)

// pollPayload is the state of one prompt round-trip, stored alongside the
// poll step token. Capturing the interval at send time keeps the recorded
// duration honest even if the user edits settings mid-poll.
type pollPayload struct {
	SentAt      time.Time `json:"sent_at"`
	IntervalMin int       `json:"interval_min"`
}

// newPollPayload captures the interval in effect at send time.
func newPollPayload(cfg *domain.ScheduleConfig, now time.Time) pollPayload {
	return pollPayload{
		SentAt:      now,
		IntervalMin: int(cfg.IntervalAt(now) / time.Minute),
	}
}

// decodePollPayload reports ok=false when the stored payload cannot yield an
// honest activity window.
func decodePollPayload(raw []byte) (pollPayload, bool) {
	var p pollPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.SentAt.IsZero() || p.IntervalMin <= 0 {
		return pollPayload{}, false
	}
	return p, true
}

// activityWindow is the recorded [start, end): end is the send time and the
// duration is the interval captured when the prompt went out.
func (p pollPayload) activityWindow() (start, end time.Time) {
	end = p.SentAt
	return end.Add(-time.Duration(p.IntervalMin) * time.Minute), end
}

// SendPrompt sends the "what were you doing?" poll and registers its step.
// Implements sched.Dispatcher: called by the scheduler on a firing and by the
// timeout service after cleaning up an abandoned poll.
func (r *Router) SendPrompt(ctx context.Context, chatID int64) error {
	cfg, err := r.repo.GetConfig(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	cats, err := r.repo.ListCategories(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	payload, err := json.Marshal(newPollPayload(cfg, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("marshal poll payload: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, promptText)
	msg.ReplyMarkup = pollKeyboard(cats)
	if _, err := r.bot.Send(msg); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}

	token := steps.NewPollToken()
	if err := r.steps.Enter(ctx, chatID, token, payload); err != nil {
		// The prompt is out; the user can still be cleaned up via step TTL.
		r.log.Error("store poll step failed", zap.Error(err), zap.Int64("chat_id", chatID))
		return nil
	}
	r.timeout.OnStepEntered(ctx, chatID, token)
	return nil
}

// SendStepReminder nudges a chat that left a dialogue hanging.
// Implements sched.StepNotifier.
func (r *Router) SendStepReminder(chatID int64) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, stepReminderText))
	return err
}

// handlePollCallback interprets the user's answer to a poll. Outcomes:
// category pick or "I slept" record an activity, "skip" records nothing,
// "later" re-presents the poll after the snooze delay. All outcomes end the
// poll step and re-arm the recurring schedule.
func (r *Router) handlePollCallback(ctx context.Context, chatID int64, data, cbID string) {
	token, raw, err := r.steps.Current(ctx, chatID)
	if err != nil || !steps.IsPollToken(token) {
		_ = r.answerCallback(cbID, "This poll has expired.")
		return
	}
	_ = r.answerCallback(cbID, "")

	p, ok := decodePollPayload(raw)
	if !ok {
		// Damaged payload: fall back to "answered just now" with the chat's
		// current interval. With settings unreadable too there is no honest
		// duration to record, so treat the answer as a skip.
		cfg, err := r.repo.GetConfig(ctx, chatID)
		if err != nil {
			r.log.Warn("poll payload and settings both unreadable", zap.Error(err), zap.Int64("chat_id", chatID))
			r.completeStep(ctx, chatID)
			r.rearm(ctx, chatID)
			r.sendText(chatID, skippedText)
			return
		}
		p = newPollPayload(cfg, time.Now().UTC())
	}

	switch {
	case data == "poll:skip":
		r.completeStep(ctx, chatID)
		r.rearm(ctx, chatID)
		r.sendText(chatID, skippedText)

	case data == "poll:later":
		delay := sched.DefaultReminderDelay
		if cfg, err := r.repo.GetConfig(ctx, chatID); err == nil {
			delay = time.Duration(cfg.ReminderDelayMin) * time.Minute
		}
		r.completeStep(ctx, chatID)
		r.sched.SchedulePromptIn(ctx, chatID, delay)
		r.sendText(chatID, fmt.Sprintf(snoozedTextFmt, int(delay.Minutes())))

	case data == "poll:sleep":
		r.recordOutcome(ctx, chatID, 0, "Sleep", p)

	case strings.HasPrefix(data, "poll:cat:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, "poll:cat:"), 10, 64)
		if err != nil {
			return
		}
		cat, err := r.repo.GetCategory(ctx, id)
		if err != nil {
			r.log.Warn("unknown category picked", zap.Error(err), zap.Int64("chat_id", chatID), zap.Int64("category_id", id))
			r.sendText(chatID, unknownCategoryText)
			return
		}
		r.recordOutcome(ctx, chatID, cat.ID, cat.Title, p)
	}
}

// recordOutcome persists the activity with duration equal to the interval in
// effect at send time, then ends the poll step and re-arms the schedule.
func (r *Router) recordOutcome(ctx context.Context, chatID, categoryID int64, description string, p pollPayload) {
	start, end := p.activityWindow()

	if err := r.repo.RecordActivity(ctx, chatID, categoryID, description, start, end); err != nil {
		r.log.Error("record activity failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sendText(chatID, recordFailedText)
		// Still end the poll and keep the cadence going.
	} else {
		r.sendText(chatID, fmt.Sprintf(recordedTextFmt, description, p.IntervalMin))
	}
	r.completeStep(ctx, chatID)
	r.rearm(ctx, chatID)
}

// rearm schedules the next recurring prompt, counting from now. When
// settings are unreadable it arms a fixed retry instead, so an outage at
// answer time never leaves the chat without a pending prompt job.
func (r *Router) rearm(ctx context.Context, chatID int64) {
	if err := r.sched.SchedulePrompt(ctx, chatID); err != nil {
		r.log.Error("reschedule after poll outcome failed", zap.Error(err), zap.Int64("chat_id", chatID))
		r.sched.SchedulePromptIn(ctx, chatID, sched.RetryDelay)
	}
}
