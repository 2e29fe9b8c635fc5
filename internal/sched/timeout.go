package sched

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/steps"
)

// DefaultReminderDelay is used when the chat's settings cannot be read at
// scheduling time.
const DefaultReminderDelay = 15 * time.Minute

// StepNotifier sends the "still there?" nudge for a stalled dialogue.
type StepNotifier interface {
	SendStepReminder(chatID int64) error
}

// Rescheduler re-arms a chat's recurring prompt, either at the normal
// interval or, when settings are unreadable, at a settings-independent
// delay. Satisfied by *Scheduler.
type Rescheduler interface {
	SchedulePrompt(ctx context.Context, chatID int64) error
	SchedulePromptIn(ctx context.Context, chatID int64, d time.Duration)
}

// TimeoutService watches every multi-step dialogue the application enters.
// Per step: Active → (reminder fires) → Reminded → (cleanup fires) → Cleared,
// with a shortcut to Completed whenever the user advances or cancels the
// step normally.
//
// Concurrency is handled by token re-checks, not locks: every timer callback
// verifies the stored step token still matches the one captured when the
// timer was armed, so stale callbacks cancel themselves.
type TimeoutService struct {
	jobs       *JobStore
	steps      steps.Store
	settings   Settings
	notifier   StepNotifier
	dispatcher Dispatcher
	resched    Rescheduler
	log        *zap.Logger
	now        func() time.Time
}

func NewTimeoutService(jobs *JobStore, st steps.Store, settings Settings, log *zap.Logger) *TimeoutService {
	return &TimeoutService{
		jobs:     jobs,
		steps:    st,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Bind attaches the outbound collaborators. Called once at startup.
func (t *TimeoutService) Bind(n StepNotifier, d Dispatcher, r Rescheduler) {
	t.notifier = n
	t.dispatcher = d
	t.resched = r
}

// OnStepEntered arms the reminder timer for a freshly entered step. The
// cleanup timer is chained from the reminder, never armed independently, so
// reminder always precedes cleanup.
func (t *TimeoutService) OnStepEntered(ctx context.Context, chatID int64, token string) {
	delay := t.reminderDelay(ctx, chatID)
	t.jobs.Cancel(chatID, KindStepCleanup)
	t.jobs.Schedule(chatID, KindStepReminder, t.now().Add(delay), func() {
		t.remind(chatID, token, delay)
	})
}

// OnStepCompleted cancels both pending timers for the chat. Cancelling an
// already-consumed timer is a no-op.
func (t *TimeoutService) OnStepCompleted(chatID int64) {
	t.jobs.Cancel(chatID, KindStepReminder)
	t.jobs.Cancel(chatID, KindStepCleanup)
}

// remind fires when a step has been sitting untouched for the delay. If the
// step is still the one the timer was armed for, nudge the user and chain
// the cleanup timer; otherwise the timer is stale and does nothing.
func (t *TimeoutService) remind(chatID int64, token string, delay time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	cur, _, err := t.steps.Current(ctx, chatID)
	if err != nil || cur != token {
		return // stale timer
	}

	// A failed nudge stays silent; the cleanup timer supersedes it.
	if err := t.notifier.SendStepReminder(chatID); err != nil {
		t.log.Warn("step reminder send failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}

	t.jobs.Schedule(chatID, KindStepCleanup, t.now().Add(delay), func() {
		t.cleanup(chatID, token)
	})
}

// cleanup fires a full delay after the reminder. If the step still matches,
// it is cleared silently; an abandoned prompt additionally gets a fresh
// prompt right away instead of waiting out the next cycle.
func (t *TimeoutService) cleanup(chatID int64, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	cur, _, err := t.steps.Current(ctx, chatID)
	if err != nil || cur != token {
		return // stale timer
	}

	if err := t.steps.Clear(ctx, chatID); err != nil {
		t.log.Error("stale step clear failed", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}
	t.log.Info("stale step cleared", zap.Int64("chat_id", chatID), zap.String("token", token))

	if steps.IsPollToken(token) {
		if err := t.dispatcher.SendPrompt(ctx, chatID); err != nil {
			t.log.Error("re-prompt after cleanup failed", zap.Error(err), zap.Int64("chat_id", chatID))
			// Leave the chat covered by the normal cycle instead.
			if err := t.resched.SchedulePrompt(ctx, chatID); err != nil {
				t.log.Error("reschedule after failed re-prompt failed", zap.Error(err), zap.Int64("chat_id", chatID))
				t.resched.SchedulePromptIn(ctx, chatID, RetryDelay)
			}
		}
	}
}

// CancelAll drops every pending timer for a chat. Used on account deletion.
func (t *TimeoutService) CancelAll(chatID int64) {
	t.jobs.Cancel(chatID, KindStepReminder)
	t.jobs.Cancel(chatID, KindStepCleanup)
}

func (t *TimeoutService) reminderDelay(ctx context.Context, chatID int64) time.Duration {
	cfg, err := t.settings.GetConfig(ctx, chatID)
	if err != nil {
		return DefaultReminderDelay
	}
	return time.Duration(cfg.ReminderDelayMin) * time.Minute
}
