package sched

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/domain"
)

// PostponeDelay is how long a prompt firing is deferred when the chat is
// mid-dialogue. A system constant, independent of user settings.
const PostponeDelay = 10 * time.Minute

// RetryDelay re-arms a firing that could not complete for infrastructure
// reasons (settings store unreadable). It deliberately needs no settings, so
// an outage never leaves a chat without a pending prompt job.
const RetryDelay = 10 * time.Minute

// fireTimeout bounds one firing callback's store reads and the send.
const fireTimeout = 30 * time.Second

// Settings is the read side of the settings store the core consumes.
type Settings interface {
	GetConfig(ctx context.Context, chatID int64) (*domain.ScheduleConfig, error)
	SetNextFireAt(ctx context.Context, chatID int64, next *time.Time) error
}

// Dispatcher sends one prompt round-trip; after an outcome it re-arms the
// scheduler itself, so a successful dispatch ends this firing.
type Dispatcher interface {
	SendPrompt(ctx context.Context, chatID int64) error
}

// Scheduler owns the recurring prompt timer of every chat.
type Scheduler struct {
	jobs       *JobStore
	settings   Settings
	resolver   Resolver
	dispatcher Dispatcher
	log        *zap.Logger
	now        func() time.Time
}

func NewScheduler(jobs *JobStore, settings Settings, resolver Resolver, log *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		settings: settings,
		resolver: resolver,
		log:      log,
		now:      time.Now,
	}
}

// Bind attaches the prompt dispatcher. Called once at startup, before any
// timer can fire; the dispatcher is constructed after the scheduler because
// it re-arms the scheduler on outcomes.
func (s *Scheduler) Bind(d Dispatcher) {
	s.dispatcher = d
}

// SchedulePrompt (re)arms the chat's recurring prompt from fresh settings.
// Idempotent: repeated calls leave exactly one pending prompt job. Disabled
// chats get their pending job cancelled instead.
func (s *Scheduler) SchedulePrompt(ctx context.Context, chatID int64) error {
	cfg, err := s.settings.GetConfig(ctx, chatID)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		s.CancelPrompt(chatID)
		return nil
	}
	s.armPrompt(ctx, chatID, domain.NextFireTime(cfg, s.now().UTC()))
	return nil
}

// SchedulePromptIn arms a one-shot prompt at now+d, bypassing the interval
// policy. Used for "remind me later" and for failure retries; it reads no
// settings, so it works during a settings-store outage.
func (s *Scheduler) SchedulePromptIn(ctx context.Context, chatID int64, d time.Duration) {
	s.armPrompt(ctx, chatID, s.now().UTC().Add(d))
}

// CancelPrompt removes the chat's pending prompt job, if any.
func (s *Scheduler) CancelPrompt(chatID int64) {
	s.jobs.Cancel(chatID, KindPrompt)
}

// armPrompt registers the prompt job and best-effort persists its instant so
// /status shows the real next poll even after postpones and snoozes.
func (s *Scheduler) armPrompt(ctx context.Context, chatID int64, at time.Time) {
	s.jobs.Schedule(chatID, KindPrompt, at, func() { s.fire(chatID) })
	if err := s.settings.SetNextFireAt(ctx, chatID, &at); err != nil {
		s.log.Warn("persist next fire time failed", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

// fire runs one prompt firing: gate on the resolver, then hand off to the
// dispatcher. On postponement the job re-arms at now+PostponeDelay without
// touching settings. On dispatch failure the job re-arms at the normal
// interval — a missed prompt self-heals on the next cycle.
func (s *Scheduler) fire(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	postpone, err := s.resolver.ShouldPostpone(ctx, chatID)
	if err != nil {
		// A state-store read failure is not worth dropping the prompt over.
		s.log.Warn("conflict check failed, dispatching anyway", zap.Error(err), zap.Int64("chat_id", chatID))
		postpone = false
	}
	if postpone {
		s.log.Debug("prompt postponed", zap.Int64("chat_id", chatID))
		s.armPrompt(ctx, chatID, s.now().UTC().Add(PostponeDelay))
		return
	}

	// The dispatcher reschedules after an outcome, so the next interval
	// counts from the actual send time.
	if err := s.dispatcher.SendPrompt(ctx, chatID); err != nil {
		s.log.Error("prompt dispatch failed", zap.Error(err), zap.Int64("chat_id", chatID))
		s.recoverPrompt(ctx, chatID)
	}
}

// recoverPrompt re-arms after a failed firing: at the normal interval when
// settings are readable, at the fixed retry delay otherwise. The fired job
// was already consumed, so returning without arming would leave the chat
// uncovered until restart.
func (s *Scheduler) recoverPrompt(ctx context.Context, chatID int64) {
	if err := s.SchedulePrompt(ctx, chatID); err != nil {
		s.log.Error("reschedule after failed dispatch failed", zap.Error(err), zap.Int64("chat_id", chatID))
		s.SchedulePromptIn(ctx, chatID, RetryDelay)
	}
}
