package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/steps"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeNotifier) SendStepReminder(int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResched struct {
	mu        sync.Mutex
	err       error
	normal    int
	fallbacks []time.Duration
}

func (f *fakeResched) SchedulePrompt(context.Context, int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.normal++
	return f.err
}

func (f *fakeResched) SchedulePromptIn(_ context.Context, _ int64, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks = append(f.fallbacks, d)
}

func newTestTimeout(t *testing.T) (*TimeoutService, *JobStore, *steps.MemoryStore, *fakeNotifier, *fakeDispatcher) {
	t.Helper()
	jobs := NewJobStore(zap.NewNop())
	t.Cleanup(jobs.Close)
	st := steps.NewMemoryStore()
	n := &fakeNotifier{}
	d := &fakeDispatcher{}

	svc := NewTimeoutService(jobs, st, &fakeSettings{cfg: testConfig()}, zap.NewNop())
	svc.Bind(n, d, NewScheduler(jobs, &fakeSettings{cfg: testConfig()}, &fakeResolver{}, zap.NewNop()))
	return svc, jobs, st, n, d
}

func TestOnStepEntered_ArmsReminderOnly(t *testing.T) {
	svc, jobs, st, _, _ := newTestTimeout(t)
	ctx := context.Background()

	if err := st.Enter(ctx, 1, "settings:tz", nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	svc.OnStepEntered(ctx, 1, "settings:tz")

	if _, ok := jobs.FireAt(1, KindStepReminder); !ok {
		t.Fatal("reminder not armed")
	}
	if _, ok := jobs.FireAt(1, KindStepCleanup); ok {
		t.Fatal("cleanup armed before reminder fired")
	}
}

func TestRemind_MatchingTokenNudgesAndChainsCleanup(t *testing.T) {
	svc, jobs, st, n, _ := newTestTimeout(t)
	ctx := context.Background()

	if err := st.Enter(ctx, 1, "settings:tz", nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	svc.remind(1, "settings:tz", 15*time.Minute)

	if n.count() != 1 {
		t.Fatalf("want 1 nudge, got %d", n.count())
	}
	if _, ok := jobs.FireAt(1, KindStepCleanup); !ok {
		t.Fatal("cleanup not chained after reminder")
	}
}

func TestRemind_StaleTokenDoesNothing(t *testing.T) {
	svc, jobs, st, n, _ := newTestTimeout(t)
	ctx := context.Background()

	// User moved on to a different step after the timer was armed.
	if err := st.Enter(ctx, 1, "settings:interval", nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	svc.remind(1, "settings:tz", 15*time.Minute)

	if n.count() != 0 {
		t.Fatal("stale reminder nudged the user")
	}
	if _, ok := jobs.FireAt(1, KindStepCleanup); ok {
		t.Fatal("stale reminder chained a cleanup")
	}
}

func TestCleanup_ClearsStepSilently(t *testing.T) {
	svc, _, st, _, d := newTestTimeout(t)
	ctx := context.Background()

	if err := st.Enter(ctx, 1, "settings:tz", nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	svc.cleanup(1, "settings:tz")

	if _, _, err := st.Current(ctx, 1); !errors.Is(err, steps.ErrNoStep) {
		t.Fatalf("step not cleared: %v", err)
	}
	if d.count() != 0 {
		t.Fatal("non-poll cleanup sent a prompt")
	}
}

func TestCleanup_AbandonedPollRepromptsImmediately(t *testing.T) {
	svc, _, st, _, d := newTestTimeout(t)
	ctx := context.Background()

	token := steps.NewPollToken()
	if err := st.Enter(ctx, 1, token, nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	svc.cleanup(1, token)

	if _, _, err := st.Current(ctx, 1); !errors.Is(err, steps.ErrNoStep) {
		t.Fatalf("poll step not cleared: %v", err)
	}
	if d.count() != 1 {
		t.Fatalf("want immediate re-prompt, got %d dispatches", d.count())
	}
}

func TestCleanup_FailedRepromptFallsBackToRetry(t *testing.T) {
	// Abandoned prompt, the immediate re-prompt fails, and settings are
	// unreadable so the normal reschedule fails too. The chat must still
	// end up with a settings-independent retry armed.
	jobs := NewJobStore(zap.NewNop())
	t.Cleanup(jobs.Close)
	st := steps.NewMemoryStore()
	d := &fakeDispatcher{err: errors.New("send failed")}
	r := &fakeResched{err: errors.New("settings store down")}

	svc := NewTimeoutService(jobs, st, &fakeSettings{cfg: testConfig()}, zap.NewNop())
	svc.Bind(&fakeNotifier{}, d, r)

	ctx := context.Background()
	token := steps.NewPollToken()
	if err := st.Enter(ctx, 1, token, nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	svc.cleanup(1, token)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.normal != 1 {
		t.Fatalf("want 1 normal reschedule attempt, got %d", r.normal)
	}
	if len(r.fallbacks) != 1 || r.fallbacks[0] != RetryDelay {
		t.Fatalf("want one %v fallback, got %v", RetryDelay, r.fallbacks)
	}
}

func TestCleanup_StaleTokenKeepsCurrentStep(t *testing.T) {
	svc, _, st, _, d := newTestTimeout(t)
	ctx := context.Background()

	if err := st.Enter(ctx, 1, "settings:interval", nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	svc.cleanup(1, "settings:tz")

	tok, _, err := st.Current(ctx, 1)
	if err != nil || tok != "settings:interval" {
		t.Fatalf("current step disturbed: %q %v", tok, err)
	}
	if d.count() != 0 {
		t.Fatal("stale cleanup dispatched a prompt")
	}
}

func TestOnStepCompleted_LeavesZeroTimers(t *testing.T) {
	svc, jobs, st, _, _ := newTestTimeout(t)
	ctx := context.Background()

	if err := st.Enter(ctx, 1, "settings:tz", nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	svc.OnStepEntered(ctx, 1, "settings:tz")
	// Reminder already fired and chained the cleanup.
	svc.remind(1, "settings:tz", 15*time.Minute)

	svc.OnStepCompleted(1)

	if _, ok := jobs.FireAt(1, KindStepReminder); ok {
		t.Fatal("reminder timer survived completion")
	}
	if _, ok := jobs.FireAt(1, KindStepCleanup); ok {
		t.Fatal("cleanup timer survived completion")
	}
}
