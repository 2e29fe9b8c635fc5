package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/domain"
)

type fakeSettings struct {
	mu       sync.Mutex
	cfg      *domain.ScheduleConfig
	err      error
	nextFire *time.Time
}

func (f *fakeSettings) GetConfig(context.Context, int64) (*domain.ScheduleConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := *f.cfg
	return &c, nil
}

func (f *fakeSettings) SetNextFireAt(_ context.Context, _ int64, next *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFire = next
	return nil
}

type fakeResolver struct {
	postpone bool
	err      error
}

func (f *fakeResolver) ShouldPostpone(context.Context, int64) (bool, error) {
	return f.postpone, f.err
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (f *fakeDispatcher) SendPrompt(_ context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, chatID)
	return f.err
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// testConfig uses equal weekday/weekend intervals so expectations don't
// depend on which day the tests run. Weekday selection itself is covered by
// the domain tests.
func testConfig() *domain.ScheduleConfig {
	return &domain.ScheduleConfig{
		ChatID:             1,
		Enabled:            true,
		TZ:                 "UTC",
		WeekdayIntervalMin: 60,
		WeekendIntervalMin: 60,
		ReminderDelayMin:   15,
	}
}

func newTestScheduler(t *testing.T, settings Settings, resolver Resolver, d Dispatcher) (*Scheduler, *JobStore, time.Time) {
	t.Helper()
	jobs := NewJobStore(zap.NewNop())
	t.Cleanup(jobs.Close)

	s := NewScheduler(jobs, settings, resolver, zap.NewNop())
	s.Bind(d)
	// Frozen at the current instant: computed fire times stay in the real
	// future, so armed timers never go off during the test.
	now := time.Now().UTC()
	s.now = func() time.Time { return now }
	return s, jobs, now
}

func TestSchedulePrompt_IsIdempotent(t *testing.T) {
	settings := &fakeSettings{cfg: testConfig()}
	s, jobs, now := newTestScheduler(t, settings, &fakeResolver{}, &fakeDispatcher{})

	ctx := context.Background()
	if err := s.SchedulePrompt(ctx, 1); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.SchedulePrompt(ctx, 1); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	at, ok := jobs.FireAt(1, KindPrompt)
	if !ok {
		t.Fatal("no prompt job registered")
	}
	want := now.Add(60 * time.Minute)
	if !at.Equal(want) {
		t.Fatalf("fire at %v, want %v", at, want)
	}
	if settings.nextFire == nil || !settings.nextFire.Equal(want) {
		t.Fatalf("persisted next fire %v, want %v", settings.nextFire, want)
	}
}

func TestSchedulePrompt_DisabledCancels(t *testing.T) {
	cfg := testConfig()
	settings := &fakeSettings{cfg: cfg}
	s, jobs, _ := newTestScheduler(t, settings, &fakeResolver{}, &fakeDispatcher{})

	ctx := context.Background()
	if err := s.SchedulePrompt(ctx, 1); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	settings.mu.Lock()
	cfg.Enabled = false
	settings.mu.Unlock()

	if err := s.SchedulePrompt(ctx, 1); err != nil {
		t.Fatalf("schedule disabled: %v", err)
	}
	if _, ok := jobs.FireAt(1, KindPrompt); ok {
		t.Fatal("disabled chat still has a prompt job")
	}
}

func TestFire_PostponeReArmsWithoutDispatch(t *testing.T) {
	d := &fakeDispatcher{}
	settings := &fakeSettings{cfg: testConfig()}
	s, jobs, now := newTestScheduler(t, settings, &fakeResolver{postpone: true}, d)

	s.fire(1)

	if d.count() != 0 {
		t.Fatal("dispatched despite postpone")
	}
	at, ok := jobs.FireAt(1, KindPrompt)
	if !ok {
		t.Fatal("postponed job not re-armed")
	}
	want := now.Add(PostponeDelay)
	if !at.Equal(want) {
		t.Fatalf("postponed to %v, want %v", at, want)
	}
	// The postponed instant must also land in the store, or /status would
	// keep showing the original fire time.
	if settings.nextFire == nil || !settings.nextFire.Equal(want) {
		t.Fatalf("persisted next fire %v, want %v", settings.nextFire, want)
	}
}

func TestSchedulePromptIn_PersistsNextFire(t *testing.T) {
	settings := &fakeSettings{cfg: testConfig()}
	s, jobs, now := newTestScheduler(t, settings, &fakeResolver{}, &fakeDispatcher{})

	s.SchedulePromptIn(context.Background(), 1, 25*time.Minute)

	want := now.Add(25 * time.Minute)
	at, ok := jobs.FireAt(1, KindPrompt)
	if !ok || !at.Equal(want) {
		t.Fatalf("armed at %v (ok=%v), want %v", at, ok, want)
	}
	if settings.nextFire == nil || !settings.nextFire.Equal(want) {
		t.Fatalf("persisted next fire %v, want %v", settings.nextFire, want)
	}
}

func TestFire_ProceedHandsOffWithoutRearming(t *testing.T) {
	d := &fakeDispatcher{}
	s, jobs, _ := newTestScheduler(t, &fakeSettings{cfg: testConfig()}, &fakeResolver{}, d)

	s.fire(1)

	if d.count() != 1 {
		t.Fatalf("want 1 dispatch, got %d", d.count())
	}
	// The dispatcher re-arms after an outcome; the scheduler must not.
	if _, ok := jobs.FireAt(1, KindPrompt); ok {
		t.Fatal("scheduler re-armed after successful hand-off")
	}
}

func TestFire_DispatchFailureReschedulesNormalInterval(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("channel unavailable")}
	s, jobs, now := newTestScheduler(t, &fakeSettings{cfg: testConfig()}, &fakeResolver{}, d)

	s.fire(1)

	at, ok := jobs.FireAt(1, KindPrompt)
	if !ok {
		t.Fatal("failed dispatch left chat uncovered")
	}
	if want := now.Add(60 * time.Minute); !at.Equal(want) {
		t.Fatalf("rescheduled to %v, want normal interval %v", at, want)
	}
}

func TestFire_ResolverErrorDispatchesAnyway(t *testing.T) {
	d := &fakeDispatcher{}
	s, _, _ := newTestScheduler(t, &fakeSettings{cfg: testConfig()},
		&fakeResolver{err: errors.New("state store down")}, d)

	s.fire(1)

	if d.count() != 1 {
		t.Fatalf("want dispatch despite resolver error, got %d", d.count())
	}
}

func TestFire_SettingsOutageStillReArms(t *testing.T) {
	// Dispatch fails and settings are unreadable. The interval-based
	// reschedule cannot work, but the chat must not be left without a
	// pending job until restart: the fallback arms a fixed retry.
	settings := &fakeSettings{cfg: testConfig()}
	d := &fakeDispatcher{err: errors.New("send failed")}
	s, jobs, now := newTestScheduler(t, settings, &fakeResolver{}, d)

	settings.mu.Lock()
	settings.err = errors.New("settings store down")
	settings.mu.Unlock()

	s.fire(1)

	at, ok := jobs.FireAt(1, KindPrompt)
	if !ok {
		t.Fatal("settings outage left chat without a pending prompt job")
	}
	if want := now.Add(RetryDelay); !at.Equal(want) {
		t.Fatalf("retry armed at %v, want %v", at, want)
	}
}
