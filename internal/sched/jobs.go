// Package sched is the scheduling core: per-chat prompt timers, firing-time
// conflict resolution, and the reminder/cleanup chain for abandoned dialogues.
package sched

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobKind distinguishes the timer slots a chat may hold. A chat has at most
// one job per kind at any time.
type JobKind string

const (
	KindPrompt       JobKind = "prompt"
	KindStepReminder JobKind = "step_reminder"
	KindStepCleanup  JobKind = "step_cleanup"
)

type jobKey struct {
	chatID int64
	kind   JobKind
}

type job struct {
	timer  *time.Timer
	fireAt time.Time
}

// JobStore is an in-memory registry of pending one-shot jobs keyed by
// (chat, kind). Schedule replaces, never moves: an existing job for the same
// key is cancelled and a fresh timer created. The host process owns the
// store's lifecycle and drains it on shutdown via Close.
//
// A cancel racing an already-firing callback is absorbed by the callers'
// token re-checks, so no firing/cancelled handshake is needed here.
type JobStore struct {
	mu     sync.Mutex
	jobs   map[jobKey]*job
	closed bool
	log    *zap.Logger
}

func NewJobStore(log *zap.Logger) *JobStore {
	return &JobStore{
		jobs: make(map[jobKey]*job),
		log:  log,
	}
}

// Schedule registers fn to run at the given instant, replacing any pending
// job with the same key. Instants in the past fire immediately.
func (s *JobStore) Schedule(chatID int64, kind JobKind, at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	key := jobKey{chatID: chatID, kind: kind}
	if old, ok := s.jobs[key]; ok {
		old.timer.Stop()
	}

	j := &job{fireAt: at}
	j.timer = time.AfterFunc(time.Until(at), func() {
		s.consume(key, j)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("job panic",
					zap.Int64("chat_id", chatID),
					zap.String("kind", string(kind)),
					zap.Any("panic", r),
				)
			}
		}()
		fn()
	})
	s.jobs[key] = j
}

// consume removes a fired job from the registry, unless it was already
// replaced by a newer one for the same key.
func (s *JobStore) consume(key jobKey, j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.jobs[key]; ok && cur == j {
		delete(s.jobs, key)
	}
}

// Cancel removes the chat's job of the given kind. No-op if absent or
// already fired.
func (s *JobStore) Cancel(chatID int64, kind JobKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey{chatID: chatID, kind: kind}
	if j, ok := s.jobs[key]; ok {
		j.timer.Stop()
		delete(s.jobs, key)
	}
}

// CancelAll removes every pending job for a chat.
func (s *JobStore) CancelAll(chatID int64) {
	for _, kind := range []JobKind{KindPrompt, KindStepReminder, KindStepCleanup} {
		s.Cancel(chatID, kind)
	}
}

// FireAt returns the pending job's instant for (chat, kind), if any.
func (s *JobStore) FireAt(chatID int64, kind JobKind) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobKey{chatID: chatID, kind: kind}]; ok {
		return j.fireAt, true
	}
	return time.Time{}, false
}

// Close stops all pending timers. Further Schedule calls are ignored.
func (s *JobStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for key, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, key)
	}
}
