package steps

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_EnterCurrentClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, _, err := s.Current(ctx, 1); !errors.Is(err, ErrNoStep) {
		t.Fatalf("empty store: got %v", err)
	}

	if err := s.Enter(ctx, 1, "settings:tz", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("enter: %v", err)
	}
	tok, data, err := s.Current(ctx, 1)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if tok != "settings:tz" || string(data) != `{"x":1}` {
		t.Fatalf("got %q %q", tok, data)
	}

	// Entering again replaces the step.
	if err := s.Enter(ctx, 1, "settings:interval", nil); err != nil {
		t.Fatalf("re-enter: %v", err)
	}
	tok, _, _ = s.Current(ctx, 1)
	if tok != "settings:interval" {
		t.Fatalf("want replaced token, got %q", tok)
	}

	if err := s.Clear(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, _, err := s.Current(ctx, 1); !errors.Is(err, ErrNoStep) {
		t.Fatalf("after clear: got %v", err)
	}
	// Clearing again is a no-op.
	if err := s.Clear(ctx, 1); err != nil {
		t.Fatalf("double clear: %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()
	s.now = func() time.Time { return base }

	if err := s.Enter(ctx, 7, "settings:quiet", nil); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if _, _, err := s.Current(ctx, 7); err != nil {
		t.Fatalf("before expiry: %v", err)
	}

	s.now = func() time.Time { return base.Add(StepTTL + time.Second) }
	if _, _, err := s.Current(ctx, 7); !errors.Is(err, ErrNoStep) {
		t.Fatalf("after expiry: got %v", err)
	}
}

func TestPollTokens(t *testing.T) {
	a, b := NewPollToken(), NewPollToken()
	if a == b {
		t.Fatal("poll tokens must be unique")
	}
	if !IsPollToken(a) {
		t.Fatalf("%q not recognized as poll token", a)
	}
	if IsPollToken("settings:tz") {
		t.Fatal("settings token recognized as poll token")
	}
}
