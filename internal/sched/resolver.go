package sched

import (
	"context"
	"errors"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/steps"
)

// Resolver decides at firing time whether a prompt may be dispatched now.
type Resolver interface {
	ShouldPostpone(ctx context.Context, chatID int64) (bool, error)
}

// StepResolver postpones a prompt while the chat is inside an unrelated
// multi-step dialogue. The prompt flow's own step never blocks itself.
//
// The check and the subsequent dispatch are deliberately not atomic: a user
// starting a dialogue a moment after the check gets a prompt mid-dialogue,
// which is an annoyance, not a correctness problem.
type StepResolver struct {
	steps steps.Store
}

func NewStepResolver(s steps.Store) *StepResolver {
	return &StepResolver{steps: s}
}

func (r *StepResolver) ShouldPostpone(ctx context.Context, chatID int64) (bool, error) {
	token, _, err := r.steps.Current(ctx, chatID)
	if errors.Is(err, steps.ErrNoStep) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !steps.IsPollToken(token), nil
}
