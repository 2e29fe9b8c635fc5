// Package steps holds per-chat conversation state: which multi-step dialogue
// a chat is currently in, plus opaque step data. Entries expire so abandoned
// dialogues self-clear even if the process dies before its cleanup timer runs.
package steps

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoStep is returned by Current when the chat has no active step.
var ErrNoStep = errors.New("no active step")

// StepTTL bounds how long an abandoned step may survive in the store.
const StepTTL = 24 * time.Hour

// Store is the conversation state store consumed by the scheduling core.
type Store interface {
	// Current returns the chat's active step token and data, or ErrNoStep.
	Current(ctx context.Context, chatID int64) (token string, data []byte, err error)
	// Enter records the chat's current step, replacing any previous one.
	Enter(ctx context.Context, chatID int64, token string, data []byte) error
	// Clear removes the chat's current step. No-op if none.
	Clear(ctx context.Context, chatID int64) error
	Close() error
}

const pollTokenPrefix = "poll:"

// NewPollToken mints a unique token for one prompt round-trip.
func NewPollToken() string {
	return pollTokenPrefix + uuid.NewString()
}

// IsPollToken reports whether a step token belongs to the prompt flow itself,
// as opposed to an unrelated dialogue.
func IsPollToken(token string) bool {
	return strings.HasPrefix(token, pollTokenPrefix)
}
