package store

import (
	"context"
	"errors"
	"time"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for schedule configs, categories and
// recorded activities.
type Repo interface {
	UpsertConfig(ctx context.Context, c *domain.ScheduleConfig) error
	GetConfig(ctx context.Context, chatID int64) (*domain.ScheduleConfig, error)
	SetEnabled(ctx context.Context, chatID int64, enabled bool) error
	SetNextFireAt(ctx context.Context, chatID int64, next *time.Time) error
	ListEnabledChats(ctx context.Context) ([]int64, error)
	DeleteChat(ctx context.Context, chatID int64) error

	ListCategories(ctx context.Context, chatID int64) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	AddCategory(ctx context.Context, chatID int64, title string) (int64, error)

	RecordActivity(ctx context.Context, chatID, categoryID int64, description string, start, end time.Time) error
	ListRecentActivities(ctx context.Context, chatID int64, limit int) ([]domain.Activity, error)

	Close() error
}
