package domain

import (
	"errors"
	"fmt"
	"time"
)

// Interval bounds enforced at the settings-write boundary.
const (
	MinIntervalMin = 10
	MaxIntervalMin = 24 * 60

	MinReminderDelayMin = 10
	MaxReminderDelayMin = 3 * 60
)

// ScheduleConfig holds per-chat polling settings. Owned by the settings
// store; the scheduling core only reads it.
type ScheduleConfig struct {
	ChatID             int64
	Enabled            bool
	TZ                 string
	WeekdayIntervalMin int
	WeekendIntervalMin int
	QuietEnabled       bool
	QuietStartM        int // minutes from midnight, local (0..1439)
	QuietEndM          int // minutes from midnight, local (0..1439)
	ReminderDelayMin   int
	NextFireAt         *time.Time // UTC, nullable
	CreatedAt          time.Time  // UTC
}

// Validate checks the invariants that must hold before a config is written.
// Invalid configs never reach the scheduler.
func (c *ScheduleConfig) Validate() error {
	if c.WeekdayIntervalMin < MinIntervalMin || c.WeekdayIntervalMin > MaxIntervalMin {
		return fmt.Errorf("weekday interval %dm out of range [%dm..%dm]", c.WeekdayIntervalMin, MinIntervalMin, MaxIntervalMin)
	}
	if c.WeekendIntervalMin < MinIntervalMin || c.WeekendIntervalMin > MaxIntervalMin {
		return fmt.Errorf("weekend interval %dm out of range [%dm..%dm]", c.WeekendIntervalMin, MinIntervalMin, MaxIntervalMin)
	}
	if c.ReminderDelayMin < MinReminderDelayMin || c.ReminderDelayMin > MaxReminderDelayMin {
		return fmt.Errorf("reminder delay %dm out of range [%dm..%dm]", c.ReminderDelayMin, MinReminderDelayMin, MaxReminderDelayMin)
	}
	if c.QuietEnabled {
		if c.QuietStartM < 0 || c.QuietStartM > 1439 || c.QuietEndM < 0 || c.QuietEndM > 1439 {
			return errors.New("quiet window bounds out of range")
		}
		if c.QuietStartM == c.QuietEndM {
			return errors.New("quiet window must not cover the whole day")
		}
	}
	if _, err := time.LoadLocation(c.TZ); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Location resolves the user's timezone, falling back to UTC if the stored
// name is no longer loadable.
func (c *ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IntervalAt returns the prompt interval in effect at the given instant:
// the weekend value on local Saturday/Sunday, the weekday value otherwise.
func (c *ScheduleConfig) IntervalAt(t time.Time) time.Duration {
	wd := t.In(c.Location()).Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return time.Duration(c.WeekendIntervalMin) * time.Minute
	}
	return time.Duration(c.WeekdayIntervalMin) * time.Minute
}

// Category is a selectable activity kind. ChatID 0 marks a built-in default
// visible to everyone; otherwise the category belongs to one chat.
type Category struct {
	ID     int64
	ChatID int64
	Title  string
}

// Activity is one recorded answer to a prompt.
type Activity struct {
	ID          int64
	ChatID      int64
	CategoryID  int64 // 0 = no category (sleep, free-form)
	Description string
	StartAt     time.Time // UTC
	EndAt       time.Time // UTC
}

// Duration is the recorded time span.
func (a *Activity) Duration() time.Duration {
	return a.EndAt.Sub(a.StartAt)
}
