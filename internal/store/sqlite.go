package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/bgs2509/activity-tracker-bot-sub000/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// UpsertConfig inserts or updates a chat's schedule settings.
func (r *SQLiteRepo) UpsertConfig(ctx context.Context, c *domain.ScheduleConfig) error {
	if c == nil {
		return errors.New("nil config")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config invariant: %w", err)
	}

	created := time.Now().UTC().Unix()
	if !c.CreatedAt.IsZero() {
		created = c.CreatedAt.UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			chat_id, created_at, enabled, tz,
			weekday_interval_min, weekend_interval_min,
			quiet_enabled, quiet_start_m, quiet_end_m,
			reminder_delay_min, next_fire_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			enabled              = excluded.enabled,
			tz                   = excluded.tz,
			weekday_interval_min = excluded.weekday_interval_min,
			weekend_interval_min = excluded.weekend_interval_min,
			quiet_enabled        = excluded.quiet_enabled,
			quiet_start_m        = excluded.quiet_start_m,
			quiet_end_m          = excluded.quiet_end_m,
			reminder_delay_min   = excluded.reminder_delay_min,
			next_fire_at         = excluded.next_fire_at`,
		c.ChatID, created, boolToInt(c.Enabled), c.TZ,
		c.WeekdayIntervalMin, c.WeekendIntervalMin,
		boolToInt(c.QuietEnabled), c.QuietStartM, c.QuietEndM,
		c.ReminderDelayMin, toNullInt64(c.NextFireAt),
	)
	return err
}

// GetConfig returns a chat's settings or ErrNotFound.
func (r *SQLiteRepo) GetConfig(ctx context.Context, chatID int64) (*domain.ScheduleConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, created_at, enabled, tz,
		       weekday_interval_min, weekend_interval_min,
		       quiet_enabled, quiet_start_m, quiet_end_m,
		       reminder_delay_min, next_fire_at
		FROM users
		WHERE chat_id = ?`,
		chatID,
	)
	c, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanConfig(row rowScanner) (*domain.ScheduleConfig, error) {
	var (
		c          domain.ScheduleConfig
		createdAt  int64
		enabled    int
		quietOn    int
		nextFireNS sql.NullInt64
	)
	if err := row.Scan(
		&c.ChatID, &createdAt, &enabled, &c.TZ,
		&c.WeekdayIntervalMin, &c.WeekendIntervalMin,
		&quietOn, &c.QuietStartM, &c.QuietEndM,
		&c.ReminderDelayMin, &nextFireNS,
	); err != nil {
		return nil, err
	}
	c.Enabled = enabled != 0
	c.QuietEnabled = quietOn != 0
	c.NextFireAt = fromNullInt64(nextFireNS)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &c, nil
}

// SetEnabled toggles the enabled flag for a chat.
func (r *SQLiteRepo) SetEnabled(ctx context.Context, chatID int64, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET enabled = ? WHERE chat_id = ?`,
		boolToInt(enabled), chatID,
	)
	return err
}

// SetNextFireAt records the planned next prompt instant, for /status display
// and for re-arming timers after a restart.
func (r *SQLiteRepo) SetNextFireAt(ctx context.Context, chatID int64, next *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET next_fire_at = ? WHERE chat_id = ?`,
		toNullInt64(next), chatID,
	)
	return err
}

// ListEnabledChats returns chat ids of all users with polling enabled.
func (r *SQLiteRepo) ListEnabledChats(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT chat_id FROM users WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// DeleteChat removes a user's settings, private categories and activities.
func (r *SQLiteRepo) DeleteChat(ctx context.Context, chatID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM activities WHERE chat_id = ?`,
		`DELETE FROM categories WHERE chat_id = ?`,
		`DELETE FROM users WHERE chat_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, chatID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListCategories returns built-in defaults (chat_id 0) plus the chat's own
// categories, defaults first.
func (r *SQLiteRepo) ListCategories(ctx context.Context, chatID int64) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, title
		FROM categories
		WHERE chat_id IN (0, ?)
		ORDER BY chat_id ASC, id ASC`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.ChatID, &c.Title); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// GetCategory returns a category by id or ErrNotFound.
func (r *SQLiteRepo) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, chat_id, title FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.ChatID, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AddCategory creates a chat-private category and returns its id.
func (r *SQLiteRepo) AddCategory(ctx context.Context, chatID int64, title string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, errors.New("empty category title")
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (chat_id, title) VALUES (?, ?)`,
		chatID, title,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordActivity persists one answered prompt. categoryID 0 means no
// category (sleep or free-form description).
func (r *SQLiteRepo) RecordActivity(ctx context.Context, chatID, categoryID int64, description string, start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("activity end %v not after start %v", end, start)
	}
	var cat sql.NullInt64
	if categoryID != 0 {
		cat = sql.NullInt64{Int64: categoryID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activities (chat_id, category_id, description, start_at, end_at)
		VALUES (?, ?, ?, ?, ?)`,
		chatID, cat, description, start.UTC().Unix(), end.UTC().Unix(),
	)
	return err
}

// ListRecentActivities returns up to `limit` most recent activities for a chat.
func (r *SQLiteRepo) ListRecentActivities(ctx context.Context, chatID int64, limit int) ([]domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, category_id, description, start_at, end_at
		FROM activities
		WHERE chat_id = ?
		ORDER BY end_at DESC
		LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Activity
	for rows.Next() {
		var (
			a       domain.Activity
			cat     sql.NullInt64
			startAt int64
			endAt   int64
		)
		if err := rows.Scan(&a.ID, &a.ChatID, &cat, &a.Description, &startAt, &endAt); err != nil {
			return nil, err
		}
		if cat.Valid {
			a.CategoryID = cat.Int64
		}
		a.StartAt = time.Unix(startAt, 0).UTC()
		a.EndAt = time.Unix(endAt, 0).UTC()
		res = append(res, a)
	}
	return res, rows.Err()
}
