package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/miralabs/mira-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies PRAGMAs, runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine; one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const userColumns = `chat_id, display_name, last_sober_date, morning_time,
	night_time, checked_in_today, sent_morning_on, sent_night_on, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u         domain.User
		checkedIn int
		createdAt int64
	)
	if err := row.Scan(
		&u.ChatID, &u.DisplayName, &u.LastSoberDate, &u.MorningTime,
		&u.NightTime, &checkedIn, &u.SentMorningOn, &u.SentNightOn, &createdAt,
	); err != nil {
		return nil, err
	}
	u.CheckedInToday = checkedIn != 0
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// GetUser returns a user record by chat id, or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpsertUser inserts or fully replaces a user record.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			chat_id, display_name, last_sober_date, morning_time, night_time,
			checked_in_today, sent_morning_on, sent_night_on, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			display_name     = excluded.display_name,
			last_sober_date  = excluded.last_sober_date,
			morning_time     = excluded.morning_time,
			night_time       = excluded.night_time,
			checked_in_today = excluded.checked_in_today,
			sent_morning_on  = excluded.sent_morning_on,
			sent_night_on    = excluded.sent_night_on`,
		u.ChatID, u.DisplayName, u.LastSoberDate, u.MorningTime, u.NightTime,
		boolToInt(u.CheckedInToday), u.SentMorningOn, u.SentNightOn, created,
	)
	return err
}

// ListUsers returns every registered user, ordered by creation time.
func (r *SQLiteRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, chat_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

// SetDisplayName updates only the display name.
func (r *SQLiteRepo) SetDisplayName(ctx context.Context, chatID int64, name string) error {
	return r.updateField(ctx, chatID, `UPDATE users SET display_name = ? WHERE chat_id = ?`, name)
}

// SetLastSoberDate updates only the streak anchor date.
func (r *SQLiteRepo) SetLastSoberDate(ctx context.Context, chatID int64, date string) error {
	return r.updateField(ctx, chatID, `UPDATE users SET last_sober_date = ? WHERE chat_id = ?`, date)
}

func (r *SQLiteRepo) updateField(ctx context.Context, chatID int64, query string, val any) error {
	res, err := r.db.ExecContext(ctx, query, val, chatID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSlotSent stamps the slot with the given local date and raises the
// checked-in flag in one statement, so a crash cannot split the two.
func (r *SQLiteRepo) MarkSlotSent(ctx context.Context, chatID int64, slot domain.Slot, stamp string) error {
	col := "sent_morning_on"
	if slot == domain.SlotNight {
		col = "sent_night_on"
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+col+` = ?, checked_in_today = 1 WHERE chat_id = ?`,
		stamp, chatID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetDailyFlags clears the checked-in flag for all users.
func (r *SQLiteRepo) ResetDailyFlags(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET checked_in_today = 0`)
	return err
}

// AppendRelapse writes one audit row. Rows are never updated or deleted.
func (r *SQLiteRepo) AppendRelapse(ctx context.Context, e *domain.RelapseLogEntry) error {
	if e == nil {
		return errors.New("nil entry")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO relapse_log (id, ts, chat_id, display_name, reason)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.Format(time.RFC3339), e.ChatID, e.DisplayName, e.Reason,
	)
	return err
}

// ListRelapses returns the audit rows for one chat, oldest first.
func (r *SQLiteRepo) ListRelapses(ctx context.Context, chatID int64) ([]domain.RelapseLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts, chat_id, display_name, reason
		FROM relapse_log WHERE chat_id = ? ORDER BY ts ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.RelapseLogEntry
	for rows.Next() {
		var (
			e  domain.RelapseLogEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.ChatID, &e.DisplayName, &e.Reason); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Timestamp = t
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
