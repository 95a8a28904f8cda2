// Package streak owns every mutation of user records: registration, relapse
// resets and the scheduler's delivery markers. Routing all writers through
// one engine lets a per-chat lock serialize a relapse report arriving in the
// same minute a daily batch is evaluated.
package streak

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/miralabs/mira-bot/internal/domain"
	"github.com/miralabs/mira-bot/internal/store"
)

const lockShards = 64

// Engine computes streaks and performs all user-record writes.
type Engine struct {
	repo store.Repo
	log  *zap.Logger
	loc  *time.Location

	defaultMorning string
	defaultNight   string

	now func() time.Time

	locks [lockShards]sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source. Tests use it to pin dates.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// New creates an engine anchored to the given time zone. morning and night
// are the HH:MM defaults applied to newly registered users.
func New(repo store.Repo, log *zap.Logger, loc *time.Location, morning, night string, opts ...Option) *Engine {
	e := &Engine{
		repo:           repo,
		log:            log,
		loc:            loc,
		defaultMorning: morning,
		defaultNight:   night,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lock(chatID int64) *sync.Mutex {
	return &e.locks[uint64(chatID)%lockShards]
}

// Now returns the current time in the engine's zone.
func (e *Engine) Now() time.Time {
	return e.now().In(e.loc)
}

// Today returns the current local date stamp.
func (e *Engine) Today() string {
	return domain.DateStamp(e.Now())
}

// StreakDays returns the user's streak in whole local days, never negative.
func (e *Engine) StreakDays(u *domain.User) int {
	return domain.StreakDays(u.LastSoberDate, e.Now())
}

// StreakFor reads the user and returns the streak. store.ErrNotFound means
// the chat has no record yet.
func (e *Engine) StreakFor(ctx context.Context, chatID int64) (int, error) {
	u, err := e.repo.GetUser(ctx, chatID)
	if err != nil {
		return 0, err
	}
	return e.StreakDays(u), nil
}

// RegisterOrTouch creates the user on first sight with today's date as the
// streak anchor. On later calls it only refreshes the display name.
func (e *Engine) RegisterOrTouch(ctx context.Context, chatID int64, displayName string) (*domain.User, error) {
	mu := e.lock(chatID)
	mu.Lock()
	defer mu.Unlock()
	return e.ensureUser(ctx, chatID, displayName)
}

func (e *Engine) ensureUser(ctx context.Context, chatID int64, displayName string) (*domain.User, error) {
	u, err := e.repo.GetUser(ctx, chatID)
	if err == nil {
		if displayName != "" && displayName != u.DisplayName {
			if err := e.repo.SetDisplayName(ctx, chatID, displayName); err != nil {
				e.log.Warn("refresh display name failed", zap.Int64("chat_id", chatID), zap.Error(err))
			} else {
				u.DisplayName = displayName
			}
		}
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	u = &domain.User{
		ChatID:        chatID,
		DisplayName:   displayName,
		LastSoberDate: e.Today(),
		MorningTime:   e.defaultMorning,
		NightTime:     e.defaultNight,
		CreatedAt:     e.now().UTC(),
	}
	if err := e.repo.UpsertUser(ctx, u); err != nil {
		return nil, err
	}
	e.log.Info("registered user", zap.Int64("chat_id", chatID))
	return u, nil
}

// RecordRelapse appends an audit entry and resets the streak anchor to today.
// The append happens first: a failed reset after a successful append only
// duplicates the reset attempt on retry, it never drops the audit trail.
func (e *Engine) RecordRelapse(ctx context.Context, chatID int64, displayName, reason string) error {
	mu := e.lock(chatID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := e.ensureUser(ctx, chatID, displayName); err != nil {
		return err
	}

	entry := &domain.RelapseLogEntry{
		ID:          uuid.NewString(),
		Timestamp:   e.Now(),
		ChatID:      chatID,
		DisplayName: displayName,
		Reason:      reason,
	}
	if err := e.repo.AppendRelapse(ctx, entry); err != nil {
		return err
	}

	today := e.Today()
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = e.repo.SetLastSoberDate(ctx, chatID, today); err == nil {
			e.log.Info("streak reset",
				zap.Int64("chat_id", chatID),
				zap.String("date", today),
			)
			return nil
		}
	}
	return err
}

// MarkSlotSent stamps the slot with today's date before a batch is dispatched.
func (e *Engine) MarkSlotSent(ctx context.Context, chatID int64, slot domain.Slot) error {
	mu := e.lock(chatID)
	mu.Lock()
	defer mu.Unlock()
	return e.repo.MarkSlotSent(ctx, chatID, slot, e.Today())
}

// ResetDailyFlags clears the per-day flags at local midnight.
func (e *Engine) ResetDailyFlags(ctx context.Context) error {
	return e.repo.ResetDailyFlags(ctx)
}
