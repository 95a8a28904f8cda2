// Package scheduler drives the two daily reminder batches. It sleeps until
// the next deterministic event (a due slot or local midnight), recomputed on
// every wake, so it self-corrects after a missed wake-up instead of matching
// wall-clock minutes.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miralabs/mira-bot/internal/content"
	"github.com/miralabs/mira-bot/internal/domain"
	"github.com/miralabs/mira-bot/internal/store"
	"github.com/miralabs/mira-bot/internal/streak"
)

const (
	morningFmt = "Good morning! 🌞 Your current streak: %d days."
	nightFmt   = "Good evening! 🌙 Your current streak: %d days."
)

// Sender delivers an ordered batch to one chat and returns per-message
// outcomes. telegram.Dispatcher implements it.
type Sender interface {
	Send(ctx context.Context, chatID int64, messages []string) []error
}

// Scheduler evaluates which users are due a morning or night batch and
// triggers the sender for each, at most once per slot per local day.
type Scheduler struct {
	repo    store.Repo
	engine  *streak.Engine
	content *content.Provider
	sender  Sender
	log     *zap.Logger
	loc     *time.Location

	now      func() time.Time
	errPause time.Duration
	lastDate string
}

// New creates a scheduler anchored to the given time zone.
func New(repo store.Repo, engine *streak.Engine, provider *content.Provider, sender Sender, log *zap.Logger, loc *time.Location) *Scheduler {
	return &Scheduler{
		repo:     repo,
		engine:   engine,
		content:  provider,
		sender:   sender,
		log:      log,
		loc:      loc,
		now:      time.Now,
		errPause: 30 * time.Second,
	}
}

func (s *Scheduler) localNow() time.Time {
	return s.now().In(s.loc)
}

// Run loops until ctx is canceled. An in-flight sweep finishes before the
// loop returns; no partial-tick state survives beyond the user records.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", zap.String("tz", s.loc.String()))
	s.lastDate = domain.DateStamp(s.localNow())

	for {
		now := s.localNow()
		users, err := s.sweep(ctx, now)

		var sleep time.Duration
		if err != nil {
			s.log.Error("sweep failed", zap.Error(err))
			sleep = s.errPause
		} else {
			wake := s.nextWake(now, users)
			// Wake just after the target so the due check is unambiguous.
			sleep = wake.Sub(now) + time.Second
			s.log.Debug("scheduler sleeping", zap.Time("until", wake))
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopping")
			return
		case <-timer.C:
		}
	}
}

// sweep performs one scheduling cycle: roll the day over if local midnight
// passed, then evaluate every user for both slots. One user's failure never
// skips the rest. The evaluated user list is returned for wake computation.
func (s *Scheduler) sweep(ctx context.Context, now time.Time) ([]domain.User, error) {
	today := domain.DateStamp(now)
	if today != s.lastDate {
		if err := s.engine.ResetDailyFlags(ctx); err != nil {
			return nil, fmt.Errorf("midnight reset: %w", err)
		}
		s.log.Info("daily flags reset", zap.String("date", today))
		s.lastDate = today
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	for i := range users {
		s.evaluateSlot(ctx, now, &users[i], domain.SlotMorning)
		s.evaluateSlot(ctx, now, &users[i], domain.SlotNight)
	}
	return users, nil
}

// evaluateSlot dispatches one slot batch if it is due and unsent today.
// The marker is stamped before dispatch: a crash mid-send must not produce
// a duplicate later the same day, and a transport failure is the sender's
// problem, not grounds to retry the slot.
func (s *Scheduler) evaluateSlot(ctx context.Context, now time.Time, u *domain.User, slot domain.Slot) {
	mins, err := domain.ParseClock(u.SlotTime(slot))
	if err != nil {
		s.log.Warn("invalid slot time",
			zap.Int64("chat_id", u.ChatID),
			zap.String("slot", string(slot)),
			zap.String("value", u.SlotTime(slot)),
		)
		return
	}

	today := domain.DateStamp(now)
	if u.SentOn(slot) == today {
		return
	}
	if now.Before(domain.SlotTimeOn(now, mins)) {
		return
	}

	if err := s.engine.MarkSlotSent(ctx, u.ChatID, slot); err != nil {
		// Store unavailable: skip this cycle rather than risk a duplicate.
		s.log.Error("mark slot failed, skipping dispatch",
			zap.Int64("chat_id", u.ChatID),
			zap.String("slot", string(slot)),
			zap.Error(err),
		)
		return
	}

	failed := 0
	for _, err := range s.sender.Send(ctx, u.ChatID, s.batchFor(u, slot)) {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		s.log.Warn("batch partially delivered",
			zap.Int64("chat_id", u.ChatID),
			zap.String("slot", string(slot)),
			zap.Int("failed", failed),
		)
	} else {
		s.log.Info("batch delivered",
			zap.Int64("chat_id", u.ChatID),
			zap.String("slot", string(slot)),
		)
	}
}

// batchFor composes the slot's messages in their fixed order. Random picks
// are independent per call.
func (s *Scheduler) batchFor(u *domain.User, slot domain.Slot) []string {
	days := s.engine.StreakDays(u)
	if slot == domain.SlotNight {
		return []string{
			fmt.Sprintf(nightFmt, days),
			"Encouragement: " + s.content.Celebration(),
		}
	}
	return []string{
		fmt.Sprintf(morningFmt, days),
		"Motivation: " + s.content.Motivate(),
		"Reward idea: " + s.content.Reward(),
	}
}

// nextWake returns the earliest upcoming event: any user's next slot
// occurrence strictly after now, or the next local midnight.
func (s *Scheduler) nextWake(now time.Time, users []domain.User) time.Time {
	next := domain.NextMidnight(now)
	for i := range users {
		for _, slot := range []domain.Slot{domain.SlotMorning, domain.SlotNight} {
			mins, err := domain.ParseClock(users[i].SlotTime(slot))
			if err != nil {
				continue
			}
			c := domain.SlotTimeOn(now, mins)
			if !c.After(now) {
				c = domain.SlotTimeOn(now.AddDate(0, 0, 1), mins)
			}
			if c.Before(next) {
				next = c
			}
		}
	}
	return next
}
