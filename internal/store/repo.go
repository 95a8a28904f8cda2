package store

import (
	"context"
	"errors"

	"github.com/miralabs/mira-bot/internal/domain"
)

// ErrNotFound is returned when no user row exists for a chat id.
var ErrNotFound = errors.New("user not found")

// Repo defines storage operations for user records and the append-only
// relapse audit log. It carries no business logic; streak and scheduling
// decisions live above it.
type Repo interface {
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	UpsertUser(ctx context.Context, u *domain.User) error
	ListUsers(ctx context.Context) ([]domain.User, error)

	SetDisplayName(ctx context.Context, chatID int64, name string) error
	SetLastSoberDate(ctx context.Context, chatID int64, date string) error

	// MarkSlotSent stamps the given slot with the local date and raises the
	// checked-in flag in the same write.
	MarkSlotSent(ctx context.Context, chatID int64, slot domain.Slot, stamp string) error
	// ResetDailyFlags clears every user's checked-in flag at local midnight.
	ResetDailyFlags(ctx context.Context) error

	AppendRelapse(ctx context.Context, e *domain.RelapseLogEntry) error
	ListRelapses(ctx context.Context, chatID int64) ([]domain.RelapseLogEntry, error)

	Close() error
}
