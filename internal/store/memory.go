package store

import (
	"context"
	"sync"

	"github.com/miralabs/mira-bot/internal/domain"
)

// Memory is an in-memory Repo used by tests and local development. It mirrors
// the SQLite semantics, including ErrNotFound on single-field updates against
// missing rows.
type Memory struct {
	mu    sync.Mutex
	users map[int64]domain.User
	order []int64
	log   []domain.RelapseLogEntry

	// FailWrites, when set, makes every mutating call return the given error.
	// Tests use it to exercise store-unavailable fallbacks.
	FailWrites error
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{users: make(map[int64]domain.User)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) GetUser(_ context.Context, chatID int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (m *Memory) UpsertUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if _, ok := m.users[u.ChatID]; !ok {
		m.order = append(m.order, u.ChatID)
	}
	m.users[u.ChatID] = *u
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]domain.User, 0, len(m.order))
	for _, id := range m.order {
		res = append(res, m.users[id])
	}
	return res, nil
}

func (m *Memory) SetDisplayName(_ context.Context, chatID int64, name string) error {
	return m.mutate(chatID, func(u *domain.User) { u.DisplayName = name })
}

func (m *Memory) SetLastSoberDate(_ context.Context, chatID int64, date string) error {
	return m.mutate(chatID, func(u *domain.User) { u.LastSoberDate = date })
}

func (m *Memory) MarkSlotSent(_ context.Context, chatID int64, slot domain.Slot, stamp string) error {
	return m.mutate(chatID, func(u *domain.User) {
		if slot == domain.SlotNight {
			u.SentNightOn = stamp
		} else {
			u.SentMorningOn = stamp
		}
		u.CheckedInToday = true
	})
}

func (m *Memory) ResetDailyFlags(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for id, u := range m.users {
		u.CheckedInToday = false
		m.users[id] = u
	}
	return nil
}

func (m *Memory) AppendRelapse(_ context.Context, e *domain.RelapseLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.log = append(m.log, *e)
	return nil
}

func (m *Memory) ListRelapses(_ context.Context, chatID int64) ([]domain.RelapseLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []domain.RelapseLogEntry
	for _, e := range m.log {
		if e.ChatID == chatID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *Memory) mutate(chatID int64, fn func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	u, ok := m.users[chatID]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	m.users[chatID] = u
	return nil
}
