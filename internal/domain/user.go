package domain

import "time"

// DateLayout is the storage format for calendar dates (local to the bot timezone).
const DateLayout = "2006-01-02"

// ClockLayout is the storage format for times of day.
const ClockLayout = "15:04"

// Slot names a daily delivery window.
type Slot string

const (
	SlotMorning Slot = "morning"
	SlotNight   Slot = "night"
)

// User is one registered chat identity with its streak and slot state.
// LastSoberDate is the sole determinant of streak length; it is mutated
// only by a relapse reset.
type User struct {
	ChatID         int64
	DisplayName    string
	LastSoberDate  string // YYYY-MM-DD, local date
	MorningTime    string // HH:MM, local
	NightTime      string // HH:MM, local
	CheckedInToday bool   // true once any batch was delivered today; cleared at local midnight
	SentMorningOn  string // local date stamp of the last morning batch, "" if never
	SentNightOn    string // local date stamp of the last night batch, "" if never
	CreatedAt      time.Time
}

// SentOn returns the date stamp of the last delivery for the given slot.
func (u *User) SentOn(slot Slot) string {
	if slot == SlotNight {
		return u.SentNightOn
	}
	return u.SentMorningOn
}

// SlotTime returns the configured time of day (HH:MM) for the given slot.
func (u *User) SlotTime(slot Slot) string {
	if slot == SlotNight {
		return u.NightTime
	}
	return u.MorningTime
}

// RelapseLogEntry is one append-only audit row. It is pure history and is
// never read back by the streak engine.
type RelapseLogEntry struct {
	ID          string
	Timestamp   time.Time
	ChatID      int64
	DisplayName string
	Reason      string
}
