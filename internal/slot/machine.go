package slot

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrConflict means another actor holds or booked the slot. It is
	// definitive and must never be retried silently.
	ErrConflict = errors.New("slot held or booked by another actor")
	// ErrHoldExpired means the hold lapsed before confirmation; the caller
	// must restart from hold.
	ErrHoldExpired = errors.New("slot hold expired")
	// ErrNotBlocked guards the doctor unblock transition.
	ErrNotBlocked = errors.New("slot is not blocked")
)

// Machine evaluates slot lifecycle transitions:
//
//	free → held → {booked, free (expired)}
//	free ↔ blocked (doctor-initiated)
//
// booked → free happens only through appointment cancellation upstream and
// is not a direct slot operation. The backend store stays authoritative for
// enforcement; the machine governs what this layer presents and which calls
// it allows to proceed.
type Machine struct {
	HoldDuration time.Duration
}

func NewMachine(holdDuration time.Duration) Machine {
	return Machine{HoldDuration: holdDuration}
}

// Normalize applies the read-time expiry sweep: a slot read as held whose
// held_until is in the past is presented as free, even if the authoritative
// store has not persisted the expiry yet.
func Normalize(s Slot, now time.Time) Slot {
	if s.HoldLapsed(now) {
		s.Status = StatusFree
		s.HeldUntil = nil
		s.HeldBy = nil
		s.HeldByCurrentUser = false
	}
	return s
}

// View normalizes a slot and derives HeldByCurrentUser for the viewer.
func View(s Slot, viewer uuid.UUID, now time.Time) Slot {
	s = Normalize(s, now)
	s.HeldByCurrentUser = s.Status == StatusHeld && s.HeldBy != nil && *s.HeldBy == viewer
	return s
}

// Hold transitions free → held for actor, stamping held_until.
func (m Machine) Hold(s *Slot, actor uuid.UUID, now time.Time) error {
	*s = Normalize(*s, now)
	if s.Status != StatusFree {
		return ErrConflict
	}
	until := now.Add(m.HoldDuration)
	s.Status = StatusHeld
	s.HeldUntil = &until
	s.HeldBy = &actor
	return nil
}

// Release returns a held slot to free. Valid only for the holder or once the
// hold has lapsed; releasing an already-free slot is a no-op success.
func (m Machine) Release(s *Slot, actor uuid.UUID, now time.Time) error {
	*s = Normalize(*s, now)
	switch s.Status {
	case StatusFree:
		return nil
	case StatusHeld:
		if s.HeldBy != nil && *s.HeldBy != actor {
			return ErrConflict
		}
		s.Status = StatusFree
		s.HeldUntil = nil
		s.HeldBy = nil
		return nil
	default:
		return ErrConflict
	}
}

// Confirm transitions held → booked for the holder while the hold is alive.
// A lapsed hold yields ErrHoldExpired and the caller restarts from Hold.
func (m Machine) Confirm(s *Slot, actor uuid.UUID, now time.Time) error {
	if s.HoldLapsed(now) {
		*s = Normalize(*s, now)
		return ErrHoldExpired
	}
	if s.Status != StatusHeld || s.HeldBy == nil || *s.HeldBy != actor {
		return ErrConflict
	}
	s.Status = StatusBooked
	s.HeldUntil = nil
	return nil
}

// Block transitions free → blocked (doctor-initiated).
func (m Machine) Block(s *Slot, now time.Time) error {
	*s = Normalize(*s, now)
	if s.Status != StatusFree {
		return ErrConflict
	}
	s.Status = StatusBlocked
	return nil
}

// Unblock transitions blocked → free (doctor-initiated).
func (m Machine) Unblock(s *Slot) error {
	if s.Status != StatusBlocked {
		return ErrNotBlocked
	}
	s.Status = StatusFree
	return nil
}
