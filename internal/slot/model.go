package slot

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusFree    Status = "free"
	StatusHeld    Status = "held"
	StatusBooked  Status = "booked"
	StatusBlocked Status = "blocked"
)

// Slot is a doctor's bookable time window as reported by the backend.
// HeldUntil and HeldBy are present only while Status is held.
type Slot struct {
	ID        uuid.UUID  `json:"slot_id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	Date      string     `json:"date"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	Status    Status     `json:"status"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
	HeldBy    *uuid.UUID `json:"held_by,omitempty"`

	// HeldByCurrentUser is derived for the current viewer, never stored.
	// It is what permits completing a booking from the client side.
	HeldByCurrentUser bool `json:"held_by_current_user"`
}

// HoldLapsed reports whether a hold on the slot has outlived held_until.
func (s Slot) HoldLapsed(now time.Time) bool {
	return s.Status == StatusHeld && s.HeldUntil != nil && s.HeldUntil.Before(now)
}
