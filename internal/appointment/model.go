package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether r is a role the gateway knows.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Appointment links a patient, a doctor and a slot. Records are never
// deleted upstream; the lifecycle is status transitions only, which is why
// created_at/updated_at are reliable for notification comparisons.
type Appointment struct {
	ID        uuid.UUID `json:"appointment_id"`
	SlotID    uuid.UUID `json:"slot_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
