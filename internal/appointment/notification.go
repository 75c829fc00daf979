package appointment

import "time"

type NotificationStatus string

const (
	NotificationNone    NotificationStatus = "none"
	NotificationNew     NotificationStatus = "new"
	NotificationUpdated NotificationStatus = "updated"
)

// actionableStatuses are the statuses that make a freshly created
// appointment demand attention from a role. Doctors act on incoming pending
// requests; patients originate their own appointments, so nothing counts as
// "new" for them.
var actionableStatuses = map[Role]map[Status]bool{
	RoleDoctor:  {StatusPending: true},
	RolePatient: {},
}

// meaningfulStatuses are the statuses whose arrival via an update matters to
// a role: a doctor cares when a patient cancels, a patient cares about the
// doctor's verdict.
var meaningfulStatuses = map[Role]map[Status]bool{
	RoleDoctor:  {StatusCancelled: true},
	RolePatient: {StatusConfirmed: true, StatusRejected: true, StatusCancelled: true, StatusCompleted: true},
}

// Notification computes the unseen indicator for a role's appointment list
// against the last-viewed marker. "new" wins over "updated"; a zero lastSeen
// means nothing has ever been seen.
func Notification(role Role, appts []Appointment, lastSeen time.Time) NotificationStatus {
	updated := false

	for _, a := range appts {
		if a.CreatedAt.After(lastSeen) && actionableStatuses[role][a.Status] {
			return NotificationNew
		}
		if a.UpdatedAt.After(lastSeen) && meaningfulStatuses[role][a.Status] {
			updated = true
		}
	}

	if updated {
		return NotificationUpdated
	}
	return NotificationNone
}
