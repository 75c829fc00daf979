package slot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	patientA = uuid.New()
	patientB = uuid.New()
)

func freeSlot() Slot {
	return Slot{
		ID:       uuid.New(),
		DoctorID: uuid.New(),
		Date:     "2026-09-01",
		Status:   StatusFree,
	}
}

func TestHoldSucceedsOnlyWhenFree(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Hold(&s, patientA, now))
	require.Equal(t, StatusHeld, s.Status)
	require.NotNil(t, s.HeldUntil)
	require.Equal(t, now.Add(5*time.Minute), *s.HeldUntil)
	require.Equal(t, patientA, *s.HeldBy)

	// Patient B attempts a hold before expiry.
	err := m.Hold(&s, patientB, now.Add(time.Minute))
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, patientA, *s.HeldBy, "holder must be unchanged after a rejected hold")
}

func TestHoldAfterLapseTreatsSlotAsFree(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Hold(&s, patientA, now))

	// The previous hold lapsed, so B's hold wins without any explicit release.
	require.NoError(t, m.Hold(&s, patientB, now.Add(6*time.Minute)))
	require.Equal(t, patientB, *s.HeldBy)
}

func TestConfirmByHolderBeforeExpiry(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Hold(&s, patientA, now))
	require.NoError(t, m.Confirm(&s, patientA, now.Add(time.Minute)))
	require.Equal(t, StatusBooked, s.Status)
	require.Nil(t, s.HeldUntil)
}

func TestConfirmAfterExpiryFails(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Hold(&s, patientA, now))

	err := m.Confirm(&s, patientA, now.Add(6*time.Minute))
	require.ErrorIs(t, err, ErrHoldExpired)
	require.Equal(t, StatusFree, s.Status, "lapsed hold is presented as free")
}

func TestConfirmByNonHolderFails(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Hold(&s, patientA, now))
	require.ErrorIs(t, m.Confirm(&s, patientB, now.Add(time.Minute)), ErrConflict)

	s2 := freeSlot()
	require.ErrorIs(t, m.Confirm(&s2, patientA, now), ErrConflict, "confirming a free slot is a conflict")
}

func TestReleaseIsIdempotentOnFree(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Release(&s, patientA, now))
	require.Equal(t, StatusFree, s.Status)
}

func TestReleaseByHolderAndByStranger(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Hold(&s, patientA, now))
	require.ErrorIs(t, m.Release(&s, patientB, now.Add(time.Second)), ErrConflict)

	require.NoError(t, m.Release(&s, patientA, now.Add(time.Second)))
	require.Equal(t, StatusFree, s.Status)
	require.Nil(t, s.HeldBy)
}

func TestReleaseAfterLapseByAnyone(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Hold(&s, patientA, now))
	require.NoError(t, m.Release(&s, patientB, now.Add(6*time.Minute)))
	require.Equal(t, StatusFree, s.Status)
}

func TestBlockUnblock(t *testing.T) {
	m := NewMachine(5 * time.Minute)
	now := time.Now()

	s := freeSlot()
	require.NoError(t, m.Block(&s, now))
	require.Equal(t, StatusBlocked, s.Status)

	require.ErrorIs(t, m.Hold(&s, patientA, now), ErrConflict)

	require.NoError(t, m.Unblock(&s))
	require.Equal(t, StatusFree, s.Status)

	require.ErrorIs(t, m.Unblock(&s), ErrNotBlocked)
}

func TestNormalizeSweepsLapsedHolds(t *testing.T) {
	now := time.Now()
	until := now.Add(-time.Second)
	s := Slot{Status: StatusHeld, HeldUntil: &until, HeldBy: &patientA, HeldByCurrentUser: true}

	out := Normalize(s, now)
	require.Equal(t, StatusFree, out.Status)
	require.Nil(t, out.HeldUntil)
	require.Nil(t, out.HeldBy)
	require.False(t, out.HeldByCurrentUser)

	// A live hold passes through untouched.
	live := now.Add(time.Minute)
	s2 := Slot{Status: StatusHeld, HeldUntil: &live, HeldBy: &patientA}
	require.Equal(t, s2, Normalize(s2, now))
}

func TestViewDerivesHeldByCurrentUser(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Minute)
	s := Slot{Status: StatusHeld, HeldUntil: &until, HeldBy: &patientA}

	require.True(t, View(s, patientA, now).HeldByCurrentUser)
	require.False(t, View(s, patientB, now).HeldByCurrentUser)

	lapsed := now.Add(-time.Minute)
	s.HeldUntil = &lapsed
	require.False(t, View(s, patientA, now).HeldByCurrentUser, "no holder on a lapsed hold")
}
