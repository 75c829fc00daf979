package slot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carebridge/booking-gateway/internal/appointment"
	"github.com/carebridge/booking-gateway/internal/audit"
	"github.com/carebridge/booking-gateway/internal/backend"
	"github.com/carebridge/booking-gateway/internal/metrics"
)

type backendCaller interface {
	Do(ctx context.Context, method, path string, query url.Values, body any, auth backend.AuthContext) (*backend.Response, error)
}

// Service drives slot operations against the authoritative backend. The
// backend enforces exclusivity; this layer surfaces its rejections as
// ErrConflict / ErrHoldExpired and never retries them, because a repeated
// hold or booking call is not safe without idempotency keys.
type Service struct {
	client  backendCaller
	machine Machine
	audit   *audit.Recorder
	logger  *logrus.Logger
	metrics *metrics.GatewayMetrics
	now     func() time.Time
}

func NewService(client backendCaller, machine Machine, rec *audit.Recorder, logger *logrus.Logger, m *metrics.GatewayMetrics) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		client:  client,
		machine: machine,
		audit:   rec,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// List fetches slots for a doctor, applies the read-time expiry sweep to
// every entry and re-derives held_by_current_user against held_by for the
// viewer. When the caller identity is unknown the backend's flag is kept,
// but a lapsed hold is presented as free either way.
func (s *Service) List(ctx context.Context, auth backend.AuthContext, viewer uuid.UUID, query url.Values) ([]Slot, error) {
	resp, err := s.client.Do(ctx, http.MethodGet, "/patient/view/slots", query, nil, auth)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	if err := resp.Decode(&slots); err != nil {
		return nil, err
	}

	now := s.now()
	for i := range slots {
		if viewer != uuid.Nil {
			slots[i] = View(slots[i], viewer, now)
		} else {
			slots[i] = Normalize(slots[i], now)
		}
	}
	return slots, nil
}

// Hold reserves a free slot for the calling patient.
func (s *Service) Hold(ctx context.Context, auth backend.AuthContext, slotID uuid.UUID) (*Slot, error) {
	held, err := s.mutate(ctx, auth, slotID, "hold")
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.EventSlotHeld, slotID, map[string]any{
		"held_until": held.HeldUntil,
	})
	return held, nil
}

// Release returns a held slot to free. The backend treats releasing an
// already-free slot as a no-op success, and so does this layer.
func (s *Service) Release(ctx context.Context, auth backend.AuthContext, slotID uuid.UUID) (*Slot, error) {
	released, err := s.mutate(ctx, auth, slotID, "release")
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.EventSlotReleased, slotID, nil)
	return released, nil
}

// Confirm turns a live hold into a booking; the backend creates the
// appointment record atomically with the transition.
func (s *Service) Confirm(ctx context.Context, auth backend.AuthContext, slotID uuid.UUID) (*appointment.Appointment, error) {
	path := fmt.Sprintf("/patient/slots/%s/confirm", slotID)
	resp, err := s.client.Do(ctx, http.MethodPost, path, nil, nil, auth)
	if err != nil {
		return nil, s.translate(ctx, "confirm", slotID, err)
	}

	var appt appointment.Appointment
	if err := resp.Decode(&appt); err != nil {
		return nil, err
	}

	s.metrics.ObserveSlotOp("confirm", "success")
	s.audit.Record(ctx, audit.EventSlotConfirmed, slotID, map[string]any{
		"appointment_id": appt.ID.String(),
	})
	return &appt, nil
}

// Block marks a free slot unavailable (doctor-initiated).
func (s *Service) Block(ctx context.Context, auth backend.AuthContext, slotID uuid.UUID) (*Slot, error) {
	return s.mutateDoctor(ctx, auth, slotID, "block")
}

// Unblock returns a blocked slot to free (doctor-initiated).
func (s *Service) Unblock(ctx context.Context, auth backend.AuthContext, slotID uuid.UUID) (*Slot, error) {
	return s.mutateDoctor(ctx, auth, slotID, "unblock")
}

func (s *Service) mutate(ctx context.Context, auth backend.AuthContext, slotID uuid.UUID, op string) (*Slot, error) {
	path := fmt.Sprintf("/patient/slots/%s/%s", slotID, op)
	return s.postSlot(ctx, auth, slotID, op, path)
}

func (s *Service) mutateDoctor(ctx context.Context, auth backend.AuthContext, slotID uuid.UUID, op string) (*Slot, error) {
	path := fmt.Sprintf("/doctor/slots/%s/%s", slotID, op)
	return s.postSlot(ctx, auth, slotID, op, path)
}

func (s *Service) postSlot(ctx context.Context, auth backend.AuthContext, slotID uuid.UUID, op, path string) (*Slot, error) {
	resp, err := s.client.Do(ctx, http.MethodPost, path, nil, nil, auth)
	if err != nil {
		return nil, s.translate(ctx, op, slotID, err)
	}

	var sl Slot
	if err := resp.Decode(&sl); err != nil {
		return nil, err
	}

	s.metrics.ObserveSlotOp(op, "success")
	return &sl, nil
}

// translate maps backend rejections onto the slot taxonomy: 409 is a
// definitive conflict, 410 a lapsed hold. Everything else passes through
// unchanged.
func (s *Service) translate(ctx context.Context, op string, slotID uuid.UUID, err error) error {
	be, ok := backend.AsBackendError(err)
	if !ok {
		s.metrics.ObserveSlotOp(op, "error")
		return err
	}

	switch be.StatusCode {
	case http.StatusConflict:
		s.metrics.ObserveSlotOp(op, "conflict")
		s.audit.Record(ctx, audit.EventSlotConflict, slotID, map[string]any{
			"op":     op,
			"detail": be.Detail,
		})
		return fmt.Errorf("%w: %s", ErrConflict, be.Detail)
	case http.StatusGone:
		s.metrics.ObserveSlotOp(op, "expired")
		s.audit.Record(ctx, audit.EventHoldExpired, slotID, map[string]any{"op": op})
		return fmt.Errorf("%w: %s", ErrHoldExpired, be.Detail)
	default:
		s.metrics.ObserveSlotOp(op, "rejected")
		return err
	}
}
