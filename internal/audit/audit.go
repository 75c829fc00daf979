package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	EventSlotHeld        = "SLOT_HELD"
	EventSlotReleased    = "SLOT_RELEASED"
	EventSlotConfirmed   = "SLOT_CONFIRMED"
	EventSlotConflict    = "SLOT_CONFLICT"
	EventHoldExpired     = "HOLD_EXPIRED"
	EventRefreshRejected = "REFRESH_REJECTED"
)

// EventLog is one gateway-observed booking event.
type EventLog struct {
	ID        int64
	EventType string
	SlotID    *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// Store persists events. The pg implementation is the only real one; tests
// use in-memory fakes.
type Store interface {
	Insert(ctx context.Context, ev EventLog) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Insert(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gateway_events (event_type, slot_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
	return err
}

func (s *PgStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM gateway_events
		WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Recorder is a nil-safe, best-effort front for the store: the gateway runs
// fine without Postgres, and a failed insert never fails the user request.
type Recorder struct {
	store  Store
	logger *logrus.Logger
}

func NewRecorder(store Store, logger *logrus.Logger) *Recorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, eventType string, slotID uuid.UUID, payload map[string]any) {
	if r == nil || r.store == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.WithError(err).WithField("event_type", eventType).Warn("failed to marshal audit payload")
		data = nil
	}

	var sid *uuid.UUID
	if slotID != uuid.Nil {
		sid = &slotID
	}

	ev := EventLog{
		EventType: eventType,
		SlotID:    sid,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := r.store.Insert(ctx, ev); err != nil {
		r.logger.WithError(err).WithField("event_type", eventType).Warn("failed to insert audit event")
	}
}
