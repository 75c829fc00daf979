package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	events  []EventLog
	failing bool
}

func (m *memStore) Insert(ctx context.Context, ev EventLog) error {
	if m.failing {
		return errors.New("insert failed")
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func TestRecorderWithoutStoreIsNoOp(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), EventSlotHeld, uuid.New(), nil)

	r = NewRecorder(nil, nil)
	r.Record(context.Background(), EventSlotHeld, uuid.New(), nil)
}

func TestRecorderPersistsEvent(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, nil)

	slotID := uuid.New()
	r.Record(context.Background(), EventSlotConfirmed, slotID, map[string]any{"op": "confirm"})

	require.Len(t, store.events, 1)
	ev := store.events[0]
	require.Equal(t, EventSlotConfirmed, ev.EventType)
	require.Equal(t, slotID, *ev.SlotID)
	require.False(t, ev.CreatedAt.IsZero())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	require.Equal(t, "confirm", payload["op"])
}

func TestRecorderDropsNilSlotID(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, nil)

	r.Record(context.Background(), EventRefreshRejected, uuid.Nil, nil)

	require.Len(t, store.events, 1)
	require.Nil(t, store.events[0].SlotID)
}

func TestRecorderSwallowsStoreErrors(t *testing.T) {
	r := NewRecorder(&memStore{failing: true}, nil)
	// A failed audit insert must never fail the user request.
	r.Record(context.Background(), EventSlotHeld, uuid.New(), nil)
}
