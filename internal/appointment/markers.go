package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	markerTTL = 30 * 24 * time.Hour
	// arrivalTTL bounds how long a markSeen is considered "the same arrival":
	// re-computations while the viewer sits on the list must not move the
	// marker again.
	arrivalTTL = 30 * time.Second
)

// MarkerStore keeps per-session last-viewed markers in Redis, one per
// (role, list) pair. Keeping them server-side means multiple tabs of the
// same session observe one marker instead of racing their own copies.
type MarkerStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewMarkerStore(client *redis.Client, logger *logrus.Logger) *MarkerStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MarkerStore{client: client, logger: logger}
}

func markerKey(sessionKey string, role Role, listKey string) string {
	return fmt.Sprintf("notif:last_seen:%s:%s:%s", sessionKey, role, listKey)
}

func arrivalKey(sessionKey string, role Role, listKey string) string {
	return fmt.Sprintf("notif:arrival:%s:%s:%s", sessionKey, role, listKey)
}

// LastSeen returns the marker for a (role, list) pair, zero when none exists.
func (s *MarkerStore) LastSeen(ctx context.Context, sessionKey string, role Role, listKey string) (time.Time, error) {
	raw, err := s.client.Get(ctx, markerKey(sessionKey, role, listKey)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last seen marker: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last seen marker: %w", err)
	}
	return t, nil
}

// MarkSeen moves last_seen to now for a (role, list) pair. The SET NX
// arrival guard makes the side effect fire once per arrival at the view:
// repeated calls inside the arrival window report moved=false and leave the
// marker alone.
func (s *MarkerStore) MarkSeen(ctx context.Context, sessionKey string, role Role, listKey string, now time.Time) (moved bool, err error) {
	ok, err := s.client.SetNX(ctx, arrivalKey(sessionKey, role, listKey), "1", arrivalTTL).Result()
	if err != nil {
		return false, fmt.Errorf("set arrival guard: %w", err)
	}
	if !ok {
		return false, nil
	}

	err = s.client.Set(ctx, markerKey(sessionKey, role, listKey), now.UTC().Format(time.RFC3339Nano), markerTTL).Err()
	if err != nil {
		return false, fmt.Errorf("set last seen marker: %w", err)
	}
	return true, nil
}
