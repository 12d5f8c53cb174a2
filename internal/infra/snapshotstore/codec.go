package snapshotstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
)

const envelopeVersion = 1

// envelope is the serialized form shared by every durable backend.
type envelope struct {
	Version   int                  `json:"version"`
	ExpiresAt time.Time            `json:"expiresAt"`
	Snapshot  walks.CachedSnapshot `json:"snapshot"`
}

func encode(snapshot walks.CachedSnapshot, expiresAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(envelope{
		Version:   envelopeVersion,
		ExpiresAt: expiresAt,
		Snapshot:  snapshot,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", snapshot.Date, err)
	}
	return payload, nil
}

func decode(payload []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", walks.ErrCorruptSnapshot, err)
	}
	if env.Version != envelopeVersion {
		return envelope{}, fmt.Errorf("%w: unsupported version %d", walks.ErrCorruptSnapshot, env.Version)
	}
	if env.Snapshot.Date == "" || env.Snapshot.FetchedAt.IsZero() {
		return envelope{}, fmt.Errorf("%w: missing date or fetch time", walks.ErrCorruptSnapshot)
	}
	if env.Snapshot.Records == nil {
		env.Snapshot.Records = []walks.WalkRecord{}
	}
	return env, nil
}

// expiry converts a retention window into an absolute deadline. A
// non-positive retention keeps the entry forever.
func expiry(now time.Time, retention time.Duration) time.Time {
	if retention <= 0 {
		return time.Time{}
	}
	return now.Add(retention)
}

func hasExpired(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt)
}
