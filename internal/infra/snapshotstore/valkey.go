package snapshotstore

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/pkg/util"
)

// ValkeyStore persists snapshots in a Valkey-compatible database. Retention is
// enforced by the server through key expiry.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	now    func() time.Time
}

// NewValkeyStore constructs a store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "walks"
	}
	return &ValkeyStore{client: client, prefix: prefix, now: util.NowUTC}
}

func (s *ValkeyStore) Load(ctx context.Context, date string) (walks.CachedSnapshot, bool, error) {
	cmd := s.client.B().Get().Key(s.snapshotKey(date)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return walks.CachedSnapshot{}, false, nil
		}
		return walks.CachedSnapshot{}, false, err
	}
	env, err := decode([]byte(payload))
	if err != nil {
		return walks.CachedSnapshot{}, false, err
	}
	return env.Snapshot, true, nil
}

func (s *ValkeyStore) Save(ctx context.Context, snapshot walks.CachedSnapshot, retention time.Duration) error {
	payload, err := encode(snapshot, expiry(s.now(), retention))
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.snapshotKey(snapshot.Date)).Value(string(payload))
	var cmd valkey.Completed
	if retention > 0 {
		if retention < time.Second {
			retention = time.Second
		}
		cmd = builder.Ex(retention).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) snapshotKey(date string) string {
	return fmt.Sprintf("%s:snapshot:%s", s.prefix, date)
}

var _ walks.SnapshotStore = (*ValkeyStore)(nil)
