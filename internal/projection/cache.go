package projection

import (
	"context"
	"encoding/json"
	"time"

	platformredis "dealkernel/internal/platform/redis"
	id "dealkernel/pkg/domain"
)

// SnapshotCache keeps the latest "now" projection per deal in Redis. It is a
// derived read-through value: entries carry the ledger sequence they were
// computed at and are only served when that sequence still matches, so the
// cache can lag but never lie. Historical (?at=) queries bypass it entirely.
type SnapshotCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// NewSnapshotCache builds a cache over the given client. Returns nil when
// the client is nil (Redis not configured), which disables caching.
func NewSnapshotCache(client *platformredis.Client, ttl time.Duration) *SnapshotCache {
	if client == nil {
		return nil
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

type cachedSnapshot struct {
	Seq        int64      `json:"seq"`
	Projection Projection `json:"projection"`
}

func cacheKey(dealID id.DealID) string {
	return "dealkernel:snapshot:" + dealID.String()
}

// Get returns the cached projection when its sequence matches wantSeq.
// Cache errors degrade to a miss; the engine then replays in full.
func (c *SnapshotCache) Get(ctx context.Context, dealID id.DealID, wantSeq int64) (*Projection, bool) {
	raw, err := c.client.Get(ctx, cacheKey(dealID)).Bytes()
	if err != nil {
		return nil, false
	}
	var snap cachedSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false
	}
	if snap.Seq != wantSeq {
		return nil, false
	}
	proj := snap.Projection
	return &proj, true
}

// Put stores a freshly replayed projection at its sequence.
func (c *SnapshotCache) Put(ctx context.Context, dealID id.DealID, proj *Projection) {
	raw, err := json.Marshal(cachedSnapshot{Seq: proj.LastSeq, Projection: *proj})
	if err != nil {
		return
	}
	// Best effort: a failed write just means the next read replays.
	_ = c.client.Set(ctx, cacheKey(dealID), raw, c.ttl).Err()
}

// Invalidate drops a deal's snapshot. Called after every append.
func (c *SnapshotCache) Invalidate(ctx context.Context, dealID id.DealID) {
	_ = c.client.Del(ctx, cacheKey(dealID)).Err()
}
