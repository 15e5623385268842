//go:build integration

package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dealkernel/internal/domain"
	platformredis "dealkernel/internal/platform/redis"
	"dealkernel/internal/projection"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/testutil/containers"
)

type SnapshotCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *projection.SnapshotCache
}

func TestSnapshotCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SnapshotCacheSuite))
}

func (s *SnapshotCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	client := &platformredis.Client{Client: s.redis.Client}
	s.cache = projection.NewSnapshotCache(client, time.Minute)
}

func (s *SnapshotCacheSuite) TearDownSuite() {
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(context.Background())
}

func (s *SnapshotCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func snapshot(dealID id.DealID, seq int64) *projection.Projection {
	return &projection.Projection{
		DealID:         dealID,
		At:             time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		LifecycleState: domain.StateUnderReview,
		Deterministic:  true,
		EventsApplied:  int(seq),
		LastSeq:        seq,
	}
}

func (s *SnapshotCacheSuite) TestPutThenGetAtMatchingSeq() {
	ctx := context.Background()
	dealID := id.NewDealID()

	s.cache.Put(ctx, dealID, snapshot(dealID, 4))

	got, ok := s.cache.Get(ctx, dealID, 4)
	s.Require().True(ok)
	s.Equal(domain.StateUnderReview, got.LifecycleState)
	s.Equal(int64(4), got.LastSeq)
	s.True(got.Deterministic)
}

func (s *SnapshotCacheSuite) TestStaleSeqIsAMiss() {
	ctx := context.Background()
	dealID := id.NewDealID()

	s.cache.Put(ctx, dealID, snapshot(dealID, 4))

	// The ledger moved on; the cached value must not be served.
	_, ok := s.cache.Get(ctx, dealID, 5)
	s.False(ok)
}

func (s *SnapshotCacheSuite) TestInvalidateDropsTheEntry() {
	ctx := context.Background()
	dealID := id.NewDealID()

	s.cache.Put(ctx, dealID, snapshot(dealID, 2))
	s.cache.Invalidate(ctx, dealID)

	_, ok := s.cache.Get(ctx, dealID, 2)
	s.False(ok)
}

func (s *SnapshotCacheSuite) TestDealsDoNotShareEntries() {
	ctx := context.Background()
	first := id.NewDealID()
	second := id.NewDealID()

	s.cache.Put(ctx, first, snapshot(first, 1))

	_, ok := s.cache.Get(ctx, second, 1)
	s.False(ok)

	got, ok := s.cache.Get(ctx, first, 1)
	s.Require().True(ok)
	s.Equal(first, got.DealID)
}
