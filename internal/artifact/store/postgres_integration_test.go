//go:build integration

package store_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dealkernel/internal/artifact/models"
	"dealkernel/internal/artifact/store"
	dealmodels "dealkernel/internal/deal/models"
	dealstore "dealkernel/internal/deal/store"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/platform/sentinel"
	"dealkernel/pkg/testutil/containers"
)

type PostgresArtifactSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	deals    *dealstore.Postgres
}

func TestPostgresArtifactSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresArtifactSuite))
}

func (s *PostgresArtifactSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.deals = dealstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresArtifactSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *PostgresArtifactSuite) SetupTest() {
	err := s.postgres.Truncate(context.Background(), "artifact_links", "artifacts", "deals")
	s.Require().NoError(err)
}

func newArtifact(content []byte) *models.Artifact {
	sum := sha256.Sum256(content)
	return &models.Artifact{
		ID:         id.NewArtifactID(),
		SHA256Hex:  hex.EncodeToString(sum[:]),
		Size:       int64(len(content)),
		MimeType:   "application/octet-stream",
		UploaderID: id.NewActorID(),
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
}

func (s *PostgresArtifactSuite) TestPutRoundTrip() {
	ctx := context.Background()
	content := []byte("executed purchase agreement")

	stored, err := s.store.Put(ctx, newArtifact(content))
	s.Require().NoError(err)

	found, err := s.store.Find(ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal(stored.SHA256Hex, found.SHA256Hex)
	s.Equal(content, found.Content)
}

func (s *PostgresArtifactSuite) TestConcurrentPutsDedupeOnHash() {
	ctx := context.Background()
	content := []byte("same bytes uploaded by many clients at once")
	const uploaders = 20

	var wg sync.WaitGroup
	results := make([]*models.Artifact, uploaders)
	wg.Add(uploaders)
	for i := 0; i < uploaders; i++ {
		go func(idx int) {
			defer wg.Done()
			stored, err := s.store.Put(ctx, newArtifact(content))
			s.NoError(err)
			results[idx] = stored
		}(i)
	}
	wg.Wait()

	// Every racer must land on the same row; the unique hash constraint is
	// the arbiter.
	first := results[0]
	s.Require().NotNil(first)
	for _, stored := range results[1:] {
		s.Require().NotNil(stored)
		s.Equal(first.ID, stored.ID)
	}

	var count int
	err := s.postgres.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresArtifactSuite) TestLinksRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC()

	deal := &dealmodels.Deal{
		ID: id.NewDealID(), Name: "Link Test Deal", State: domain.StateDraft,
		CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.deals.CreateDeal(ctx, deal))

	art, err := s.store.Put(ctx, newArtifact([]byte("wire confirmation")))
	s.Require().NoError(err)

	eventID := id.NewEventID()
	link := &models.Link{
		ID: id.NewLinkID(), ArtifactID: art.ID, DealID: deal.ID,
		EventID: &eventID, Tag: "wire-confirmation", CreatedAt: now,
	}
	s.Require().NoError(s.store.CreateLink(ctx, link))

	links, err := s.store.ListLinksByDeal(ctx, deal.ID)
	s.Require().NoError(err)
	s.Require().Len(links, 1)
	s.Equal(art.ID, links[0].ArtifactID)
	s.Require().NotNil(links[0].EventID)
	s.Equal(eventID, *links[0].EventID)
	s.Nil(links[0].MaterialID)
	s.Equal("wire-confirmation", links[0].Tag)
}

func (s *PostgresArtifactSuite) TestLinkToMissingArtifactIsNotFound() {
	ctx := context.Background()
	now := time.Now().UTC()

	deal := &dealmodels.Deal{
		ID: id.NewDealID(), Name: "Dangling Link Deal", State: domain.StateDraft,
		CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.deals.CreateDeal(ctx, deal))

	err := s.store.CreateLink(ctx, &models.Link{
		ID: id.NewLinkID(), ArtifactID: id.NewArtifactID(), DealID: deal.ID,
		CreatedAt: now,
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresArtifactSuite) TestFindUnknownArtifactIsNotFound() {
	_, err := s.store.Find(context.Background(), id.NewArtifactID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
