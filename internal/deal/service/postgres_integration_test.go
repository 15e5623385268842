//go:build integration

package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	authoritymodels "dealkernel/internal/authority/models"
	authoritystore "dealkernel/internal/authority/store"
	dealservice "dealkernel/internal/deal/service"
	dealstore "dealkernel/internal/deal/store"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/platform/tx"
	"dealkernel/pkg/testutil/containers"
)

type DealCreationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	deals    *dealstore.Postgres
	rules    *authoritystore.Postgres
	svc      *dealservice.Service
}

func TestDealCreationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(DealCreationSuite))
}

func (s *DealCreationSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.deals = dealstore.NewPostgres(s.postgres.DB)
	s.rules = authoritystore.NewPostgres(s.postgres.DB)
	s.svc = dealservice.New(s.deals, s.rules, tx.NewRunner(s.postgres.DB))
}

func (s *DealCreationSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *DealCreationSuite) SetupTest() {
	err := s.postgres.Truncate(context.Background(), "authority_rules", "deals")
	s.Require().NoError(err)
}

func (s *DealCreationSuite) TestCreateCommitsDealAndRulesTogether() {
	ctx := context.Background()

	deal, err := s.svc.Create(ctx, "Harbor Point Refinance")
	s.Require().NoError(err)

	found, err := s.deals.FindDeal(ctx, deal.ID)
	s.Require().NoError(err)
	s.Equal(deal.ID, found.ID)

	seeded, err := s.rules.RulesFor(ctx, deal.ID)
	s.Require().NoError(err)
	s.Len(seeded, len(domain.ActionTypes))
}

// A seeding failure must roll the deal row back with it. A deal without its
// catalog would turn every gate request into an internal error.
func (s *DealCreationSuite) TestSeedFailureRollsBackTheDealRow() {
	ctx := context.Background()
	broken := dealservice.New(s.deals, abortingSeeder{}, tx.NewRunner(s.postgres.DB))

	_, err := broken.Create(ctx, "Doomed Deal")
	s.Require().Error(err)

	var count int
	err = s.postgres.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM deals`).Scan(&count)
	s.Require().NoError(err)
	s.Zero(count)
}

type abortingSeeder struct{}

func (abortingSeeder) Seed(ctx context.Context, dealID id.DealID, rules []authoritymodels.Rule) error {
	return errors.New("seeding aborted")
}
