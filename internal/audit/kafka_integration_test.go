//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"dealkernel/internal/audit"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/testutil/containers"
)

const testTopic = "dealkernel.audit.test"

type KafkaSinkSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	sink     *audit.KafkaSink
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())

	sink, err := audit.NewKafkaSink(context.Background(), []string{s.redpanda.Broker}, testTopic)
	s.Require().NoError(err)
	s.sink = sink
}

func (s *KafkaSinkSuite) TearDownSuite() {
	s.sink.Close()
	_ = s.redpanda.Container.Terminate(context.Background())
}

func (s *KafkaSinkSuite) consume(ctx context.Context, want int) []*kgo.Record {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var records []*kgo.Record
	deadline := time.Now().Add(30 * time.Second)
	for len(records) < want && time.Now().Before(deadline) {
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		fetches := consumer.PollFetches(fetchCtx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

func (s *KafkaSinkSuite) TestAppendPublishesKeyedByDeal() {
	ctx := context.Background()
	dealID := id.NewDealID()

	entries := []audit.Entry{
		{ID: id.NewEventID(), Timestamp: time.Now().UTC(), DealID: dealID, Action: "OPEN_REVIEW", Decision: audit.DecisionAllowed},
		{ID: id.NewEventID(), Timestamp: time.Now().UTC(), DealID: dealID, Action: "REQUEST_FUNDING", Decision: audit.DecisionOverridden, Override: true, Reason: "approved offline"},
	}
	for _, e := range entries {
		s.Require().NoError(s.sink.Append(ctx, e))
	}

	records := s.consume(ctx, len(entries))
	s.Require().Len(records, len(entries))

	for i, record := range records {
		s.Equal(dealID.String(), string(record.Key), "records must be keyed by deal for partition ordering")

		var got audit.Entry
		s.Require().NoError(json.Unmarshal(record.Value, &got))
		s.Equal(entries[i].Action, got.Action)
		s.Equal(entries[i].Decision, got.Decision)
	}
}

func (s *KafkaSinkSuite) TestFanoutWritesEverySinkReadsLocal() {
	ctx := context.Background()
	dealID := id.NewDealID()

	local := audit.NewMemoryStore()
	fanout := audit.NewFanoutStore(local, s.sink)

	entry := audit.Entry{
		ID: id.NewEventID(), Timestamp: time.Now().UTC(), DealID: dealID,
		Action: "FINALIZE_CLOSING", Decision: audit.DecisionBlocked, Reason: "APPROVAL_THRESHOLD_UNMET",
	}
	s.Require().NoError(fanout.Append(ctx, entry))

	listed, err := fanout.ListByDeal(ctx, dealID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(entry.Action, listed[0].Action)
}
