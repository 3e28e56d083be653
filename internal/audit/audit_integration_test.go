//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"entrypass/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	redpanda  *containers.RedpandaContainer
	publisher *KafkaPublisher
	topic     string
}

func TestKafkaPublisherSuite(t *testing.T) {
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	s.topic = "entrypass.audit.test"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	publisher, err := NewKafkaPublisher(ctx, s.redpanda.Brokers, s.topic, slog.Default())
	s.Require().NoError(err)
	s.publisher = publisher
}

func (s *KafkaPublisherSuite) TearDownSuite() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

func (s *KafkaPublisherSuite) TestPublishRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	event := NewEvent(ActionSaveFailed, time.Now().UTC().Truncate(time.Millisecond))
	event.SessionID = "sess-kafka"
	event.SaveKey = "passport:passportNumber"
	event.Reason = "redis timeout"
	event.RetryCount = 3

	s.Require().NoError(s.publisher.Publish(ctx, event))

	consumer := s.redpanda.NewClient(s.T(),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().NotEmpty(records)

	last := records[len(records)-1]
	s.Equal([]byte(event.SessionID), last.Key)

	var got Event
	s.Require().NoError(json.Unmarshal(last.Value, &got))
	s.Equal(event.ID, got.ID)
	s.Equal(ActionSaveFailed, got.Action)
	s.Equal("passport:passportNumber", got.SaveKey)
	s.Equal(3, got.RetryCount)
}

func (s *KafkaPublisherSuite) TestEnsureTopicIdempotent() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Creating a publisher against an existing topic must not fail.
	again, err := NewKafkaPublisher(ctx, s.redpanda.Brokers, s.topic, slog.Default())
	s.Require().NoError(err)
	again.Close()
}

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(s.pg.ExecSQL(context.Background(), StoreSchema))
	s.store = NewPostgresStore(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, action := range []Action{ActionScreenOpened, ActionSaveFailed, ActionSaveRecovered} {
		event := NewEvent(action, base.Add(time.Duration(i)*time.Second))
		event.SessionID = "sess-pg"
		event.ScreenID = "passport"
		s.Require().NoError(s.store.Append(ctx, event))
	}
	noise := NewEvent(ActionScreenFlushed, base)
	noise.SessionID = "other-session"
	s.Require().NoError(s.store.Append(ctx, noise))

	events, err := s.store.ListBySession(ctx, "sess-pg", 10)
	s.Require().NoError(err)
	s.Require().Len(events, 3)

	// Newest first.
	s.Equal(ActionSaveRecovered, events[0].Action)
	s.Equal(ActionSaveFailed, events[1].Action)
	s.Equal(ActionScreenOpened, events[2].Action)
	s.Equal("passport", events[0].ScreenID)
}

func (s *PostgresStoreSuite) TestListLimit() {
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		event := NewEvent(ActionSaveFailed, base.Add(time.Duration(i)*time.Second))
		event.SessionID = "sess-limit"
		s.Require().NoError(s.store.Append(ctx, event))
	}

	events, err := s.store.ListBySession(ctx, "sess-limit", 2)
	s.Require().NoError(err)
	s.Len(events, 2)
}

func (s *PostgresStoreSuite) TestListUnknownSession() {
	events, err := s.store.ListBySession(context.Background(), "nobody", 10)
	s.Require().NoError(err)
	s.Empty(events)
}
