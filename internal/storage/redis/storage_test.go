package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini    *miniredis.Miniredis
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.MatchHistoryTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.Storage = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

// Redis-specific tests

func (s *StorageSuite) TestAccountKeys() {
	s.Require().NoError(s.storage.AddMoney(s.Ctx, "alice", 50))
	s.Require().NoError(s.storage.AppendMatchHistory(s.Ctx, "alice", model.MatchHistoryEntry{GameName: "Capitales"}))

	s.True(s.mini.Exists("quizmatch:account:alice"))
	s.True(s.mini.Exists("quizmatch:account:alice:history"))
	members, err := s.mini.Members("quizmatch:idx:accounts")
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, members)
	s.Equal("50", s.mini.HGet("quizmatch:account:alice", "money"))
}

func (s *StorageSuite) TestMatchHistoryTTL() {
	s.Require().NoError(s.storage.SaveMatchRecord(s.Ctx, &model.MatchRecord{MatchAccessCode: "1234"}))

	s.Equal(time.Hour, s.mini.TTL("quizmatch:match_history"))

	s.mini.FastForward(2 * time.Hour)
	records, err := s.storage.ListMatchRecords(s.Ctx)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *StorageSuite) TestMatchHistoryWithoutTTL() {
	s.storage.cfg.MatchHistoryTTL = 0
	s.Require().NoError(s.storage.SaveMatchRecord(s.Ctx, &model.MatchRecord{MatchAccessCode: "1234"}))

	s.Zero(s.mini.TTL("quizmatch:match_history"))
}

func (s *StorageSuite) TestAverageStoredAsDecimal() {
	s.Require().NoError(s.storage.UpdateAvgTimePerGame(s.Ctx, "bob", 42.5))

	s.Equal("42.5", s.mini.HGet("quizmatch:account:bob", "avgTimePerGame"))
}

func (s *StorageSuite) TestConnectionFailure() {
	s.mini.Close()

	_, err := s.storage.GetAccount(s.Ctx, "alice")
	s.Error(err)
	s.NotErrorIs(err, model.ErrAccountNotFound)
	s.mini = nil
}

func (s *StorageSuite) TestNewRejectsBadURL() {
	cfg := DefaultConfig()
	cfg.URL = "not-a-url"
	_, err := New(cfg)
	s.Error(err)
}

func (s *StorageSuite) TestNewPingsServer() {
	cfg := DefaultConfig()
	cfg.URL = "redis://" + s.mini.Addr()
	st, err := New(cfg)
	s.Require().NoError(err)
	s.Require().NoError(st.Close())
}
