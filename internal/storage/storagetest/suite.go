// Package storagetest holds the behaviour every storage implementation must
// share. Implementations embed Suite in their own test suite and set New.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/storage"
)

// Suite is a testify suite exercising the storage.Storage contract
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

// Account tests

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.Storage.GetAccount(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestCountersCreateAccount() {
	s.Require().NoError(s.Storage.AddMoney(s.Ctx, "alice", 120))
	s.Require().NoError(s.Storage.AddMoney(s.Ctx, "alice", 55))
	s.Require().NoError(s.Storage.IncrementGamesPlayed(s.Ctx, "alice"))
	s.Require().NoError(s.Storage.IncrementGamesWon(s.Ctx, "alice"))

	acc, err := s.Storage.GetAccount(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", acc.Pseudonym)
	s.Equal(175, acc.Money)
	s.Equal(1, acc.GamesPlayed)
	s.Equal(1, acc.GamesWon)
	s.Empty(acc.MatchHistory)
}

func (s *Suite) TestRunningAverages() {
	// First game: 3 correct in 90s
	s.Require().NoError(s.Storage.UpdateAvgQuestionsCorrect(s.Ctx, "bob", 3))
	s.Require().NoError(s.Storage.UpdateAvgTimePerGame(s.Ctx, "bob", 90))
	s.Require().NoError(s.Storage.IncrementGamesPlayed(s.Ctx, "bob"))

	// Second game: 4 correct in 61s
	s.Require().NoError(s.Storage.UpdateAvgQuestionsCorrect(s.Ctx, "bob", 4))
	s.Require().NoError(s.Storage.UpdateAvgTimePerGame(s.Ctx, "bob", 61))
	s.Require().NoError(s.Storage.IncrementGamesPlayed(s.Ctx, "bob"))

	// Third game: 0 correct in 10s
	s.Require().NoError(s.Storage.UpdateAvgQuestionsCorrect(s.Ctx, "bob", 0))
	s.Require().NoError(s.Storage.UpdateAvgTimePerGame(s.Ctx, "bob", 10))
	s.Require().NoError(s.Storage.IncrementGamesPlayed(s.Ctx, "bob"))

	acc, err := s.Storage.GetAccount(s.Ctx, "bob")
	s.Require().NoError(err)
	s.Equal(3, acc.GamesPlayed)
	s.InDelta(2.33, acc.AvgQuestionsCorrect, 0.001)
	s.InDelta(53.67, acc.AvgTimePerGame, 0.001)
}

func (s *Suite) TestAppendMatchHistory() {
	played := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	s.Require().NoError(s.Storage.AppendMatchHistory(s.Ctx, "carl", model.MatchHistoryEntry{GameName: "Capitales", DatePlayed: played, Won: true}))
	s.Require().NoError(s.Storage.AppendMatchHistory(s.Ctx, "carl", model.MatchHistoryEntry{GameName: "Sports", DatePlayed: played, Won: false}))

	acc, err := s.Storage.GetAccount(s.Ctx, "carl")
	s.Require().NoError(err)
	s.Require().Len(acc.MatchHistory, 2)
	s.Equal("Capitales", acc.MatchHistory[0].GameName)
	s.True(acc.MatchHistory[0].Won)
	s.True(played.Equal(acc.MatchHistory[0].DatePlayed))
	s.Equal("Sports", acc.MatchHistory[1].GameName)
}

func (s *Suite) TestListBalancesSortedByPseudonym() {
	s.Require().NoError(s.Storage.AddMoney(s.Ctx, "zoe", 10))
	s.Require().NoError(s.Storage.AddMoney(s.Ctx, "alice", 30))
	s.Require().NoError(s.Storage.IncrementGamesPlayed(s.Ctx, "mia"))

	balances, err := s.Storage.ListBalances(s.Ctx)
	s.Require().NoError(err)
	s.Equal([]model.AccountBalance{
		{ID: "alice", Money: 30},
		{ID: "mia", Money: 0},
		{ID: "zoe", Money: 10},
	}, balances)
}

func (s *Suite) TestConcurrentUpdatesAreNotLost() {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Storage.AddMoney(s.Ctx, "dana", 5)
		}()
	}
	wg.Wait()

	acc, err := s.Storage.GetAccount(s.Ctx, "dana")
	s.Require().NoError(err)
	s.Equal(100, acc.Money)
}

// Saved match history tests

func (s *Suite) TestMatchRecords() {
	records, err := s.Storage.ListMatchRecords(s.Ctx)
	s.Require().NoError(err)
	s.Empty(records)

	start := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	s.Require().NoError(s.Storage.SaveMatchRecord(s.Ctx, &model.MatchRecord{MatchAccessCode: "1234", BestScore: 40, StartTime: start, NumberOfPlayers: 3, GameName: "Capitales"}))
	s.Require().NoError(s.Storage.SaveMatchRecord(s.Ctx, &model.MatchRecord{MatchAccessCode: "5678", BestScore: 10, StartTime: start, NumberOfPlayers: 1, GameName: "Sports"}))

	records, err = s.Storage.ListMatchRecords(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(model.AccessCode("1234"), records[0].MatchAccessCode)
	s.Equal(40, records[0].BestScore)
	s.Equal(model.AccessCode("5678"), records[1].MatchAccessCode)

	s.Require().NoError(s.Storage.ClearMatchRecords(s.Ctx))
	records, err = s.Storage.ListMatchRecords(s.Ctx)
	s.Require().NoError(err)
	s.Empty(records)
}

// Game evaluation tests

func (s *Suite) TestGameRatingsNotFound() {
	_, err := s.Storage.GetGameRatings(s.Ctx, "unrated")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestRecordGameEvaluation() {
	s.Require().NoError(s.Storage.RecordGameEvaluation(s.Ctx, model.GameEvaluation{GameID: "g1", Difficulty: "3", Interest: "5", Duration: "2", Rating: "4"}))
	s.Require().NoError(s.Storage.RecordGameEvaluation(s.Ctx, model.GameEvaluation{GameID: "g1", Difficulty: "3", Rating: "5"}))

	ratings, err := s.Storage.GetGameRatings(s.Ctx, "g1")
	s.Require().NoError(err)
	s.Equal(map[string]int{"3": 2}, ratings.Difficulty)
	s.Equal(map[string]int{"5": 1}, ratings.Interest)
	s.Equal(map[string]int{"2": 1}, ratings.Duration)
	s.Equal(map[string]int{"4": 1, "5": 1}, ratings.Rating)
}
