package storage

import (
	"context"
	"math"

	"github.com/mcoot/quizmatch/internal/model"
)

// Storage defines the interface for the account, history and game rating
// persistence the match engine reports into. Accounts are keyed by pseudonym
// and created on first write.
type Storage interface {
	// Account operations
	GetAccount(ctx context.Context, pseudonym string) (*model.AccountStats, error)
	AddMoney(ctx context.Context, pseudonym string, amount int) error
	IncrementGamesPlayed(ctx context.Context, pseudonym string) error
	IncrementGamesWon(ctx context.Context, pseudonym string) error
	UpdateAvgQuestionsCorrect(ctx context.Context, pseudonym string, correctAnswers int) error
	UpdateAvgTimePerGame(ctx context.Context, pseudonym string, seconds float64) error
	AppendMatchHistory(ctx context.Context, pseudonym string, entry model.MatchHistoryEntry) error
	ListBalances(ctx context.Context) ([]model.AccountBalance, error)

	// Saved match history operations
	SaveMatchRecord(ctx context.Context, record *model.MatchRecord) error
	ListMatchRecords(ctx context.Context) ([]model.MatchRecord, error)
	ClearMatchRecords(ctx context.Context) error

	// Game evaluation operations
	RecordGameEvaluation(ctx context.Context, eval model.GameEvaluation) error
	GetGameRatings(ctx context.Context, gameID string) (*model.GameRatings, error)
}

// RunningAverage folds a new sample into an average over gamesPlayed previous
// games, rounded to two decimals
func RunningAverage(previous float64, gamesPlayed int, sample float64) float64 {
	if gamesPlayed < 0 {
		gamesPlayed = 0
	}
	avg := (previous*float64(gamesPlayed) + sample) / float64(gamesPlayed+1)
	return math.Round(avg*100) / 100
}
