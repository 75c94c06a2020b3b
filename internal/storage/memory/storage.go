package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	accounts     map[string]*model.AccountStats
	matchRecords []model.MatchRecord
	ratings      map[string]*model.GameRatings
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts:     make(map[string]*model.AccountStats),
		matchRecords: []model.MatchRecord{},
		ratings:      make(map[string]*model.GameRatings),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// account returns the account for pseudonym, creating it if needed. Callers
// must hold the write lock.
func (s *Storage) account(pseudonym string) *model.AccountStats {
	acc, ok := s.accounts[pseudonym]
	if !ok {
		acc = &model.AccountStats{
			Pseudonym:    pseudonym,
			MatchHistory: []model.MatchHistoryEntry{},
		}
		s.accounts[pseudonym] = acc
	}
	return acc
}

// Account operations

func (s *Storage) GetAccount(ctx context.Context, pseudonym string) (*model.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[pseudonym]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	out := *acc
	out.MatchHistory = slices.Clone(acc.MatchHistory)
	return &out, nil
}

func (s *Storage) AddMoney(ctx context.Context, pseudonym string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(pseudonym).Money += amount
	return nil
}

func (s *Storage) IncrementGamesPlayed(ctx context.Context, pseudonym string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(pseudonym).GamesPlayed++
	return nil
}

func (s *Storage) IncrementGamesWon(ctx context.Context, pseudonym string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(pseudonym).GamesWon++
	return nil
}

func (s *Storage) UpdateAvgQuestionsCorrect(ctx context.Context, pseudonym string, correctAnswers int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(pseudonym)
	acc.AvgQuestionsCorrect = storage.RunningAverage(acc.AvgQuestionsCorrect, acc.GamesPlayed, float64(correctAnswers))
	return nil
}

func (s *Storage) UpdateAvgTimePerGame(ctx context.Context, pseudonym string, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(pseudonym)
	acc.AvgTimePerGame = storage.RunningAverage(acc.AvgTimePerGame, acc.GamesPlayed, seconds)
	return nil
}

func (s *Storage) AppendMatchHistory(ctx context.Context, pseudonym string, entry model.MatchHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(pseudonym)
	acc.MatchHistory = append(acc.MatchHistory, entry)
	return nil
}

func (s *Storage) ListBalances(ctx context.Context) ([]model.AccountBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balances := make([]model.AccountBalance, 0, len(s.accounts))
	for _, acc := range s.accounts {
		balances = append(balances, model.AccountBalance{ID: acc.Pseudonym, Money: acc.Money})
	}
	slices.SortFunc(balances, func(a, b model.AccountBalance) int {
		return strings.Compare(a.ID, b.ID)
	})
	return balances, nil
}

// Saved match history operations

func (s *Storage) SaveMatchRecord(ctx context.Context, record *model.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchRecords = append(s.matchRecords, *record)
	return nil
}

func (s *Storage) ListMatchRecords(ctx context.Context) ([]model.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.matchRecords), nil
}

func (s *Storage) ClearMatchRecords(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchRecords = []model.MatchRecord{}
	return nil
}

// Game evaluation operations

func (s *Storage) RecordGameEvaluation(ctx context.Context, eval model.GameEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ratings[eval.GameID]
	if !ok {
		r = model.NewGameRatings()
		s.ratings[eval.GameID] = r
	}
	r.Add(eval)
	return nil
}

func (s *Storage) GetGameRatings(ctx context.Context, gameID string) (*model.GameRatings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[gameID]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	out := model.NewGameRatings()
	for dim, counts := range r.Dimensions() {
		for key, n := range counts {
			out.Dimension(dim)[key] = n
		}
	}
	return out, nil
}
