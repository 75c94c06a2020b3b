package finalizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/scoring"
	"github.com/mcoot/quizmatch/internal/storage"
)

// PlayerResult is the end-of-match outcome for one player
type PlayerResult struct {
	Name           string `json:"name"`
	Active         bool   `json:"active"`
	Won            bool   `json:"won"`
	BestPlayer     bool   `json:"bestPlayer"`
	Score          int    `json:"score"`
	Reward         int    `json:"reward"`
	Paid           bool   `json:"paid"`
	CorrectAnswers int    `json:"correctAnswers"`
}

// Result is everything the finalizer derived from a match that ended
type Result struct {
	AccessCode       model.AccessCode `json:"accessCode"`
	GameID           string           `json:"gameId"`
	GameName         string           `json:"gameName"`
	DatePlayed       time.Time        `json:"datePlayed"`
	DurationSeconds  float64          `json:"durationSeconds"`
	WinnerPlayerName string           `json:"winnerPlayerName"`
	IsTeamMatch      bool             `json:"isTeamMatch"`
	IsPricedMatch    bool             `json:"isPricedMatch"`
	Pot              int              `json:"pot"`
	Players          []PlayerResult   `json:"players"`
	// StatsSkipped is set when nobody played: no player joined or the match
	// never began
	StatsSkipped bool `json:"statsSkipped"`
}

// Report lists which players' stats were recorded and which failed
type Report struct {
	Updated []string
	Failed  map[string]error
}

// Finalizer turns a finished match into rewards and statistics
type Finalizer struct {
	storage   storage.Storage
	scoring   *scoring.Service
	publisher Publisher
	logger    *slog.Logger
}

// New creates a new Finalizer
func New(storage storage.Storage, scoring *scoring.Service, publisher Publisher, logger *slog.Logger) *Finalizer {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Finalizer{
		storage:   storage,
		scoring:   scoring,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "finalizer")),
	}
}

// Compute derives the result of a match. It does no I/O.
func (f *Finalizer) Compute(m *model.Match, now time.Time) *Result {
	result := &Result{
		AccessCode:    m.AccessCode,
		GameID:        m.Game.ID,
		GameName:      m.Game.Title,
		DatePlayed:    m.Begin,
		IsTeamMatch:   m.IsTeamMatch,
		IsPricedMatch: m.IsPricedMatch,
		Players:       []PlayerResult{},
	}
	if m.IsPricedMatch {
		result.Pot = f.scoring.Pot(m)
	}

	if len(m.Players) == 0 || !m.HasBegun() {
		result.StatsSkipped = true
		return result
	}

	result.DurationSeconds = now.Sub(m.Begin).Seconds()
	best := f.scoring.BestPlayer(m.Players)

	for _, p := range m.Players {
		won := f.scoring.IsWinner(m, p.Name)
		reward, paid := f.scoring.Reward(m, won, p.IsActive)
		if won {
			result.WinnerPlayerName = p.Name
		}
		result.Players = append(result.Players, PlayerResult{
			Name:           p.Name,
			Active:         p.IsActive,
			Won:            won,
			BestPlayer:     p.Name == best,
			Score:          p.Score,
			Reward:         reward,
			Paid:           paid,
			CorrectAnswers: f.scoring.CorrectAnswers(m, p.Name),
		})
	}
	return result
}

// Record pushes every player's stats to storage concurrently and then
// publishes the result. A failure for one player is logged and does not stop
// the others.
func (f *Finalizer) Record(ctx context.Context, result *Result) *Report {
	report := &Report{
		Updated: []string{},
		Failed:  map[string]error{},
	}
	logger := f.logger.With(slog.String("access_code", string(result.AccessCode)))

	if result.StatsSkipped {
		logger.Info("no players took part, skipping player statistics")
	} else {
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, pr := range result.Players {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := f.recordPlayer(ctx, result, pr)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed[pr.Name] = err
					logger.Error("failed to record player statistics",
						slog.String("player", pr.Name),
						slog.String("error", err.Error()))
					return
				}
				report.Updated = append(report.Updated, pr.Name)
			}()
		}
		wg.Wait()
	}

	if err := f.publisher.Publish(ctx, result); err != nil {
		logger.Error("failed to publish match result", slog.String("error", err.Error()))
	}

	logger.Info("match finalized",
		slog.String("winner", result.WinnerPlayerName),
		slog.Int("updated", len(report.Updated)),
		slog.Int("failed", len(report.Failed)))
	return report
}

// recordPlayer applies one player's updates in order. Averages are folded in
// before gamesPlayed moves so they weigh the previous game count.
func (f *Finalizer) recordPlayer(ctx context.Context, result *Result, pr PlayerResult) error {
	if pr.Active {
		if err := f.storage.UpdateAvgQuestionsCorrect(ctx, pr.Name, pr.CorrectAnswers); err != nil {
			return fmt.Errorf("update average correct answers: %w", err)
		}
		if err := f.storage.UpdateAvgTimePerGame(ctx, pr.Name, result.DurationSeconds); err != nil {
			return fmt.Errorf("update average game time: %w", err)
		}
		if err := f.storage.IncrementGamesPlayed(ctx, pr.Name); err != nil {
			return fmt.Errorf("increment games played: %w", err)
		}
	}

	if pr.Paid {
		if err := f.storage.AddMoney(ctx, pr.Name, pr.Reward); err != nil {
			return fmt.Errorf("add reward: %w", err)
		}
	}

	entry := model.MatchHistoryEntry{
		GameName:   result.GameName,
		DatePlayed: result.DatePlayed,
		Won:        pr.Won,
	}
	if err := f.storage.AppendMatchHistory(ctx, pr.Name, entry); err != nil {
		return fmt.Errorf("append match history: %w", err)
	}

	if pr.BestPlayer {
		if err := f.storage.IncrementGamesWon(ctx, pr.Name); err != nil {
			return fmt.Errorf("increment games won: %w", err)
		}
	}
	return nil
}

// RecordDeparture records the stats of a player who left a match that had
// begun. They are not counted again when the match ends.
func (f *Finalizer) RecordDeparture(ctx context.Context, m *model.Match, name string, now time.Time) error {
	if !m.HasBegun() {
		return nil
	}
	seconds := now.Sub(m.Begin).Seconds()
	correct := f.scoring.CorrectAnswers(m, name)

	if err := f.storage.UpdateAvgTimePerGame(ctx, name, seconds); err != nil {
		return fmt.Errorf("update average game time: %w", err)
	}
	if err := f.storage.UpdateAvgQuestionsCorrect(ctx, name, correct); err != nil {
		return fmt.Errorf("update average correct answers: %w", err)
	}
	if err := f.storage.IncrementGamesPlayed(ctx, name); err != nil {
		return fmt.Errorf("increment games played: %w", err)
	}

	f.logger.Info("departed player recorded",
		slog.String("access_code", string(m.AccessCode)),
		slog.String("player", name),
		slog.Float64("seconds", seconds),
		slog.Int("correct_answers", correct))
	return nil
}

// Balances returns the money of every known account
func (f *Finalizer) Balances(ctx context.Context) ([]model.AccountBalance, error) {
	return f.storage.ListBalances(ctx)
}
