package scoring

import (
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/mcoot/quizmatch/internal/model"
)

// Flat stipends paid on top of any pot share
const (
	WinnerStipend = 100
	LoserStipend  = 50
)

// Service ranks players and teams and computes end-of-match rewards
type Service struct {
	logger *slog.Logger
}

// New creates a new scoring Service
func New(logger *slog.Logger) *Service {
	return &Service{
		logger: logger.With(slog.String("component", "scoring")),
	}
}

// comparePlayers orders by score descending, then name ascending
func comparePlayers(a, b model.Player) int {
	if a.Score != b.Score {
		return b.Score - a.Score
	}
	return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
}

// RankPlayers returns the players sorted best first. The input is not modified.
func (s *Service) RankPlayers(players []model.Player) []model.Player {
	ranked := slices.Clone(players)
	slices.SortStableFunc(ranked, comparePlayers)
	return ranked
}

// BestPlayer returns the name of the top-ranked player, or "" if there are none
func (s *Service) BestPlayer(players []model.Player) string {
	if len(players) == 0 {
		return ""
	}
	return s.RankPlayers(players)[0].Name
}

// TeamScore sums the current scores of the team's members
func (s *Service) TeamScore(match *model.Match, team *model.Team) int {
	total := 0
	for _, name := range team.Players {
		if p := match.GetPlayer(name); p != nil {
			total += p.Score
		}
	}
	return total
}

// RecomputeTeamScores refreshes every team's score from its members
func (s *Service) RecomputeTeamScores(match *model.Match) {
	for i := range match.Teams {
		match.Teams[i].Score = s.TeamScore(match, &match.Teams[i])
	}
}

// WinnerTeam returns the top-ranked team by score, ties broken by ascending
// name, or nil if the match has no teams
func (s *Service) WinnerTeam(match *model.Match) *model.Team {
	if len(match.Teams) == 0 {
		return nil
	}
	teams := slices.Clone(match.Teams)
	slices.SortStableFunc(teams, func(a, b model.Team) int {
		sa, sb := s.TeamScore(match, &a), s.TeamScore(match, &b)
		if sa != sb {
			return sb - sa
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return match.GetTeam(teams[0].Name)
}

// IsWinner reports whether the player won: membership of the winning team in
// a team match, otherwise being the best player
func (s *Service) IsWinner(match *model.Match, name string) bool {
	if match.IsTeamMatch {
		team := s.WinnerTeam(match)
		return team != nil && team.HasMember(name)
	}
	best := s.BestPlayer(match.Players)
	return best != "" && model.SameName(best, name)
}

// Pot is the total entry money collected for a priced match
func (s *Service) Pot(match *model.Match) int {
	return int(math.Floor(float64(match.NbPlayersJoined) * float64(match.PriceMatch)))
}

// Reward returns the money a player earns at the end of the match. The second
// value is false when nothing is paid: a priced match with no active players.
// The loser share of a priced pot is split among active players only, so a
// player who left before the end gets the stipend alone.
func (s *Service) Reward(match *model.Match, won, active bool) (int, bool) {
	if !match.IsPricedMatch {
		if won {
			return WinnerStipend, true
		}
		return LoserStipend, true
	}

	remaining := len(match.ActivePlayers())
	if remaining <= 0 {
		s.logger.Warn("no active players in priced match, skipping prize distribution",
			slog.String("access_code", string(match.AccessCode)))
		return 0, false
	}

	pot := float64(s.Pot(match))
	if won {
		return int(math.Round(pot*2/3)) + WinnerStipend, true
	}
	if !active || remaining == 1 {
		return LoserStipend, true
	}
	return int(math.Round(pot/3/float64(remaining-1))) + LoserStipend, true
}

// CorrectAnswers counts the player's answers that earned points
func (s *Service) CorrectAnswers(match *model.Match, name string) int {
	count := 0
	for _, a := range match.PlayersAnswers {
		if model.SameName(a.Name, name) && a.ObtainedPoints > 0 {
			count++
		}
	}
	return count
}

// Interface for dependency injection
type ServiceInterface interface {
	RankPlayers(players []model.Player) []model.Player
	BestPlayer(players []model.Player) string
	WinnerTeam(match *model.Match) *model.Team
	IsWinner(match *model.Match, name string) bool
	Reward(match *model.Match, won, active bool) (int, bool)
	CorrectAnswers(match *model.Match, name string) int
}

var _ ServiceInterface = (*Service)(nil)
