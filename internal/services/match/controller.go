package match

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/registry"
	"github.com/mcoot/quizmatch/internal/services/scoring"
)

// Controller applies state machine transitions and roster changes to matches
// held in the registry. Every operation runs under the match's lock and
// returns copies, never references into the live match.
type Controller struct {
	registry *registry.Registry
	scoring  *scoring.Service
	clock    clock.Clock
	logger   *slog.Logger
}

// NewController creates a new match Controller
func NewController(
	registry *registry.Registry,
	scoring *scoring.Service,
	clock clock.Clock,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		registry: registry,
		scoring:  scoring,
		clock:    clock,
		logger:   logger.With(slog.String("component", "match")),
	}
}

// requireState returns nil if the match is in one of the allowed states
func requireState(m *model.Match, op string, allowed ...model.MatchState) error {
	if slices.Contains(allowed, m.State) {
		return nil
	}
	switch {
	case m.State.IsTerminal():
		return model.ErrMatchTerminated
	case m.State == model.MatchStateWaiting:
		return model.ErrMatchNotBegun
	case slices.Contains(allowed, model.MatchStateWaiting):
		return model.ErrMatchAlreadyBegun
	}
	return fmt.Errorf("%w: cannot %s while %s", model.ErrInvalidState, op, m.State)
}

var startedStates = []model.MatchState{
	model.MatchStateBegun,
	model.MatchStateInQuestion,
	model.MatchStateEvaluating,
}

var liveStates = append([]model.MatchState{model.MatchStateWaiting}, startedStates...)

// Phase transitions

// Begin starts the match. Only the manager may begin. Empty teams are pruned,
// then a team match needs every active player in a complete team.
func (c *Controller) Begin(code model.AccessCode, requester string) (*model.Match, error) {
	var snapshot *model.Match
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "begin", model.MatchStateWaiting); err != nil {
			return err
		}
		if !m.IsManagerName(requester) {
			return model.ErrNotManager
		}

		m.Teams = slices.DeleteFunc(m.Teams, func(t model.Team) bool {
			return len(t.Players) == 0
		})
		if m.IsTeamMatch && !m.TeamsComplete() {
			return model.ErrTeamsIncomplete
		}
		m.Begin = c.clock.Now()
		m.CurrentQuestionIndex = 0
		m.State = model.MatchStateBegun

		c.logger.Info("match begun",
			slog.String("access_code", string(code)),
			slog.Int("players", len(m.Players)),
			slog.Int("teams", len(m.Teams)))

		snapshot = m.Clone()
		return nil
	})
	return snapshot, err
}

// SwitchQuestion moves the cursor to index. The index comes from the manager
// and is not range checked.
func (c *Controller) SwitchQuestion(code model.AccessCode, index int) error {
	return c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "switch question", model.MatchStateBegun, model.MatchStateInQuestion); err != nil {
			return err
		}
		m.CurrentQuestionIndex = index
		m.State = model.MatchStateInQuestion
		m.PanicMode = false
		m.IsEvaluatingQrl = false
		return nil
	})
}

// BeginQrlEvaluation enters the manual grading phase of a free-response question
func (c *Controller) BeginQrlEvaluation(code model.AccessCode) error {
	return c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "begin evaluation", model.MatchStateInQuestion); err != nil {
			return err
		}
		m.State = model.MatchStateEvaluating
		m.IsEvaluatingQrl = true
		return nil
	})
}

// FinishQrlEvaluation leaves the grading phase
func (c *Controller) FinishQrlEvaluation(code model.AccessCode) error {
	return c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "finish evaluation", model.MatchStateEvaluating); err != nil {
			return err
		}
		m.State = model.MatchStateInQuestion
		m.IsEvaluatingQrl = false
		return nil
	})
}

// ActivatePanicMode flags the current question as running in panic mode
func (c *Controller) ActivatePanicMode(code model.AccessCode) error {
	return c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "activate panic mode", model.MatchStateBegun, model.MatchStateInQuestion); err != nil {
			return err
		}
		m.PanicMode = true
		return nil
	})
}

// ToggleAccessibility locks or unlocks the match and returns the new value
func (c *Controller) ToggleAccessibility(code model.AccessCode) (bool, error) {
	var accessible bool
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "toggle accessibility", liveStates...); err != nil {
			return err
		}
		m.IsAccessible = !m.IsAccessible
		accessible = m.IsAccessible
		return nil
	})
	return accessible, err
}

// Cancel moves a live match to Cancelled. Removing it from the registry is
// left to the caller.
func (c *Controller) Cancel(code model.AccessCode) error {
	return c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "cancel", liveStates...); err != nil {
			return err
		}
		m.State = model.MatchStateCancelled
		return nil
	})
}

// Finish moves a started match to Finished
func (c *Controller) Finish(code model.AccessCode) error {
	return c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "finish", startedStates...); err != nil {
			return err
		}
		m.State = model.MatchStateFinished
		return nil
	})
}

// SetTimer mirrors the scheduler's countdown value onto the match
func (c *Controller) SetTimer(code model.AccessCode, value int) error {
	return c.registry.With(code, func(m *model.Match) error {
		m.Timer = value
		return nil
	})
}

// Players

func checkPlayerName(m *model.Match, name string) error {
	if name == "" || m.IsReservedName(name) {
		return model.ErrPlayerNameInvalid
	}
	if m.GetPlayer(name) != nil {
		return model.ErrPlayerNameTaken
	}
	if m.IsBanned(name) {
		return model.ErrPlayerNameInvalid
	}
	return nil
}

// AddPlayer adds a new active player to a waiting match. The name is trimmed
// and then reserved in the banned list until the player leaves voluntarily.
func (c *Controller) AddPlayer(code model.AccessCode, name string) (*model.Match, error) {
	name = strings.TrimSpace(name)
	var snapshot *model.Match
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "add player", model.MatchStateWaiting); err != nil {
			return err
		}
		if err := checkPlayerName(m, name); err != nil {
			return err
		}

		m.Players = append(m.Players, model.Player{Name: name, IsActive: true})
		m.BannedNames = append(m.BannedNames, name)
		m.NbPlayersJoined++

		c.logger.Info("player joined",
			slog.String("access_code", string(code)),
			slog.String("player", name),
			slog.Int("joined", m.NbPlayersJoined))

		snapshot = m.Clone()
		return nil
	})
	return snapshot, err
}

// IsPlayerNameValid reports whether name could join the match
func (c *Controller) IsPlayerNameValid(code model.AccessCode, name string) (bool, error) {
	name = strings.TrimSpace(name)
	var valid bool
	err := c.registry.With(code, func(m *model.Match) error {
		valid = name != "" && !m.IsBanned(name) && !m.IsReservedName(name)
		return nil
	})
	return valid, err
}

// RemovePlayer takes a player out of the match. Before the match begins the
// player is deleted and dropped from their team; afterwards they are only
// marked inactive. hasLeft frees the name for reuse; a kicked player's name
// stays banned.
func (c *Controller) RemovePlayer(code model.AccessCode, name string, hasLeft bool) (*model.Match, error) {
	var snapshot *model.Match
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "remove player", liveStates...); err != nil {
			return err
		}
		p := m.GetPlayer(name)
		if p == nil {
			return model.ErrPlayerNotFound
		}

		if m.State == model.MatchStateWaiting {
			if team := m.TeamOf(name); team != nil {
				removeMember(team, name)
			}
			m.Players = slices.DeleteFunc(m.Players, func(p model.Player) bool {
				return model.SameName(p.Name, name)
			})
		} else {
			p.IsActive = false
		}

		if hasLeft {
			m.BannedNames = slices.DeleteFunc(m.BannedNames, func(b string) bool {
				return model.SameName(b, name)
			})
		}

		c.logger.Info("player removed",
			slog.String("access_code", string(code)),
			slog.String("player", name),
			slog.Bool("has_left", hasLeft))

		snapshot = m.Clone()
		return nil
	})
	return snapshot, err
}

// DisableResult is the state needed to announce a player leaving mid-match
type DisableResult struct {
	Player       model.Player
	Answers      []model.PlayerAnswers
	AllResponded bool
	Match        *model.Match
}

// DisablePlayer marks a player who left a started match as inactive and
// re-evaluates whether everyone still playing has answered questionID
func (c *Controller) DisablePlayer(code model.AccessCode, name, questionID string) (*DisableResult, error) {
	var result *DisableResult
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "disable player", startedStates...); err != nil {
			return err
		}
		p := m.GetPlayer(name)
		if p == nil {
			return model.ErrPlayerNotFound
		}
		p.IsActive = false
		for i := range m.PlayersAnswers {
			if model.SameName(m.PlayersAnswers[i].Name, name) {
				m.PlayersAnswers[i].IsTypingQrl = false
			}
		}

		snapshot := m.Clone()
		result = &DisableResult{
			Player:       *snapshot.GetPlayer(name),
			Answers:      snapshot.PlayersAnswers,
			AllResponded: AllPlayersResponded(m, questionID),
			Match:        snapshot,
		}
		return nil
	})
	return result, err
}

// UpdateChatAccess applies the chatBlocked flags of the given players
func (c *Controller) UpdateChatAccess(code model.AccessCode, players []model.Player) ([]model.Player, error) {
	var updated []model.Player
	err := c.registry.With(code, func(m *model.Match) error {
		for _, in := range players {
			if p := m.GetPlayer(in.Name); p != nil {
				p.ChatBlocked = in.ChatBlocked
			}
		}
		updated = slices.Clone(m.Players)
		return nil
	})
	return updated, err
}

// Answers

// AllPlayersResponded reports whether every active player has a final answer
// for the question. Inactive players count as having responded.
func AllPlayersResponded(m *model.Match, questionID string) bool {
	for _, p := range m.Players {
		if !p.IsActive {
			continue
		}
		a := m.GetAnswer(p.Name, questionID)
		if a == nil || !a.IsFinal {
			return false
		}
	}
	return true
}

// AllPlayersResponded evaluates the predicate for a match in the registry
func (c *Controller) AllPlayersResponded(code model.AccessCode, questionID string) (bool, error) {
	var responded bool
	err := c.registry.With(code, func(m *model.Match) error {
		responded = AllPlayersResponded(m, questionID)
		return nil
	})
	return responded, err
}

// upsertAnswer returns the live record for the answer's player and question,
// creating it when missing
func upsertAnswer(m *model.Match, name, questionID string) *model.PlayerAnswers {
	if a := m.GetAnswer(name, questionID); a != nil {
		return a
	}
	m.PlayersAnswers = append(m.PlayersAnswers, model.PlayerAnswers{Name: name, QuestionID: questionID})
	return &m.PlayersAnswers[len(m.PlayersAnswers)-1]
}

func cloneAnswer(a *model.PlayerAnswers) model.PlayerAnswers {
	c := *a
	c.QCMAnswers = slices.Clone(a.QCMAnswers)
	if a.QREAnswer != nil {
		v := *a.QREAnswer
		c.QREAnswer = &v
	}
	return c
}

func applyAnswer(dst *model.PlayerAnswers, src model.PlayerAnswers) {
	dst.QCMAnswers = slices.Clone(src.QCMAnswers)
	dst.QRLAnswer = src.QRLAnswer
	dst.QREAnswer = nil
	if src.QREAnswer != nil {
		v := *src.QREAnswer
		dst.QREAnswer = &v
	}
	dst.IsTypingQrl = src.IsTypingQrl
}

// UpdatePlayerAnswers records a player's in-progress answer. A final answer is
// frozen: later updates to it are ignored.
func (c *Controller) UpdatePlayerAnswers(code model.AccessCode, answer model.PlayerAnswers) ([]model.PlayerAnswers, error) {
	var answers []model.PlayerAnswers
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "update answer", startedStates...); err != nil {
			return err
		}
		if m.GetPlayer(answer.Name) == nil {
			return model.ErrPlayerNotFound
		}
		a := upsertAnswer(m, answer.Name, answer.QuestionID)
		if !a.IsFinal {
			applyAnswer(a, answer)
		}
		answers = m.Clone().PlayersAnswers
		return nil
	})
	return answers, err
}

// FinalAnswerResult is the state needed to announce a final answer
type FinalAnswerResult struct {
	Answer       model.PlayerAnswers
	AllResponded bool
}

// SetFinalAnswer records the player's answer as final and stamps the time it
// was given. When it completes the question the match timer is zeroed.
func (c *Controller) SetFinalAnswer(code model.AccessCode, answer model.PlayerAnswers) (*FinalAnswerResult, error) {
	var result *FinalAnswerResult
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "set final answer", startedStates...); err != nil {
			return err
		}
		if m.GetPlayer(answer.Name) == nil {
			return model.ErrPlayerNotFound
		}
		a := upsertAnswer(m, answer.Name, answer.QuestionID)
		if !a.IsFinal {
			applyAnswer(a, answer)
			a.IsFinal = true
			a.IsTypingQrl = false
			a.LastAnswerTime = int(c.clock.Now().UnixMilli())
		}

		result = &FinalAnswerResult{
			Answer:       cloneAnswer(a),
			AllResponded: AllPlayersResponded(m, answer.QuestionID),
		}
		if result.AllResponded {
			m.Timer = 0
		}
		return nil
	})
	return result, err
}

// ScoreResult is the state needed to announce a score change
type ScoreResult struct {
	Player model.Player
	Teams  []model.Team
}

// UpdateScore applies the score and bonus count computed by the grader. The
// points gained are recorded on the player's answer to questionID, and team
// scores are recomputed from their members.
func (c *Controller) UpdateScore(code model.AccessCode, update model.Player, questionID string) (*ScoreResult, error) {
	var result *ScoreResult
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "update score", startedStates...); err != nil {
			return err
		}
		p := m.GetPlayer(update.Name)
		if p == nil {
			return model.ErrPlayerNotFound
		}

		score := max(update.Score, 0)
		gained := score - p.Score
		p.Score = score
		p.NBonusObtained = update.NBonusObtained
		if questionID != "" {
			upsertAnswer(m, p.Name, questionID).ObtainedPoints += gained
		}
		c.scoring.RecomputeTeamScores(m)

		snapshot := m.Clone()
		result = &ScoreResult{
			Player: *snapshot.GetPlayer(update.Name),
			Teams:  snapshot.Teams,
		}
		return nil
	})
	return result, err
}

// Teams

func removeMember(team *model.Team, name string) {
	team.Players = slices.DeleteFunc(team.Players, func(p string) bool {
		return model.SameName(p, name)
	})
}

func (c *Controller) withTeams(code model.AccessCode, op string, fn func(m *model.Match) error) ([]model.Team, error) {
	var teams []model.Team
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, op, model.MatchStateWaiting); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		c.scoring.RecomputeTeamScores(m)
		teams = m.Clone().Teams
		return nil
	})
	return teams, err
}

// CreateTeam creates a team with the player as its first member. The player
// leaves any team they were in.
func (c *Controller) CreateTeam(code model.AccessCode, teamName, playerName string) ([]model.Team, error) {
	teamName = strings.TrimSpace(teamName)
	return c.withTeams(code, "create team", func(m *model.Match) error {
		if teamName == "" {
			return fmt.Errorf("%w: team name is required", model.ErrMalformedPayload)
		}
		if m.GetTeam(teamName) != nil {
			return model.ErrTeamNameTaken
		}
		if m.GetPlayer(playerName) == nil {
			return model.ErrPlayerNotFound
		}
		if prior := m.TeamOf(playerName); prior != nil {
			removeMember(prior, playerName)
		}
		m.Teams = append(m.Teams, model.Team{Name: teamName, Players: []string{playerName}})
		return nil
	})
}

// JoinTeam moves the player into an existing team
func (c *Controller) JoinTeam(code model.AccessCode, teamName, playerName string) ([]model.Team, error) {
	return c.withTeams(code, "join team", func(m *model.Match) error {
		team := m.GetTeam(teamName)
		if team == nil {
			return model.ErrTeamNotFound
		}
		if m.GetPlayer(playerName) == nil {
			return model.ErrPlayerNotFound
		}
		if team.HasMember(playerName) {
			return nil
		}
		if len(team.Players) >= model.TeamSize {
			return model.ErrTeamFull
		}
		if prior := m.TeamOf(playerName); prior != nil {
			removeMember(prior, playerName)
		}
		team.Players = append(team.Players, playerName)
		return nil
	})
}

// QuitTeam removes the player from the team. An emptied team is kept until
// the match begins.
func (c *Controller) QuitTeam(code model.AccessCode, teamName, playerName string) ([]model.Team, error) {
	return c.withTeams(code, "quit team", func(m *model.Match) error {
		team := m.GetTeam(teamName)
		if team == nil {
			return model.ErrTeamNotFound
		}
		if !team.HasMember(playerName) {
			return model.ErrNotInTeam
		}
		removeMember(team, playerName)
		return nil
	})
}

// Observers

// AddObserver adds a spectator of the manager's view. Adding an existing
// observer is a no-op; the manager cannot observe their own match.
func (c *Controller) AddObserver(code model.AccessCode, name string) (*model.Match, error) {
	name = strings.TrimSpace(name)
	var snapshot *model.Match
	err := c.registry.With(code, func(m *model.Match) error {
		if err := requireState(m, "add observer", liveStates...); err != nil {
			return err
		}
		if model.SameName(name, m.ManagerName) {
			return model.ErrObserverIsManager
		}
		exists := slices.ContainsFunc(m.Observers, func(o model.Observer) bool {
			return model.SameName(o.Name, name)
		})
		if !exists {
			m.Observers = append(m.Observers, model.Observer{Name: name, ObservedName: m.ManagerName})
		}
		snapshot = m.Clone()
		return nil
	})
	return snapshot, err
}

// RemoveObserver removes a spectator and returns those remaining
func (c *Controller) RemoveObserver(code model.AccessCode, name string) ([]model.Observer, error) {
	var observers []model.Observer
	err := c.registry.With(code, func(m *model.Match) error {
		before := len(m.Observers)
		m.Observers = slices.DeleteFunc(m.Observers, func(o model.Observer) bool {
			return model.SameName(o.Name, name)
		})
		if len(m.Observers) == before {
			return model.ErrObserverNotFound
		}
		observers = slices.Clone(m.Observers)
		return nil
	})
	return observers, err
}

// History

// HistoryRecord summarises the match for the saved match history
func (c *Controller) HistoryRecord(code model.AccessCode) (*model.MatchRecord, error) {
	var record *model.MatchRecord
	err := c.registry.With(code, func(m *model.Match) error {
		best := 0
		for _, p := range m.Players {
			best = max(best, p.Score)
		}
		record = &model.MatchRecord{
			MatchAccessCode: m.AccessCode,
			BestScore:       best,
			StartTime:       m.Begin,
			NumberOfPlayers: len(m.Players),
			GameName:        m.Game.Title,
		}
		return nil
	})
	return record, err
}
