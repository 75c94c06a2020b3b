package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/quizmatch/internal/dependencies/mocks"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/registry"
	"github.com/mcoot/quizmatch/internal/services/scoring"
	"github.com/mcoot/quizmatch/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	registry   *registry.Registry
	controller *Controller
	code       model.AccessCode
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.registry = registry.New(s.clock, s.random, logger)
	s.controller = NewController(s.registry, scoring.New(logger), s.clock, logger)

	s.random.QueueString("1234")
	m, err := s.registry.Create(registry.Spec{
		Game: model.Game{
			ID:    "game-1",
			Title: "Géographie",
			Questions: []model.Question{
				{ID: "q1", Type: model.QuestionTypeQCM, Text: "Q1", Points: 10},
				{ID: "q2", Type: model.QuestionTypeQRL, Text: "Q2", Points: 20},
				{ID: "q3", Type: model.QuestionTypeQRE, Text: "Q3", Points: 30},
			},
		},
		ManagerName: "Organisateur",
	})
	s.Require().NoError(err)
	s.code = m.AccessCode
}

func (s *ControllerSuite) match() *model.Match {
	m, err := s.registry.Get(s.code)
	s.Require().NoError(err)
	return m
}

func (s *ControllerSuite) addPlayers(names ...string) {
	for _, name := range names {
		_, err := s.controller.AddPlayer(s.code, name)
		s.Require().NoError(err)
	}
}

func (s *ControllerSuite) makeTeamMatch() {
	s.Require().NoError(s.registry.With(s.code, func(m *model.Match) error {
		m.IsTeamMatch = true
		return nil
	}))
}

func (s *ControllerSuite) begin() {
	_, err := s.controller.Begin(s.code, "Organisateur")
	s.Require().NoError(err)
}

func (s *ControllerSuite) final(name, questionID string) *FinalAnswerResult {
	res, err := s.controller.SetFinalAnswer(s.code, model.PlayerAnswers{Name: name, QuestionID: questionID, QCMAnswers: []int{0}})
	s.Require().NoError(err)
	return res
}

// State machine tests

func (s *ControllerSuite) TestBeginRequiresManager() {
	_, err := s.controller.Begin(s.code, "alice")
	s.ErrorIs(err, model.ErrNotManager)
	s.Equal(model.MatchStateWaiting, s.match().State)
}

func (s *ControllerSuite) TestBeginSetsCursorAndPrunesEmptyTeams() {
	s.makeTeamMatch()
	s.addPlayers("alice", "bob")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	_, err = s.controller.CreateTeam(s.code, "Bleu", "bob")
	s.Require().NoError(err)
	_, err = s.controller.JoinTeam(s.code, "Rouge", "bob")
	s.Require().NoError(err)

	m, err := s.controller.Begin(s.code, "organisateur")
	s.Require().NoError(err)

	s.Equal(model.MatchStateBegun, m.State)
	s.Equal(0, m.CurrentQuestionIndex)
	s.Equal(s.clock.Now(), m.Begin)
	s.Require().Len(m.Teams, 1)
	s.Equal("Rouge", m.Teams[0].Name)
}

func (s *ControllerSuite) TestBeginTeamMatchRequiresCompleteTeams() {
	s.makeTeamMatch()
	s.addPlayers("alice", "bob", "carl")
	_, err := s.controller.CreateTeam(s.code, "Solo", "alice")
	s.Require().NoError(err)

	_, err = s.controller.Begin(s.code, "Organisateur")
	s.ErrorIs(err, model.ErrTeamsIncomplete)
	s.ErrorIs(err, model.ErrInvalidState)
	s.Equal(model.MatchStateWaiting, s.match().State)

	// A full team still leaves carl without one
	_, err = s.controller.JoinTeam(s.code, "Solo", "bob")
	s.Require().NoError(err)
	_, err = s.controller.Begin(s.code, "Organisateur")
	s.ErrorIs(err, model.ErrTeamsIncomplete)
}

func (s *ControllerSuite) TestBeginTeamMatchWithEveryPlayerPaired() {
	s.makeTeamMatch()
	s.addPlayers("alice", "bob", "carl", "dana")
	for _, step := range []struct{ team, player string }{
		{"Rouge", "alice"}, {"Rouge", "bob"}, {"Bleu", "carl"}, {"Bleu", "dana"},
	} {
		if s.match().GetTeam(step.team) == nil {
			_, err := s.controller.CreateTeam(s.code, step.team, step.player)
			s.Require().NoError(err)
			continue
		}
		_, err := s.controller.JoinTeam(s.code, step.team, step.player)
		s.Require().NoError(err)
	}

	m, err := s.controller.Begin(s.code, "Organisateur")
	s.Require().NoError(err)
	s.Len(m.Teams, 2)
}

func (s *ControllerSuite) TestBeginAcceptsEitherManagerName() {
	s.random.QueueString("5678", "9012")
	for _, requester := range []string{"host", "Organisateur"} {
		m, err := s.registry.Create(registry.Spec{
			Game:        s.match().Game,
			ManagerName: "host",
		})
		s.Require().NoError(err)

		begun, err := s.controller.Begin(m.AccessCode, requester)
		s.Require().NoError(err, requester)
		s.Equal(model.MatchStateBegun, begun.State)
	}

	_, err := s.controller.Begin(s.code, "Testeur")
	s.ErrorIs(err, model.ErrNotManager)
}

func (s *ControllerSuite) TestBeginTwiceFails() {
	s.begin()
	_, err := s.controller.Begin(s.code, "Organisateur")
	s.ErrorIs(err, model.ErrMatchAlreadyBegun)
	s.ErrorIs(err, model.ErrInvalidState)
}

func (s *ControllerSuite) TestSwitchQuestionBeforeBeginFails() {
	err := s.controller.SwitchQuestion(s.code, 1)
	s.ErrorIs(err, model.ErrMatchNotBegun)
	s.Equal(-1, s.match().CurrentQuestionIndex)
}

func (s *ControllerSuite) TestSwitchQuestionClearsFlags() {
	s.begin()
	s.Require().NoError(s.controller.ActivatePanicMode(s.code))
	s.Require().NoError(s.controller.SwitchQuestion(s.code, 2))

	m := s.match()
	s.Equal(2, m.CurrentQuestionIndex)
	s.Equal(model.MatchStateInQuestion, m.State)
	s.False(m.PanicMode)
	s.Equal("q3", m.CurrentQuestion().ID)
}

func (s *ControllerSuite) TestQrlEvaluationRoundTrip() {
	s.begin()
	s.ErrorIs(s.controller.BeginQrlEvaluation(s.code), model.ErrInvalidState)

	s.Require().NoError(s.controller.SwitchQuestion(s.code, 1))
	s.Require().NoError(s.controller.BeginQrlEvaluation(s.code))
	s.True(s.match().IsEvaluatingQrl)
	s.Equal(model.MatchStateEvaluating, s.match().State)

	s.ErrorIs(s.controller.SwitchQuestion(s.code, 2), model.ErrInvalidState)

	s.Require().NoError(s.controller.FinishQrlEvaluation(s.code))
	s.False(s.match().IsEvaluatingQrl)
	s.Equal(model.MatchStateInQuestion, s.match().State)
	s.ErrorIs(s.controller.FinishQrlEvaluation(s.code), model.ErrInvalidState)
}

func (s *ControllerSuite) TestToggleAccessibility() {
	accessible, err := s.controller.ToggleAccessibility(s.code)
	s.Require().NoError(err)
	s.False(accessible)

	accessible, err = s.controller.ToggleAccessibility(s.code)
	s.Require().NoError(err)
	s.True(accessible)
}

func (s *ControllerSuite) TestCancelIsTerminal() {
	s.Require().NoError(s.controller.Cancel(s.code))
	s.Equal(model.MatchStateCancelled, s.match().State)

	s.ErrorIs(s.controller.Cancel(s.code), model.ErrMatchTerminated)
	_, err := s.controller.ToggleAccessibility(s.code)
	s.ErrorIs(err, model.ErrMatchTerminated)
}

func (s *ControllerSuite) TestFinishRequiresStartedMatch() {
	s.ErrorIs(s.controller.Finish(s.code), model.ErrMatchNotBegun)
	s.begin()
	s.Require().NoError(s.controller.Finish(s.code))
	s.Equal(model.MatchStateFinished, s.match().State)
}

func (s *ControllerSuite) TestUnknownMatch() {
	_, err := s.controller.AddPlayer("0000", "alice")
	s.ErrorIs(err, model.ErrMatchNotFound)
	s.ErrorIs(s.controller.SwitchQuestion("0000", 1), model.ErrMatchNotFound)
}

// Player tests

func (s *ControllerSuite) TestAddPlayer() {
	m, err := s.controller.AddPlayer(s.code, "  alice ")
	s.Require().NoError(err)

	s.Require().Len(m.Players, 1)
	s.Equal("alice", m.Players[0].Name)
	s.True(m.Players[0].IsActive)
	s.Equal(1, m.NbPlayersJoined)
	s.Contains(m.BannedNames, "alice")
}

func (s *ControllerSuite) TestAddPlayerRejectsDuplicateCaseInsensitive() {
	s.addPlayers("alice")
	_, err := s.controller.AddPlayer(s.code, "ALICE")
	s.ErrorIs(err, model.ErrPlayerNameTaken)
	s.ErrorIs(err, model.ErrConflict)
}

func (s *ControllerSuite) TestAddPlayerRejectsReservedNames() {
	for _, name := range []string{"Organisateur", "testeur", ""} {
		_, err := s.controller.AddPlayer(s.code, name)
		s.ErrorIs(err, model.ErrPlayerNameInvalid, "name %q", name)
	}
	s.Empty(s.match().Players)
}

func (s *ControllerSuite) TestAddPlayerAfterBeginFails() {
	s.begin()
	_, err := s.controller.AddPlayer(s.code, "late")
	s.ErrorIs(err, model.ErrMatchAlreadyBegun)
}

func (s *ControllerSuite) TestRemovePlayerWhoLeftFreesName() {
	s.addPlayers("alice", "bob")

	m, err := s.controller.RemovePlayer(s.code, "alice", true)
	s.Require().NoError(err)
	s.Nil(m.GetPlayer("alice"))
	s.NotContains(m.BannedNames, "alice")

	valid, err := s.controller.IsPlayerNameValid(s.code, "alice")
	s.Require().NoError(err)
	s.True(valid)

	s.addPlayers("alice")
	s.Equal(3, s.match().NbPlayersJoined)
}

func (s *ControllerSuite) TestKickedPlayerStaysBanned() {
	s.addPlayers("alice")

	_, err := s.controller.RemovePlayer(s.code, "alice", false)
	s.Require().NoError(err)

	valid, err := s.controller.IsPlayerNameValid(s.code, "Alice")
	s.Require().NoError(err)
	s.False(valid)

	_, err = s.controller.AddPlayer(s.code, "alice")
	s.ErrorIs(err, model.ErrPlayerNameInvalid)
}

func (s *ControllerSuite) TestRemovePlayerAfterBeginDeactivates() {
	s.addPlayers("alice", "bob")
	s.begin()

	m, err := s.controller.RemovePlayer(s.code, "alice", true)
	s.Require().NoError(err)
	s.Require().NotNil(m.GetPlayer("alice"))
	s.False(m.GetPlayer("alice").IsActive)
	s.NotContains(m.BannedNames, "alice")
	s.Len(m.ActivePlayers(), 1)
}

func (s *ControllerSuite) TestRemovePlayerDropsTeamMembership() {
	s.addPlayers("alice", "bob")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	_, err = s.controller.JoinTeam(s.code, "Rouge", "bob")
	s.Require().NoError(err)

	m, err := s.controller.RemovePlayer(s.code, "alice", true)
	s.Require().NoError(err)
	s.Equal([]string{"bob"}, m.GetTeam("Rouge").Players)
}

func (s *ControllerSuite) TestRemoveUnknownPlayer() {
	_, err := s.controller.RemovePlayer(s.code, "ghost", true)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ControllerSuite) TestUpdateChatAccess() {
	s.addPlayers("alice", "bob")

	players, err := s.controller.UpdateChatAccess(s.code, []model.Player{{Name: "bob", ChatBlocked: true}, {Name: "ghost", ChatBlocked: true}})
	s.Require().NoError(err)
	s.Len(players, 2)
	s.False(s.match().GetPlayer("alice").ChatBlocked)
	s.True(s.match().GetPlayer("bob").ChatBlocked)
}

// Answer tests

func (s *ControllerSuite) TestAllPlayersRespondedTruthTable() {
	s.addPlayers("alice", "bob", "carl")
	s.begin()

	responded, err := s.controller.AllPlayersResponded(s.code, "q1")
	s.Require().NoError(err)
	s.False(responded)

	s.False(s.final("alice", "q1").AllResponded)

	// An in-progress answer does not count
	_, err = s.controller.UpdatePlayerAnswers(s.code, model.PlayerAnswers{Name: "bob", QuestionID: "q1", QCMAnswers: []int{1}})
	s.Require().NoError(err)
	responded, _ = s.controller.AllPlayersResponded(s.code, "q1")
	s.False(responded)

	s.False(s.final("bob", "q1").AllResponded)

	// A disabled player counts as having responded
	res, err := s.controller.DisablePlayer(s.code, "carl", "q1")
	s.Require().NoError(err)
	s.True(res.AllResponded)

	// Answers to other questions are separate
	responded, _ = s.controller.AllPlayersResponded(s.code, "q2")
	s.False(responded)
}

func (s *ControllerSuite) TestAllPlayersRespondedIsMonotonic() {
	s.addPlayers("alice", "bob")
	s.begin()

	s.final("alice", "q1")
	s.True(s.final("bob", "q1").AllResponded)

	// Further updates to final answers cannot undo the predicate
	_, err := s.controller.UpdatePlayerAnswers(s.code, model.PlayerAnswers{Name: "bob", QuestionID: "q1", QCMAnswers: []int{2}})
	s.Require().NoError(err)
	responded, err := s.controller.AllPlayersResponded(s.code, "q1")
	s.Require().NoError(err)
	s.True(responded)
	s.Equal([]int{0}, s.match().GetAnswer("bob", "q1").QCMAnswers)
}

func (s *ControllerSuite) TestSetFinalAnswerStampsTimeAndZeroesTimer() {
	s.addPlayers("alice")
	s.begin()
	s.Require().NoError(s.controller.SetTimer(s.code, 12))

	res := s.final("alice", "q1")

	s.True(res.Answer.IsFinal)
	s.Equal(int(s.clock.Now().UnixMilli()), res.Answer.LastAnswerTime)
	s.True(res.AllResponded)
	s.Equal(0, s.match().Timer)
}

func (s *ControllerSuite) TestAnswersRequireStartedMatch() {
	s.addPlayers("alice")
	_, err := s.controller.UpdatePlayerAnswers(s.code, model.PlayerAnswers{Name: "alice", QuestionID: "q1"})
	s.ErrorIs(err, model.ErrMatchNotBegun)
}

func (s *ControllerSuite) TestDisablePlayerClearsTyping() {
	s.addPlayers("alice", "bob")
	s.begin()
	_, err := s.controller.UpdatePlayerAnswers(s.code, model.PlayerAnswers{Name: "alice", QuestionID: "q2", QRLAnswer: "Ottawa", IsTypingQrl: true})
	s.Require().NoError(err)

	res, err := s.controller.DisablePlayer(s.code, "alice", "q2")
	s.Require().NoError(err)

	s.False(res.Player.IsActive)
	s.Require().Len(res.Answers, 1)
	s.False(res.Answers[0].IsTypingQrl)
	s.False(res.AllResponded, "bob has not answered")
}

// Score tests

func (s *ControllerSuite) TestUpdateScoreRecomputesTeamScore() {
	s.addPlayers("alice", "bob", "carl")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	_, err = s.controller.JoinTeam(s.code, "Rouge", "bob")
	s.Require().NoError(err)
	_, err = s.controller.CreateTeam(s.code, "Bleu", "carl")
	s.Require().NoError(err)
	s.begin()

	_, err = s.controller.UpdateScore(s.code, model.Player{Name: "alice", Score: 10}, "q1")
	s.Require().NoError(err)
	res, err := s.controller.UpdateScore(s.code, model.Player{Name: "bob", Score: 25, NBonusObtained: 1}, "q1")
	s.Require().NoError(err)

	s.Equal(25, res.Player.Score)
	s.Equal(1, res.Player.NBonusObtained)
	for _, team := range res.Teams {
		sum := 0
		for _, name := range team.Players {
			sum += s.match().GetPlayer(name).Score
		}
		s.Equal(sum, team.Score, "team %s", team.Name)
	}
	s.Equal(35, s.match().GetTeam("Rouge").Score)
	s.Equal(0, s.match().GetTeam("Bleu").Score)
}

func (s *ControllerSuite) TestUpdateScoreRecordsObtainedPoints() {
	s.addPlayers("alice")
	s.begin()
	s.final("alice", "q1")

	_, err := s.controller.UpdateScore(s.code, model.Player{Name: "alice", Score: 10}, "q1")
	s.Require().NoError(err)
	_, err = s.controller.UpdateScore(s.code, model.Player{Name: "alice", Score: 10}, "q2")
	s.Require().NoError(err)

	m := s.match()
	s.Equal(10, m.GetAnswer("alice", "q1").ObtainedPoints)
	s.Equal(0, m.GetAnswer("alice", "q2").ObtainedPoints)
}

func (s *ControllerSuite) TestUpdateScoreUnknownPlayer() {
	s.begin()
	_, err := s.controller.UpdateScore(s.code, model.Player{Name: "ghost", Score: 10}, "q1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Team tests

func (s *ControllerSuite) TestCreateTeamMovesCreator() {
	s.addPlayers("alice")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)

	teams, err := s.controller.CreateTeam(s.code, "Bleu", "alice")
	s.Require().NoError(err)

	s.Require().Len(teams, 2)
	s.Empty(teams[0].Players, "emptied team is kept until begin")
	s.Equal([]string{"alice"}, teams[1].Players)
}

func (s *ControllerSuite) TestCreateTeamDuplicateNameConflicts() {
	s.addPlayers("alice", "bob")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	before := s.match().Teams

	_, err = s.controller.CreateTeam(s.code, "rouge", "bob")
	s.ErrorIs(err, model.ErrTeamNameTaken)
	s.ErrorIs(err, model.ErrConflict)
	s.Equal(before, s.match().Teams)
}

func (s *ControllerSuite) TestJoinFullTeamConflicts() {
	s.addPlayers("alice", "bob", "carl")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	_, err = s.controller.JoinTeam(s.code, "Rouge", "bob")
	s.Require().NoError(err)
	before := s.match().Teams

	_, err = s.controller.JoinTeam(s.code, "Rouge", "carl")
	s.ErrorIs(err, model.ErrTeamFull)
	s.ErrorIs(err, model.ErrConflict)
	s.Equal(before, s.match().Teams)
	s.Nil(s.match().TeamOf("carl"))
}

func (s *ControllerSuite) TestJoinOwnTeamIsNoOp() {
	s.addPlayers("alice", "bob")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	_, err = s.controller.JoinTeam(s.code, "Rouge", "bob")
	s.Require().NoError(err)

	teams, err := s.controller.JoinTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	s.Equal([]string{"alice", "bob"}, teams[0].Players)
}

func (s *ControllerSuite) TestJoinTeamLeavesPriorTeam() {
	s.addPlayers("alice", "bob")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	_, err = s.controller.CreateTeam(s.code, "Bleu", "bob")
	s.Require().NoError(err)

	teams, err := s.controller.JoinTeam(s.code, "Rouge", "bob")
	s.Require().NoError(err)
	s.Equal([]string{"alice", "bob"}, teams[0].Players)
	s.Empty(teams[1].Players)
}

func (s *ControllerSuite) TestJoinUnknownTeam() {
	s.addPlayers("alice")
	_, err := s.controller.JoinTeam(s.code, "Vert", "alice")
	s.ErrorIs(err, model.ErrTeamNotFound)
}

func (s *ControllerSuite) TestQuitTeam() {
	s.addPlayers("alice", "bob")
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)

	_, err = s.controller.QuitTeam(s.code, "Rouge", "bob")
	s.ErrorIs(err, model.ErrNotInTeam)
	_, err = s.controller.QuitTeam(s.code, "Vert", "alice")
	s.ErrorIs(err, model.ErrTeamNotFound)

	teams, err := s.controller.QuitTeam(s.code, "Rouge", "alice")
	s.Require().NoError(err)
	s.Require().Len(teams, 1)
	s.Empty(teams[0].Players)
}

func (s *ControllerSuite) TestTeamsLockedAfterBegin() {
	s.addPlayers("alice")
	s.begin()
	_, err := s.controller.CreateTeam(s.code, "Rouge", "alice")
	s.ErrorIs(err, model.ErrMatchAlreadyBegun)
}

// Observer tests

func (s *ControllerSuite) TestAddObserverIsIdempotent() {
	_, err := s.controller.AddObserver(s.code, "eve")
	s.Require().NoError(err)
	m, err := s.controller.AddObserver(s.code, "eve")
	s.Require().NoError(err)

	s.Equal([]model.Observer{{Name: "eve", ObservedName: "Organisateur"}}, m.Observers)
}

func (s *ControllerSuite) TestAddObserverRejectsManager() {
	_, err := s.controller.AddObserver(s.code, "Organisateur")
	s.ErrorIs(err, model.ErrObserverIsManager)
	s.Empty(s.match().Observers)
}

func (s *ControllerSuite) TestRemoveObserver() {
	_, err := s.controller.AddObserver(s.code, "eve")
	s.Require().NoError(err)
	_, err = s.controller.AddObserver(s.code, "mallory")
	s.Require().NoError(err)

	remaining, err := s.controller.RemoveObserver(s.code, "eve")
	s.Require().NoError(err)
	s.Equal([]model.Observer{{Name: "mallory", ObservedName: "Organisateur"}}, remaining)

	_, err = s.controller.RemoveObserver(s.code, "eve")
	s.ErrorIs(err, model.ErrObserverNotFound)
}

// History tests

func (s *ControllerSuite) TestHistoryRecord() {
	s.addPlayers("alice", "bob")
	s.begin()
	_, err := s.controller.UpdateScore(s.code, model.Player{Name: "bob", Score: 40}, "q1")
	s.Require().NoError(err)

	record, err := s.controller.HistoryRecord(s.code)
	s.Require().NoError(err)
	s.Equal(s.code, record.MatchAccessCode)
	s.Equal(40, record.BestScore)
	s.Equal(2, record.NumberOfPlayers)
	s.Equal("Géographie", record.GameName)
	s.Equal(s.clock.Now(), record.StartTime)
}
