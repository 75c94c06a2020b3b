package model

import (
	"slices"
	"strings"
	"time"
)

// AccessCode is the 4-digit identifier players use to join a match
type AccessCode string

// MatchState represents the phase a match is in
type MatchState string

const (
	MatchStateWaiting    MatchState = "waiting"     // Room open, manager configuring
	MatchStateBegun      MatchState = "begun"       // Started, first question not yet shown
	MatchStateInQuestion MatchState = "in_question" // A question is being answered
	MatchStateEvaluating MatchState = "evaluating"  // Manager is grading free responses
	MatchStateFinished   MatchState = "finished"
	MatchStateCancelled  MatchState = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s MatchState) IsTerminal() bool {
	return s == MatchStateFinished || s == MatchStateCancelled
}

// Reserved names never become players when they join a room
const (
	ManagerName = "Organisateur"
	TesterName  = "Testeur"
)

// TeamSize is the number of members in a complete team
const TeamSize = 2

// Player is a scored participant of a match
type Player struct {
	Name           string `json:"name"`
	IsActive       bool   `json:"isActive"`
	Score          int    `json:"score"`
	NBonusObtained int    `json:"nBonusObtained"`
	ChatBlocked    bool   `json:"chatBlocked"`
}

// Team groups players in a team match
type Team struct {
	Name    string   `json:"name"`
	Players []string `json:"players"`
	Score   int      `json:"score"`
}

// HasMember reports whether the named player belongs to the team
func (t *Team) HasMember(name string) bool {
	for _, p := range t.Players {
		if SameName(p, name) {
			return true
		}
	}
	return false
}

// Observer spectates the manager's view
type Observer struct {
	Name         string `json:"name"`
	ObservedName string `json:"observedName"`
}

// PlayerAnswers is one player's answer to one question
type PlayerAnswers struct {
	Name           string   `json:"name"`
	QuestionID     string   `json:"questionId"`
	QCMAnswers     []int    `json:"qcmAnswers,omitempty"`
	QRLAnswer      string   `json:"qrlAnswer,omitempty"`
	QREAnswer      *float64 `json:"qreAnswer,omitempty"`
	IsFinal        bool     `json:"final"`
	IsTypingQrl    bool     `json:"isTypingQrl"`
	LastAnswerTime int      `json:"lastAnswerTime"`
	ObtainedPoints int      `json:"obtainedPoints"`
}

// Match is the in-memory state of one live session
type Match struct {
	AccessCode           AccessCode      `json:"accessCode"`
	Game                 Game            `json:"game"`
	State                MatchState      `json:"state"`
	Players              []Player        `json:"players"`
	Teams                []Team          `json:"teams"`
	Observers            []Observer      `json:"observers"`
	BannedNames          []string        `json:"bannedNames"`
	PlayersAnswers       []PlayerAnswers `json:"playersAnswers"`
	CurrentQuestionIndex int             `json:"currentQuestionIndex"`
	Timer                int             `json:"timer"`
	PanicMode            bool            `json:"panicMode"`
	IsEvaluatingQrl      bool            `json:"isEvaluatingQrl"`
	IsAccessible         bool            `json:"isAccessible"`
	Begin                time.Time       `json:"begin,omitzero"`
	ManagerName          string          `json:"managerName"`
	ManagerID            string          `json:"managerId"`
	IsTeamMatch          bool            `json:"isTeamMatch"`
	IsPricedMatch        bool            `json:"isPricedMatch"`
	IsFriendMatch        bool            `json:"isFriendMatch"`
	PriceMatch           int             `json:"priceMatch"`
	NbPlayersJoined      int             `json:"nbPlayersJoined"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// SameName compares player names the way the match does: trimmed and
// case-insensitive
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// HasBegun reports whether the match has been started by its manager
func (m *Match) HasBegun() bool {
	return !m.Begin.IsZero()
}

// GetPlayer returns the player with the given name, or nil if not found
func (m *Match) GetPlayer(name string) *Player {
	for i := range m.Players {
		if SameName(m.Players[i].Name, name) {
			return &m.Players[i]
		}
	}
	return nil
}

// ActivePlayers returns the players that have not left
func (m *Match) ActivePlayers() []Player {
	var active []Player
	for _, p := range m.Players {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active
}

// GetTeam returns the team with the given name, or nil if not found
func (m *Match) GetTeam(name string) *Team {
	for i := range m.Teams {
		if SameName(m.Teams[i].Name, name) {
			return &m.Teams[i]
		}
	}
	return nil
}

// TeamOf returns the team the player belongs to, or nil
func (m *Match) TeamOf(playerName string) *Team {
	for i := range m.Teams {
		if m.Teams[i].HasMember(playerName) {
			return &m.Teams[i]
		}
	}
	return nil
}

// IsBanned reports whether the name can no longer be used to join
func (m *Match) IsBanned(name string) bool {
	for _, b := range m.BannedNames {
		if SameName(b, name) {
			return true
		}
	}
	return false
}

// IsReservedName reports whether the name belongs to the manager or a tester
func (m *Match) IsReservedName(name string) bool {
	return m.IsManagerName(name) || SameName(name, TesterName)
}

// IsManagerName reports whether name identifies the manager: either the
// match's manager name or the generic manager alias
func (m *Match) IsManagerName(name string) bool {
	return SameName(name, ManagerName) || SameName(name, m.ManagerName)
}

// TeamsComplete reports whether every team has TeamSize members and the
// teams together hold exactly the active players
func (m *Match) TeamsComplete() bool {
	members := 0
	for _, t := range m.Teams {
		if len(t.Players) != TeamSize {
			return false
		}
		for _, name := range t.Players {
			if p := m.GetPlayer(name); p == nil || !p.IsActive {
				return false
			}
		}
		members += len(t.Players)
	}
	active := m.ActivePlayers()
	if members != len(active) {
		return false
	}
	for _, p := range active {
		if m.TeamOf(p.Name) == nil {
			return false
		}
	}
	return true
}

// CurrentQuestion returns the question under the cursor, or nil before the
// first question
func (m *Match) CurrentQuestion() *Question {
	if m.CurrentQuestionIndex < 0 || m.CurrentQuestionIndex >= len(m.Game.Questions) {
		return nil
	}
	return &m.Game.Questions[m.CurrentQuestionIndex]
}

// GetAnswer returns the player's answer to a question, or nil
func (m *Match) GetAnswer(name, questionID string) *PlayerAnswers {
	for i := range m.PlayersAnswers {
		a := &m.PlayersAnswers[i]
		if a.QuestionID == questionID && SameName(a.Name, name) {
			return a
		}
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with m
func (m *Match) Clone() *Match {
	c := *m
	c.Game.Questions = make([]Question, len(m.Game.Questions))
	for i, q := range m.Game.Questions {
		q.Choices = slices.Clone(q.Choices)
		if q.Range != nil {
			r := *q.Range
			q.Range = &r
		}
		c.Game.Questions[i] = q
	}
	c.Players = slices.Clone(m.Players)
	c.Teams = make([]Team, len(m.Teams))
	for i, t := range m.Teams {
		t.Players = slices.Clone(t.Players)
		c.Teams[i] = t
	}
	c.Observers = slices.Clone(m.Observers)
	c.BannedNames = slices.Clone(m.BannedNames)
	c.PlayersAnswers = make([]PlayerAnswers, len(m.PlayersAnswers))
	for i, a := range m.PlayersAnswers {
		a.QCMAnswers = slices.Clone(a.QCMAnswers)
		if a.QREAnswer != nil {
			v := *a.QREAnswer
			a.QREAnswer = &v
		}
		c.PlayersAnswers[i] = a
	}
	return &c
}
