package response

import (
	"github.com/mcoot/quizmatch/internal/model"
)

// MatchSummary is the reduced view of a match shown in the match list
type MatchSummary struct {
	AccessCode     model.AccessCode `json:"accessCode"`
	QuizName       string           `json:"quizName"`
	QuizNameEn     string           `json:"quizNameEn"`
	PlayersCount   int              `json:"playersCount"`
	ObserversCount int              `json:"observersCount"`
	HasStarted     bool             `json:"hasStarted"`
	IsAccessible   bool             `json:"isAccessible"`
	ManagerName    string           `json:"managerName"`
	ManagerID      string           `json:"managerId"`
	IsFriendMatch  bool             `json:"isFriendMatch"`
	IsPricedMatch  bool             `json:"isPricedMatch"`
	Players        []model.Player   `json:"players"`
	PriceMatch     int              `json:"priceMatch"`
}

// MatchSummaryFromModel converts a model.Match
func MatchSummaryFromModel(m *model.Match) MatchSummary {
	return MatchSummary{
		AccessCode:     m.AccessCode,
		QuizName:       m.Game.Title,
		QuizNameEn:     m.Game.TitleEn,
		PlayersCount:   len(m.Players),
		ObserversCount: len(m.Observers),
		HasStarted:     m.HasBegun(),
		IsAccessible:   m.IsAccessible,
		ManagerName:    m.ManagerName,
		ManagerID:      m.ManagerID,
		IsFriendMatch:  m.IsFriendMatch,
		IsPricedMatch:  m.IsPricedMatch,
		Players:        m.Players,
		PriceMatch:     m.PriceMatch,
	}
}

// MatchSummariesFromModel converts a list of matches
func MatchSummariesFromModel(matches []*model.Match) []MatchSummary {
	out := make([]MatchSummary, len(matches))
	for i, m := range matches {
		out[i] = MatchSummaryFromModel(m)
	}
	return out
}

// MessageResponse carries a plain confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// DeleteMatchResponse is returned when a match is finalized
type DeleteMatchResponse struct {
	WinnerPlayerName string `json:"winnerPlayerName"`
}

// DeleteAllResponse is returned when every match is deleted
type DeleteAllResponse struct {
	Deleted int `json:"deleted"`
}

// Health is returned by the health endpoint
type Health struct {
	Status  string `json:"status"`
	Matches int    `json:"matches"`
}
