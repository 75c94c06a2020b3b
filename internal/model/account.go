package model

import "time"

// MatchHistoryEntry is appended to a player's account after every match
type MatchHistoryEntry struct {
	GameName   string    `json:"gameName"`
	DatePlayed time.Time `json:"datePlayed"`
	Won        bool      `json:"won"`
}

// AccountStats is the statistics view of a player account. Accounts are keyed
// by the pseudonym the player used in the match.
type AccountStats struct {
	Pseudonym           string              `json:"pseudonym"`
	Money               int                 `json:"money"`
	GamesPlayed         int                 `json:"gamesPlayed"`
	GamesWon            int                 `json:"gamesWon"`
	AvgQuestionsCorrect float64             `json:"avgQuestionsCorrect"`
	AvgTimePerGame      float64             `json:"avgTimePerGame"`
	MatchHistory        []MatchHistoryEntry `json:"matchHistory"`
}

// AccountBalance is the money summary sent to clients at the end of a match
type AccountBalance struct {
	ID    string `json:"id"`
	Money int    `json:"money"`
}

// MatchRecord is a saved summary of a finished match
type MatchRecord struct {
	MatchAccessCode AccessCode `json:"matchAccessCode"`
	BestScore       int        `json:"bestScore"`
	StartTime       time.Time  `json:"startTime"`
	NumberOfPlayers int        `json:"numberOfPlayers"`
	GameName        string     `json:"gameName"`
}
