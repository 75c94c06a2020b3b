package redis

import (
	"fmt"

	"github.com/mcoot/quizmatch/internal/model"
)

// Key prefix for all quizmatch data
const keyPrefix = "quizmatch"

// Hash fields of an account
const (
	fieldMoney               = "money"
	fieldGamesPlayed         = "gamesPlayed"
	fieldGamesWon            = "gamesWon"
	fieldAvgQuestionsCorrect = "avgQuestionsCorrect"
	fieldAvgTimePerGame      = "avgTimePerGame"
)

// accountKey returns the Redis key for the HASH of an account's counters
func accountKey(pseudonym string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, pseudonym)
}

// accountHistoryKey returns the Redis key for the LIST of an account's match history
func accountHistoryKey(pseudonym string) string {
	return fmt.Sprintf("%s:account:%s:history", keyPrefix, pseudonym)
}

// accountsIndexKey returns the Redis key for the SET of known pseudonyms
func accountsIndexKey() string {
	return fmt.Sprintf("%s:idx:accounts", keyPrefix)
}

// matchHistoryKey returns the Redis key for the LIST of saved match records
func matchHistoryKey() string {
	return fmt.Sprintf("%s:match_history", keyPrefix)
}

// gameRatingsKey returns the Redis key for the HASH of one rating histogram
func gameRatingsKey(gameID string, dim model.RatingDimension) string {
	return fmt.Sprintf("%s:game:%s:ratings:%s", keyPrefix, gameID, dim)
}

// ratedGamesIndexKey returns the Redis key for the SET of games with ratings
func ratedGamesIndexKey() string {
	return fmt.Sprintf("%s:idx:rated_games", keyPrefix)
}
