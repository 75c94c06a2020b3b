package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType identifies how a question is answered
type QuestionType string

const (
	QuestionTypeQCM QuestionType = "QCM" // Multiple choice
	QuestionTypeQRL QuestionType = "QRL" // Free response, evaluated by the manager
	QuestionTypeQRE QuestionType = "QRE" // Numeric estimate within a range
)

// Choice is one option of a QCM question
type Choice struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// EstimateRange bounds the accepted answers of a QRE question
type EstimateRange struct {
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
	GoodAnswer float64 `json:"goodAnswer"`
	Tolerance  float64 `json:"tolerance"`
}

// Question is a single entry in a game
type Question struct {
	ID      string         `json:"id"`
	Type    QuestionType   `json:"type"`
	Text    string         `json:"text"`
	Points  int            `json:"points"`
	Choices []Choice       `json:"choices,omitempty"`
	Range   *EstimateRange `json:"qre,omitempty"`
}

// Game is the quiz definition a match is played from
type Game struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	TitleEn     string     `json:"titleEn"`
	Description string     `json:"description,omitempty"`
	Duration    int        `json:"duration"`
	Questions   []Question `json:"questions"`
}

// Validate checks the game is playable
func (g *Game) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidGame)
	}
	if len(g.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidGame)
	}
	for i, q := range g.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalidGame, i)
		}
		switch q.Type {
		case QuestionTypeQCM, QuestionTypeQRL, QuestionTypeQRE:
		default:
			return fmt.Errorf("%w: question %d has unknown type %q", ErrInvalidGame, i, q.Type)
		}
	}
	return nil
}

// GameRatings holds the per-key vote counters collected from end-of-match
// evaluations
type GameRatings struct {
	Difficulty map[string]int `json:"difficultyMap"`
	Interest   map[string]int `json:"interestMap"`
	Duration   map[string]int `json:"durationMap"`
	Rating     map[string]int `json:"rating"`
}

// RatingDimension names one of the histograms kept per game
type RatingDimension string

const (
	RatingDifficulty RatingDimension = "difficulty"
	RatingInterest   RatingDimension = "interest"
	RatingDuration   RatingDimension = "duration"
	RatingOverall    RatingDimension = "rating"
)

// RatingDimensions lists every dimension in a stable order
var RatingDimensions = []RatingDimension{RatingDifficulty, RatingInterest, RatingDuration, RatingOverall}

// NewGameRatings returns ratings with every histogram allocated
func NewGameRatings() *GameRatings {
	return &GameRatings{
		Difficulty: map[string]int{},
		Interest:   map[string]int{},
		Duration:   map[string]int{},
		Rating:     map[string]int{},
	}
}

// Dimension returns the histogram for d, or nil for an unknown dimension
func (r *GameRatings) Dimension(d RatingDimension) map[string]int {
	switch d {
	case RatingDifficulty:
		return r.Difficulty
	case RatingInterest:
		return r.Interest
	case RatingDuration:
		return r.Duration
	case RatingOverall:
		return r.Rating
	}
	return nil
}

// Dimensions returns every histogram keyed by dimension
func (r *GameRatings) Dimensions() map[RatingDimension]map[string]int {
	out := make(map[RatingDimension]map[string]int, len(RatingDimensions))
	for _, d := range RatingDimensions {
		out[d] = r.Dimension(d)
	}
	return out
}

// Add counts one vote per dimension the evaluation fills in
func (r *GameRatings) Add(eval GameEvaluation) {
	for d, key := range eval.Keys() {
		r.Dimension(d)[string(key)]++
	}
}

// GameEvaluation is a single player's feedback on a game
type GameEvaluation struct {
	GameID     string    `json:"gameId"`
	Difficulty RatingKey `json:"difficulty"`
	Interest   RatingKey `json:"interest"`
	Duration   RatingKey `json:"duration"`
	Rating     RatingKey `json:"rating"`
}

// Keys returns the non-empty rating keys of the evaluation by dimension
func (e GameEvaluation) Keys() map[RatingDimension]RatingKey {
	keys := make(map[RatingDimension]RatingKey, len(RatingDimensions))
	for d, k := range map[RatingDimension]RatingKey{
		RatingDifficulty: e.Difficulty,
		RatingInterest:   e.Interest,
		RatingDuration:   e.Duration,
		RatingOverall:    e.Rating,
	} {
		if k != "" {
			keys[d] = k
		}
	}
	return keys
}

// RatingKey is an evaluation bucket. Clients send it either as a number or as
// a string, so both are accepted.
type RatingKey string

// UnmarshalJSON accepts a JSON string or number
func (k *RatingKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = RatingKey(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: rating key must be a string or number", ErrMalformedPayload)
	}
	*k = RatingKey(n.String())
	return nil
}
