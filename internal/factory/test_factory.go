package factory

import (
	"time"

	"github.com/mcoot/quizmatch/internal/dependencies/mocks"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/finalizer"
	"github.com/mcoot/quizmatch/internal/services/registry"
	"github.com/mcoot/quizmatch/internal/storage/memory"
	"github.com/mcoot/quizmatch/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, finalizer.NopPublisher{}, mockClock, mockRandom, Config{}, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}

// TestGame returns a small valid game with one question of each type
func TestGame() model.Game {
	return model.Game{
		ID:       "game-1",
		Title:    "Capitales",
		TitleEn:  "Capitals",
		Duration: 20,
		Questions: []model.Question{
			{
				ID:     "q1",
				Type:   model.QuestionTypeQCM,
				Text:   "Capitale de la France ?",
				Points: 10,
				Choices: []model.Choice{
					{Text: "Paris", IsCorrect: true},
					{Text: "Lyon", IsCorrect: false},
				},
			},
			{
				ID:     "q2",
				Type:   model.QuestionTypeQRL,
				Text:   "Décrivez Paris",
				Points: 20,
			},
		},
	}
}

// CreateMatch registers a match on TestGame under code
func (t *TestApp) CreateMatch(code model.AccessCode, priced bool) (*model.Match, error) {
	t.MockRandom.QueueString(string(code))
	spec := registry.Spec{Game: TestGame()}
	if priced {
		spec.IsPricedMatch = true
		spec.PriceMatch = 10
	}
	return t.Registry.Create(spec)
}
