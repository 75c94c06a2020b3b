package registry

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/dependencies/random"
	"github.com/mcoot/quizmatch/internal/model"
)

const (
	// AccessCodeLength is the length of generated access codes
	AccessCodeLength = 4
	// AccessCodeAlphabet is the characters used in access codes
	AccessCodeAlphabet = "0123456789"
)

// Spec describes a match to create
type Spec struct {
	Game          model.Game `json:"game"`
	ManagerName   string     `json:"managerName"`
	ManagerID     string     `json:"managerId"`
	IsTeamMatch   bool       `json:"isTeamMatch"`
	IsPricedMatch bool       `json:"isPricedMatch"`
	IsFriendMatch bool       `json:"isFriendMatch"`
	PriceMatch    int        `json:"priceMatch"`
}

type entry struct {
	mu      sync.Mutex
	match   *model.Match
	deleted bool
}

// Registry holds every active match, indexed by access code. The registry
// lock only guards the index; each match has its own lock, taken by With.
type Registry struct {
	mu      sync.RWMutex
	matches map[model.AccessCode]*entry

	clock  clock.Clock
	random random.Random
	logger *slog.Logger
}

// New creates an empty Registry
func New(clk clock.Clock, rnd random.Random, logger *slog.Logger) *Registry {
	return &Registry{
		matches: make(map[model.AccessCode]*entry),
		clock:   clk,
		random:  rnd,
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// Create validates the spec and registers a new match under a fresh code
func (r *Registry) Create(spec Spec) (*model.Match, error) {
	if err := spec.Game.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.ManagerName) == "" {
		spec.ManagerName = model.ManagerName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Resample until the code is unused
	var code model.AccessCode
	for {
		code = model.AccessCode(r.random.String(AccessCodeLength, AccessCodeAlphabet))
		if _, exists := r.matches[code]; !exists {
			break
		}
		r.logger.Debug("access code collision, resampling", slog.String("access_code", string(code)))
	}

	match := &model.Match{
		AccessCode:           code,
		Game:                 spec.Game,
		State:                model.MatchStateWaiting,
		Players:              []model.Player{},
		Teams:                []model.Team{},
		Observers:            []model.Observer{},
		BannedNames:          []string{},
		PlayersAnswers:       []model.PlayerAnswers{},
		CurrentQuestionIndex: -1,
		IsAccessible:         true,
		ManagerName:          spec.ManagerName,
		ManagerID:            spec.ManagerID,
		IsTeamMatch:          spec.IsTeamMatch,
		IsPricedMatch:        spec.IsPricedMatch,
		IsFriendMatch:        spec.IsFriendMatch,
		PriceMatch:           spec.PriceMatch,
		CreatedAt:            r.clock.Now(),
	}
	r.matches[code] = &entry{match: match}

	r.logger.Info("match created",
		slog.String("access_code", string(code)),
		slog.String("game", spec.Game.Title),
		slog.String("manager", spec.ManagerName))

	return match.Clone(), nil
}

func (r *Registry) lookup(code model.AccessCode) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.matches[code]
	return e, ok
}

// With runs fn with exclusive access to the match. fn must not call back into
// the registry for the same code.
func (r *Registry) With(code model.AccessCode, fn func(m *model.Match) error) error {
	e, ok := r.lookup(code)
	if !ok {
		return model.ErrMatchNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return model.ErrMatchNotFound
	}
	return fn(e.match)
}

// Get returns a snapshot of the match
func (r *Registry) Get(code model.AccessCode) (*model.Match, error) {
	var snapshot *model.Match
	err := r.With(code, func(m *model.Match) error {
		snapshot = m.Clone()
		return nil
	})
	return snapshot, err
}

// Exists reports whether a match is registered under code
func (r *Registry) Exists(code model.AccessCode) bool {
	_, ok := r.lookup(code)
	return ok
}

// IsAccessible reports whether the match accepts new players
func (r *Registry) IsAccessible(code model.AccessCode) (bool, error) {
	var accessible bool
	err := r.With(code, func(m *model.Match) error {
		accessible = m.IsAccessible
		return nil
	})
	return accessible, err
}

// ExistsAndAccessible reports whether the match exists and is unlocked
func (r *Registry) ExistsAndAccessible(code model.AccessCode) bool {
	accessible, err := r.IsAccessible(code)
	return err == nil && accessible
}

// Delete removes the match and returns its final state
func (r *Registry) Delete(code model.AccessCode) (*model.Match, error) {
	r.mu.Lock()
	e, ok := r.matches[code]
	if ok {
		delete(r.matches, code)
	}
	r.mu.Unlock()

	if !ok {
		return nil, model.ErrMatchNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = true

	r.logger.Info("match deleted", slog.String("access_code", string(code)))
	return e.match.Clone(), nil
}

// DeleteAll removes every match and returns their final states
func (r *Registry) DeleteAll() []*model.Match {
	r.mu.Lock()
	entries := r.matches
	r.matches = make(map[model.AccessCode]*entry)
	r.mu.Unlock()

	removed := make([]*model.Match, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		e.deleted = true
		removed = append(removed, e.match.Clone())
		e.mu.Unlock()
	}
	sortByCode(removed)

	r.logger.Info("all matches deleted", slog.Int("count", len(removed)))
	return removed
}

// List returns snapshots of every match, ordered by access code. Matches
// created or deleted while listing may or may not be included.
func (r *Registry) List() []*model.Match {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.matches))
	for _, e := range r.matches {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]*model.Match, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.match.Clone())
		}
		e.mu.Unlock()
	}
	sortByCode(out)
	return out
}

// Len returns the number of active matches
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

func sortByCode(matches []*model.Match) {
	slices.SortFunc(matches, func(a, b *model.Match) int {
		return strings.Compare(string(a.AccessCode), string(b.AccessCode))
	})
}
