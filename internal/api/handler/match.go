package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/quizmatch/internal/api/apierr"
	"github.com/mcoot/quizmatch/internal/api/request"
	"github.com/mcoot/quizmatch/internal/api/response"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/finalizer"
	"github.com/mcoot/quizmatch/internal/services/match"
	"github.com/mcoot/quizmatch/internal/services/registry"
)

// Session is the part of the session engine the REST surface drives
type Session interface {
	FinalizeMatch(ctx context.Context, code model.AccessCode) (*finalizer.Result, error)
	DeleteAll(ctx context.Context) ([]*model.Match, error)
	AnnounceMatchList()
}

// MatchHandler handles match endpoints
type MatchHandler struct {
	registry     *registry.Registry
	matches      *match.Controller
	session      Session
	passwordHash []byte
	logger       *slog.Logger
}

// NewMatchHandler creates a new match handler. passwordHash is the bcrypt
// hash that guards deleting every match.
func NewMatchHandler(
	registry *registry.Registry,
	matches *match.Controller,
	session Session,
	passwordHash []byte,
	logger *slog.Logger,
) *MatchHandler {
	return &MatchHandler{
		registry:     registry,
		matches:      matches,
		session:      session,
		passwordHash: passwordHash,
		logger:       logger.With(slog.String("component", "api-match")),
	}
}

func codeVar(r *http.Request) model.AccessCode {
	return model.AccessCode(mux.Vars(r)["code"])
}

// List handles GET /api/v1/matches
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, response.MatchSummariesFromModel(h.registry.List()))
}

// Get handles GET /api/v1/matches/match/{code}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.Get(codeVar(r))
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, m)
}

// Validity handles GET /api/v1/matches/match/validity/{code}
func (h *MatchHandler) Validity(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.registry.Exists(codeVar(r)))
}

// Accessibility handles GET /api/v1/matches/match/accessibility/{code}
func (h *MatchHandler) Accessibility(w http.ResponseWriter, r *http.Request) {
	accessible, err := h.registry.IsAccessible(codeVar(r))
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, accessible)
}

// ToggleAccessibility handles PATCH /api/v1/matches/match/accessibility/{code}
func (h *MatchHandler) ToggleAccessibility(w http.ResponseWriter, r *http.Request) {
	code := codeVar(r)
	accessible, err := h.matches.ToggleAccessibility(code)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("match accessibility changed",
		slog.String("access_code", string(code)),
		slog.Bool("accessible", accessible))
	h.session.AnnounceMatchList()
	response.OK(w, accessible)
}

// Join handles POST /api/v1/matches/join-match. It checks, in order, that
// the code exists, the match is unlocked and the name is usable.
func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req request.JoinMatchRequest
	if err := request.Decode(r.Body, &req); err != nil {
		invalidBody(w)
		return
	}

	accessible, err := h.registry.IsAccessible(req.AccessCode)
	if err != nil {
		writeError(w, joinError(err))
		return
	}
	if !accessible {
		writeError(w, apierr.ErrJoinLocked)
		return
	}

	valid, err := h.matches.IsPlayerNameValid(req.AccessCode, req.PlayerName)
	if err != nil {
		writeError(w, joinError(err))
		return
	}
	if !valid {
		writeError(w, apierr.ErrJoinBlocked)
		return
	}

	response.OK(w, response.MessageResponse{Message: "Successfully joined match"})
}

// PlayerNameValidity handles POST /api/v1/matches/match/playerNameValidity
func (h *MatchHandler) PlayerNameValidity(w http.ResponseWriter, r *http.Request) {
	var req request.PlayerNameValidityRequest
	if err := request.Decode(r.Body, &req); err != nil {
		invalidBody(w)
		return
	}

	valid, err := h.matches.IsPlayerNameValid(req.AccessCode, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, valid)
}

// Create handles POST /api/v1/matches/match
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateMatchRequest
	if err := request.Decode(r.Body, &req); err != nil {
		invalidBody(w)
		return
	}

	m, err := h.registry.Create(req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.session.AnnounceMatchList()
	response.Created(w, m)
}

// AddPlayer handles POST /api/v1/matches/match/player
func (h *MatchHandler) AddPlayer(w http.ResponseWriter, r *http.Request) {
	var req request.AddPlayerRequest
	if err := request.Decode(r.Body, &req); err != nil {
		invalidBody(w)
		return
	}
	if strings.TrimSpace(req.Player.Name) == "" {
		writeError(w, apierr.NewInvalidRequestError("player.name is required"))
		return
	}

	if _, err := h.matches.AddPlayer(req.AccessCode, req.Player.Name); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

// Delete handles DELETE /api/v1/matches/match/{code}. The match is removed,
// its room is told the winner, and results are recorded in the background.
func (h *MatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := codeVar(r)
	result, err := h.session.FinalizeMatch(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, response.DeleteMatchResponse{WinnerPlayerName: result.WinnerPlayerName})
}

// DeleteAll handles DELETE /api/v1/matches
func (h *MatchHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	var req request.DeleteAllRequest
	if err := request.Decode(r.Body, &req); err != nil {
		invalidBody(w)
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(req.Password)); err != nil {
		h.logger.Warn("delete all matches rejected", slog.String("error", err.Error()))
		writeError(w, model.ErrBadPassword)
		return
	}

	removed, err := h.session.DeleteAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, response.DeleteAllResponse{Deleted: len(removed)})
}
