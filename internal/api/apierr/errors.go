package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/quizmatch/internal/model"
)

// APIError represents an API error response. Errors shown to players carry
// French and English text as well.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fr      string `json:"fr,omitempty"`
	En      string `json:"en,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeInvalidGame           = "INVALID_GAME"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeMatchNotFound         = "MATCH_NOT_FOUND"
	CodeMatchLocked           = "MATCH_LOCKED"
	CodeMatchState            = "INVALID_MATCH_STATE"
	CodeNotManager            = "NOT_MANAGER"
	CodePlayerNotFound        = "PLAYER_NOT_FOUND"
	CodePlayerNameUnavailable = "PLAYER_NAME_UNAVAILABLE"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeInternalError         = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError. Specific sentinels are
// checked before the class they wrap.
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrMatchNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeMatchNotFound, Message: "Match not found"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodePlayerNotFound, Message: "Player not found"}}
	case errors.Is(err, model.ErrPlayerNameTaken), errors.Is(err, model.ErrPlayerNameInvalid):
		return &httpError{http.StatusConflict, APIError{Code: CodePlayerNameUnavailable, Message: err.Error()}}
	case errors.Is(err, model.ErrMatchLocked):
		return &httpError{http.StatusForbidden, APIError{Code: CodeMatchLocked, Message: "Match is locked"}}
	case errors.Is(err, model.ErrNotManager):
		return &httpError{http.StatusForbidden, APIError{Code: CodeNotManager, Message: "Only the manager can perform this action"}}
	case errors.Is(err, model.ErrInvalidGame):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidGame, Message: err.Error()}}

	// Classes
	case errors.Is(err, model.ErrNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeNotFound, Message: err.Error()}}
	case errors.Is(err, model.ErrConflict):
		return &httpError{http.StatusConflict, APIError{Code: CodeConflict, Message: err.Error()}}
	case errors.Is(err, model.ErrInvalidState):
		return &httpError{http.StatusConflict, APIError{Code: CodeMatchState, Message: err.Error()}}
	case errors.Is(err, model.ErrUnauthorized):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Bad password"}}
	case errors.Is(err, model.ErrMalformedPayload):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: err.Error()}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}

// Errors returned by the join-match check, worded for players
var (
	ErrJoinInvalidCode error = &httpError{http.StatusNotFound, APIError{
		Code:    CodeMatchNotFound,
		Message: "Invalid access code or the match has been cancelled by the organizer",
		Fr:      "Code d’accès invalide ou la partie a été annulée par l’organisateur",
		En:      "Invalid access code or the match has been cancelled by the organizer",
	}}
	ErrJoinLocked error = &httpError{http.StatusForbidden, APIError{
		Code:    CodeMatchLocked,
		Message: "The match has been locked by the organizer",
		Fr:      "La partie a été verrouillée par l’organisateur",
		En:      "The match has been locked by the organizer",
	}}
	ErrJoinBlocked error = &httpError{http.StatusBadRequest, APIError{
		Code:    CodePlayerNameUnavailable,
		Message: "You have been blocked from the match by the organizer",
		Fr:      "Vous avez été bloqué de la partie par l’organisateur",
		En:      "You have been blocked from the match by the organizer",
	}}
)
