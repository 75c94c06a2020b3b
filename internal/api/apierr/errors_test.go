package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/quizmatch/internal/model"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"match not found", model.ErrMatchNotFound, http.StatusNotFound},
		{"wrapped match not found", fmt.Errorf("finalize: %w", model.ErrMatchNotFound), http.StatusNotFound},
		{"player not found", model.ErrPlayerNotFound, http.StatusNotFound},
		{"team not found", model.ErrTeamNotFound, http.StatusNotFound},
		{"name taken", model.ErrPlayerNameTaken, http.StatusConflict},
		{"team full", model.ErrTeamFull, http.StatusConflict},
		{"locked", model.ErrMatchLocked, http.StatusForbidden},
		{"not manager", model.ErrNotManager, http.StatusForbidden},
		{"already begun", model.ErrMatchAlreadyBegun, http.StatusConflict},
		{"invalid game", model.ErrInvalidGame, http.StatusBadRequest},
		{"malformed", model.ErrUnknownEvent, http.StatusBadRequest},
		{"bad password", model.ErrBadPassword, http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"join locked", ErrJoinLocked, http.StatusForbidden},
		{"join blocked", ErrJoinBlocked, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, Status(tt.err))
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("redis: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotContains(t, rr.Body.String(), "redis")
}

func TestWriteErrorCarriesBilingualText(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, ErrJoinInvalidCode)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeMatchNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Fr, "Code d’accès invalide")
	assert.Contains(t, resp.Error.En, "Invalid access code")
}
