package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/quizmatch/internal/api"
	"github.com/mcoot/quizmatch/internal/api/apierr"
	"github.com/mcoot/quizmatch/internal/api/response"
	"github.com/mcoot/quizmatch/internal/factory"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/testutil"
)

const adminPassword = "admin-secret"

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = app.Close()
	})

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:       testutil.NopLogger(),
		Registry:     app.Registry,
		Matches:      app.Matches,
		Session:      app.Session,
		Storage:      app.Storage,
		PasswordHash: hash,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func createMatch(t *testing.T, ts *testServer, code model.AccessCode) {
	t.Helper()
	_, err := ts.app.CreateMatch(code, false)
	require.NoError(t, err)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")

	rr := ts.request(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var health response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Matches)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestCreateMatch(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueString("4321")

	rr := ts.request(http.MethodPost, "/api/v1/matches/match", map[string]any{
		"game":          factory.TestGame(),
		"isPricedMatch": true,
		"priceMatch":    5,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var m model.Match
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Equal(t, model.AccessCode("4321"), m.AccessCode)
	assert.Equal(t, model.MatchStateWaiting, m.State)
	assert.Equal(t, model.ManagerName, m.ManagerName)
	assert.True(t, m.IsAccessible)
	assert.Equal(t, 5, m.PriceMatch)
}

func TestCreateMatchAcceptsStringEncodedBody(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueString("4321")

	inner, err := json.Marshal(map[string]any{"game": factory.TestGame()})
	require.NoError(t, err)
	rr := ts.request(http.MethodPost, "/api/v1/matches/match", string(inner))
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestCreateMatchRejectsInvalidGame(t *testing.T) {
	ts := newTestServer(t)

	game := factory.TestGame()
	game.Questions = nil
	rr := ts.request(http.MethodPost, "/api/v1/matches/match", map[string]any{"game": game})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidGame, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/matches/match", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, decodeError(t, rr).Code)
}

func TestListMatches(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")
	_, err := ts.app.Matches.AddPlayer("1234", "alice")
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/v1/matches", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var list []response.MatchSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, model.AccessCode("1234"), list[0].AccessCode)
	assert.Equal(t, "Capitales", list[0].QuizName)
	assert.Equal(t, "Capitals", list[0].QuizNameEn)
	assert.Equal(t, 1, list[0].PlayersCount)
	assert.False(t, list[0].HasStarted)
}

func TestGetMatch(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")

	rr := ts.request(http.MethodGet, "/api/v1/matches/match/1234", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var m model.Match
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	assert.Len(t, m.Game.Questions, 2)

	rr = ts.request(http.MethodGet, "/api/v1/matches/match/9999", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeMatchNotFound, decodeError(t, rr).Code)
}

func TestValidityAndAccessibility(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")

	rr := ts.request(http.MethodGet, "/api/v1/matches/match/validity/1234", nil)
	assert.JSONEq(t, "true", rr.Body.String())
	rr = ts.request(http.MethodGet, "/api/v1/matches/match/validity/9999", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "false", rr.Body.String())

	rr = ts.request(http.MethodGet, "/api/v1/matches/match/accessibility/1234", nil)
	assert.JSONEq(t, "true", rr.Body.String())

	rr = ts.request(http.MethodPatch, "/api/v1/matches/match/accessibility/1234", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "false", rr.Body.String())

	rr = ts.request(http.MethodGet, "/api/v1/matches/match/accessibility/1234", nil)
	assert.JSONEq(t, "false", rr.Body.String())

	rr = ts.request(http.MethodGet, "/api/v1/matches/match/accessibility/9999", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.request(http.MethodPatch, "/api/v1/matches/match/accessibility/9999", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestJoinMatch(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")

	tests := []struct {
		name       string
		setup      func()
		code       string
		playerName string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "success",
			code:       "1234",
			playerName: "alice",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown code",
			code:       "9999",
			playerName: "alice",
			wantStatus: http.StatusNotFound,
			wantCode:   apierr.CodeMatchNotFound,
		},
		{
			name:       "reserved name",
			code:       "1234",
			playerName: "organisateur",
			wantStatus: http.StatusBadRequest,
			wantCode:   apierr.CodePlayerNameUnavailable,
		},
		{
			name: "locked",
			setup: func() {
				_, err := ts.app.Matches.ToggleAccessibility("1234")
				require.NoError(t, err)
			},
			code:       "1234",
			playerName: "alice",
			wantStatus: http.StatusForbidden,
			wantCode:   apierr.CodeMatchLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			rr := ts.request(http.MethodPost, "/api/v1/matches/join-match", map[string]string{
				"accessCode": tt.code,
				"playerName": tt.playerName,
			})
			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode == "" {
				assert.Contains(t, rr.Body.String(), "Successfully joined match")
				return
			}
			apiErr := decodeError(t, rr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.NotEmpty(t, apiErr.Fr)
			assert.NotEmpty(t, apiErr.En)
		})
	}
}

func TestPlayerNameValidity(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")
	_, err := ts.app.Matches.AddPlayer("1234", "alice")
	require.NoError(t, err)

	check := func(name string) *httptest.ResponseRecorder {
		return ts.request(http.MethodPost, "/api/v1/matches/match/playerNameValidity",
			map[string]string{"accessCode": "1234", "name": name})
	}

	assert.JSONEq(t, "true", check("bob").Body.String())
	assert.JSONEq(t, "false", check("Alice").Body.String())
	assert.JSONEq(t, "false", check("Organisateur").Body.String())

	rr := ts.request(http.MethodPost, "/api/v1/matches/match/playerNameValidity",
		map[string]string{"accessCode": "9999", "name": "bob"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAddPlayer(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")

	body := map[string]any{"accessCode": "1234", "player": map[string]any{"name": "alice"}}
	rr := ts.request(http.MethodPost, "/api/v1/matches/match/player", body)
	require.Equal(t, http.StatusNoContent, rr.Code)

	m, err := ts.app.Registry.Get("1234")
	require.NoError(t, err)
	require.Len(t, m.Players, 1)
	assert.Equal(t, "alice", m.Players[0].Name)

	rr = ts.request(http.MethodPost, "/api/v1/matches/match/player", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodePlayerNameUnavailable, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/matches/match/player",
		map[string]any{"accessCode": "1234", "player": map[string]any{"name": " "}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/matches/match/player",
		map[string]any{"accessCode": "9999", "player": map[string]any{"name": "bob"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteMatchReturnsWinner(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")
	_, err := ts.app.Matches.AddPlayer("1234", "alice")
	require.NoError(t, err)
	_, err = ts.app.Matches.AddPlayer("1234", "bob")
	require.NoError(t, err)
	_, err = ts.app.Matches.Begin("1234", model.ManagerName)
	require.NoError(t, err)
	_, err = ts.app.Matches.UpdateScore("1234", model.Player{Name: "bob", Score: 20}, "q1")
	require.NoError(t, err)

	rr := ts.request(http.MethodDelete, "/api/v1/matches/match/1234", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.DeleteMatchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "bob", resp.WinnerPlayerName)
	assert.False(t, ts.app.Registry.Exists("1234"))

	rr = ts.request(http.MethodDelete, "/api/v1/matches/match/1234", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteAllMatches(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")
	createMatch(t, ts, "5678")

	rr := ts.request(http.MethodDelete, "/api/v1/matches", map[string]string{"password": "nope"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, apierr.CodeUnauthorized, apiErr.Code)
	assert.Equal(t, "Bad password", apiErr.Message)
	assert.Equal(t, 2, ts.app.Registry.Len())

	rr = ts.request(http.MethodDelete, "/api/v1/matches", map[string]string{"password": adminPassword})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.DeleteAllResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Deleted)
	assert.Zero(t, ts.app.Registry.Len())
}

func TestMatchHistory(t *testing.T) {
	ts := newTestServer(t)
	createMatch(t, ts, "1234")
	_, err := ts.app.Matches.AddPlayer("1234", "alice")
	require.NoError(t, err)

	rr := ts.request(http.MethodPost, "/api/v1/matches/match/1234/history", nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/matches/match/9999/history", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/matches/history", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var records []model.MatchRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, model.AccessCode("1234"), records[0].MatchAccessCode)
	assert.Equal(t, "Capitales", records[0].GameName)
	assert.Equal(t, 1, records[0].NumberOfPlayers)

	rr = ts.request(http.MethodDelete, "/api/v1/matches/history", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/matches/history", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	assert.Empty(t, records)
}

func TestPanicsReturnInternalError(t *testing.T) {
	ts := newTestServer(t)

	// A nil session makes the finalize path panic; recovery answers with JSON
	router := api.NewRouter(api.RouterConfig{
		Logger:   testutil.NopLogger(),
		Registry: ts.app.Registry,
		Matches:  ts.app.Matches,
	})
	createMatch(t, ts, "1234")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/matches/match/1234", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, apierr.CodeInternalError, decodeError(t, rr).Code)
}
