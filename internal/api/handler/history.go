package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/quizmatch/internal/api/response"
	"github.com/mcoot/quizmatch/internal/services/match"
	"github.com/mcoot/quizmatch/internal/storage"
)

// HistoryHandler handles saved match history endpoints
type HistoryHandler struct {
	matches *match.Controller
	storage storage.Storage
	logger  *slog.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(matches *match.Controller, store storage.Storage, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		matches: matches,
		storage: store,
		logger:  logger.With(slog.String("component", "api-history")),
	}
}

// Save handles POST /api/v1/matches/match/{code}/history
func (h *HistoryHandler) Save(w http.ResponseWriter, r *http.Request) {
	code := codeVar(r)
	record, err := h.matches.HistoryRecord(code)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.storage.SaveMatchRecord(r.Context(), record); err != nil {
		h.logger.Error("failed to save match record",
			slog.String("access_code", string(code)),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	response.Created(w, record)
}

// List handles GET /api/v1/matches/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.storage.ListMatchRecords(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, records)
}

// Clear handles DELETE /api/v1/matches/history
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.ClearMatchRecords(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}
