package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mcoot/quizmatch/internal/api/apierr"
	"github.com/mcoot/quizmatch/internal/middleware"
)

// Recovery creates panic recovery middleware for the API.
// REST requests get a JSON 500; websocket upgrades get nothing, since the
// connection may already be hijacked.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, r *http.Request, _ any) {
	if websocket.IsWebSocketUpgrade(r) {
		return
	}
	apierr.WriteError(w, apierr.NewInternalError())
}
