package handler

import (
	"net/http"

	"github.com/mcoot/quizmatch/internal/api/response"
	"github.com/mcoot/quizmatch/internal/services/registry"
)

// Health returns a handler reporting liveness and the number of live matches
func Health(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, response.Health{Status: "ok", Matches: reg.Len()})
	}
}
