package handler

import (
	"errors"
	"net/http"

	"github.com/mcoot/quizmatch/internal/api/apierr"
	"github.com/mcoot/quizmatch/internal/model"
)

func writeError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// invalidBody reports a body that request.Decode rejected
func invalidBody(w http.ResponseWriter) {
	apierr.WriteError(w, apierr.NewInvalidRequestError("Invalid request body"))
}

// joinError swaps an unknown code for the bilingual join-page error
func joinError(err error) error {
	if errors.Is(err, model.ErrMatchNotFound) {
		return apierr.ErrJoinInvalidCode
	}
	return err
}
