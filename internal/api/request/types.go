package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/registry"
)

// JoinMatchRequest is the request body for checking whether a player may join
type JoinMatchRequest struct {
	AccessCode model.AccessCode `json:"accessCode"`
	PlayerName string           `json:"playerName"`
}

// PlayerNameValidityRequest is the request body for checking a player name
type PlayerNameValidityRequest struct {
	AccessCode model.AccessCode `json:"accessCode"`
	Name       string           `json:"name"`
}

// AddPlayerRequest is the request body for adding a player to a match
type AddPlayerRequest struct {
	AccessCode model.AccessCode `json:"accessCode"`
	Player     model.Player     `json:"player"`
}

// DeleteAllRequest is the request body for deleting every match
type DeleteAllRequest struct {
	Password string `json:"password"`
}

// CreateMatchRequest is the request body for creating a match
type CreateMatchRequest = registry.Spec

// Decode reads a JSON body into v. Some clients send the body as a JSON
// string holding the object; that form is unwrapped first.
func Decode(body io.Reader, v any) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = []byte(inner)
	}
	return json.Unmarshal(data, v)
}
