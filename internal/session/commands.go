package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcoot/quizmatch/internal/model"
)

// Command is a decoded, validated inbound event
type Command interface {
	// Code is the match the command targets, or "" when it has none
	Code() model.AccessCode
	Validate() error
}

// Inbound is a command together with the connection that sent it
type Inbound struct {
	ConnID  string
	Event   model.EventType
	Command Command
}

// Clients name the access code differently per event. Each
// embedded ref carries one spelling.

type roomIDRef struct {
	RoomID model.AccessCode `json:"roomId"`
}

func (r roomIDRef) Code() model.AccessCode { return r.RoomID }
func (r roomIDRef) Validate() error        { return requireCode(r.RoomID) }

type accessCodeRef struct {
	AccessCode model.AccessCode `json:"accessCode"`
}

func (r accessCodeRef) Code() model.AccessCode { return r.AccessCode }
func (r accessCodeRef) Validate() error        { return requireCode(r.AccessCode) }

type matchCodeRef struct {
	MatchAccessCode model.AccessCode `json:"matchAccessCode"`
}

func (r matchCodeRef) Code() model.AccessCode { return r.MatchAccessCode }
func (r matchCodeRef) Validate() error        { return requireCode(r.MatchAccessCode) }

type idRef struct {
	ID model.AccessCode `json:"id"`
}

func (r idRef) Code() model.AccessCode { return r.ID }
func (r idRef) Validate() error        { return requireCode(r.ID) }

func requireCode(code model.AccessCode) error {
	if strings.TrimSpace(string(code)) == "" {
		return fmt.Errorf("%w: access code is required", model.ErrMalformedPayload)
	}
	return nil
}

func requireField(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", model.ErrMalformedPayload, field)
	}
	return nil
}

// Room membership

type JoinMatch struct {
	roomIDRef
	Name string `json:"name"`
}

func (c *JoinMatch) Validate() error {
	if err := c.roomIDRef.Validate(); err != nil {
		return err
	}
	return requireField(c.Name, "name")
}

type JoinMatchObserver struct {
	accessCodeRef
	Name string `json:"name"`
}

func (c *JoinMatchObserver) Validate() error {
	if err := c.accessCodeRef.Validate(); err != nil {
		return err
	}
	return requireField(c.Name, "name")
}

type RemovePlayer struct {
	roomIDRef
	Name          string `json:"name"`
	HasPlayerLeft bool   `json:"hasPlayerLeft"`
}

func (c *RemovePlayer) Validate() error {
	if err := c.roomIDRef.Validate(); err != nil {
		return err
	}
	return requireField(c.Name, "name")
}

type RemoveObserver struct {
	accessCodeRef
	ObserverName string `json:"observerName"`
}

func (c *RemoveObserver) Validate() error {
	if err := c.accessCodeRef.Validate(); err != nil {
		return err
	}
	return requireField(c.ObserverName, "observerName")
}

// Chat

// SendMessage is relayed to the room as sent
type SendMessage struct {
	matchCodeRef
	Message json.RawMessage `json:"-"`
}

func (c *SendMessage) keepRaw(data []byte) { c.Message = json.RawMessage(data) }

type ChangeChatAccessibility struct {
	matchCodeRef
	Players []model.Player `json:"players"`
}

// Match phases

type SwitchQuestion struct {
	accessCodeRef
	CurrentQuestionIndex *int `json:"currentQuestionIndex"`
}

func (c *SwitchQuestion) Validate() error {
	if err := c.accessCodeRef.Validate(); err != nil {
		return err
	}
	if c.CurrentQuestionIndex == nil {
		return fmt.Errorf("%w: currentQuestionIndex is required", model.ErrMalformedPayload)
	}
	return nil
}

type BeginMatch struct{ idRef }
type CancelGame struct{ idRef }
type FinishMatch struct{ idRef }
type PanicModeActivated struct{ idRef }
type BeginQrlEvaluation struct{ idRef }
type FinishQrlEvaluation struct{ idRef }

type UpdateMoney struct {
	idRef
	WinnerPlayerName string `json:"winnerPlayerName"`
}

// Answers and scores

type UpdateAnswer struct {
	matchCodeRef
	PlayerAnswers model.PlayerAnswers `json:"playerAnswers"`
}

func (c *UpdateAnswer) Validate() error {
	if err := c.matchCodeRef.Validate(); err != nil {
		return err
	}
	return requireField(c.PlayerAnswers.Name, "playerAnswers.name")
}

type SetFinalAnswer struct {
	matchCodeRef
	PlayerAnswers model.PlayerAnswers `json:"playerAnswers"`
}

func (c *SetFinalAnswer) Validate() error {
	if err := c.matchCodeRef.Validate(); err != nil {
		return err
	}
	return requireField(c.PlayerAnswers.Name, "playerAnswers.name")
}

type UpdateScore struct {
	matchCodeRef
	Player     model.Player `json:"player"`
	QuestionID string       `json:"questionId"`
}

func (c *UpdateScore) Validate() error {
	if err := c.matchCodeRef.Validate(); err != nil {
		return err
	}
	return requireField(c.Player.Name, "player.name")
}

type PlayerLeftAfterMatchBegun struct {
	matchCodeRef
	Player                model.Player `json:"player"`
	QuestionID            string       `json:"questionId"`
	HasQrlEvaluationBegun bool         `json:"hasQrlEvaluationBegun"`
}

func (c *PlayerLeftAfterMatchBegun) Validate() error {
	if err := c.matchCodeRef.Validate(); err != nil {
		return err
	}
	return requireField(c.Player.Name, "player.name")
}

type SendChartData struct {
	matchCodeRef
	QuestionChartData json.RawMessage `json:"questionChartData"`
}

// Timers

type StartTimer struct {
	roomIDRef
	Timer        int `json:"timer"`
	TimeInterval int `json:"timeInterval"` // milliseconds
}

type HistogramTime struct {
	roomIDRef
	TimeInterval int `json:"timeInterval"` // milliseconds
}

type StopTimer struct {
	roomIDRef
	IsHistogramTimer bool `json:"isHistogramTimer"`
}

// Teams

type TeamRequest struct {
	accessCodeRef
	TeamName   string `json:"teamName"`
	PlayerName string `json:"playerName"`
}

func (c *TeamRequest) Validate() error {
	if err := c.accessCodeRef.Validate(); err != nil {
		return err
	}
	if err := requireField(c.TeamName, "teamName"); err != nil {
		return err
	}
	return requireField(c.PlayerName, "playerName")
}

type CreateTeam struct{ TeamRequest }
type JoinTeam struct{ TeamRequest }
type QuitTeam struct{ TeamRequest }

// Evaluation

type GameEvaluation struct {
	model.GameEvaluation
}

func (c *GameEvaluation) Code() model.AccessCode { return "" }

func (c *GameEvaluation) Validate() error {
	return requireField(c.GameID, "gameId")
}

var decoders = map[model.EventType]func() Command{
	model.EventJoinMatch:                 func() Command { return &JoinMatch{} },
	model.EventJoinMatchObserver:         func() Command { return &JoinMatchObserver{} },
	model.EventSendMessage:               func() Command { return &SendMessage{} },
	model.EventSwitchQuestion:            func() Command { return &SwitchQuestion{} },
	model.EventUpdateAnswer:              func() Command { return &UpdateAnswer{} },
	model.EventSetFinalAnswer:            func() Command { return &SetFinalAnswer{} },
	model.EventStartTimer:                func() Command { return &StartTimer{} },
	model.EventStopTimer:                 func() Command { return &StopTimer{} },
	model.EventHistogramTime:             func() Command { return &HistogramTime{} },
	model.EventCancelGame:                func() Command { return &CancelGame{} },
	model.EventFinishMatch:               func() Command { return &FinishMatch{} },
	model.EventBeginMatch:                func() Command { return &BeginMatch{} },
	model.EventRemovePlayer:              func() Command { return &RemovePlayer{} },
	model.EventUpdateScore:               func() Command { return &UpdateScore{} },
	model.EventPlayerLeftAfterMatchBegun: func() Command { return &PlayerLeftAfterMatchBegun{} },
	model.EventSendChartData:             func() Command { return &SendChartData{} },
	model.EventBeginQrlEvaluation:        func() Command { return &BeginQrlEvaluation{} },
	model.EventFinishQrlEvaluation:       func() Command { return &FinishQrlEvaluation{} },
	model.EventPanicModeActivated:        func() Command { return &PanicModeActivated{} },
	model.EventChangeChatAccessibility:   func() Command { return &ChangeChatAccessibility{} },
	model.EventCreateTeam:                func() Command { return &CreateTeam{} },
	model.EventJoinTeam:                  func() Command { return &JoinTeam{} },
	model.EventQuitTeam:                  func() Command { return &QuitTeam{} },
	model.EventRemoveObserver:            func() Command { return &RemoveObserver{} },
	model.EventUpdateMoney:               func() Command { return &UpdateMoney{} },
	model.EventGameEvaluation:            func() Command { return &GameEvaluation{} },
}

// Decode turns an inbound payload into a typed command. Clients send either a
// JSON object or a JSON string holding one; both are accepted.
func Decode(event model.EventType, raw []byte) (Command, error) {
	newCommand, ok := decoders[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownEvent, event)
	}

	data, err := normalize(raw)
	if err != nil {
		return nil, err
	}

	cmd := newCommand()
	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrMalformedPayload, event, err)
	}
	if k, ok := cmd.(interface{ keepRaw([]byte) }); ok {
		k.keepRaw(data)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// normalize unwraps a string-encoded payload and checks it is an object
func normalize(raw []byte) ([]byte, error) {
	data := bytes.TrimSpace(raw)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrMalformedPayload, err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: payload must be a JSON object", model.ErrMalformedPayload)
	}
	return data, nil
}
