package model

import "encoding/json"

// EventType identifies a protocol event on the wire
type EventType string

// Inbound events (client to server)
const (
	EventJoinMatch                 EventType = "joinMatchRoom"
	EventJoinMatchObserver         EventType = "joinMatchObserver"
	EventSendMessage               EventType = "sendMessage"
	EventSwitchQuestion            EventType = "switchQuestion"
	EventUpdateAnswer              EventType = "updateAnswer"
	EventSetFinalAnswer            EventType = "setFinalAnswer"
	EventStartTimer                EventType = "startTimer"
	EventStopTimer                 EventType = "stopTimer"
	EventHistogramTime             EventType = "histogramTime"
	EventCancelGame                EventType = "cancelGame"
	EventFinishMatch               EventType = "finishMatch"
	EventBeginMatch                EventType = "beginMatch"
	EventRemovePlayer              EventType = "removePlayer"
	EventUpdateScore               EventType = "updatePlayerScore"
	EventPlayerLeftAfterMatchBegun EventType = "playerLeftAfterMatchBegun"
	EventSendChartData             EventType = "sendChartData"
	EventBeginQrlEvaluation        EventType = "beginQrlEvaluation"
	EventFinishQrlEvaluation       EventType = "finishQrlEvaluation"
	EventPanicModeActivated        EventType = "panicModeActivated"
	EventChangeChatAccessibility   EventType = "changeChatAccessibility"
	EventCreateTeam                EventType = "createTeam"
	EventJoinTeam                  EventType = "joinTeam"
	EventQuitTeam                  EventType = "quitTeam"
	EventRemoveObserver            EventType = "removeObserver"
	EventUpdateMoney               EventType = "updateMoney"
	EventGameEvaluation            EventType = "gameEvaluation"
)

// Outbound events (server to clients). Some share a name with their inbound
// counterpart.
const (
	EventNewPlayer                EventType = "newPlayer"
	EventJoinedMatchObserver      EventType = "joinedMatchObserver"
	EventChatMessage              EventType = "chatMessage"
	EventNextQuestion             EventType = "nextQuestion"
	EventAnswerUpdated            EventType = "answerUpdated"
	EventNewTime                  EventType = "newTime"
	EventGameCanceled             EventType = "gameCanceled"
	EventMatchFinished            EventType = "matchFinished"
	EventJoinBegunMatch           EventType = "joinMatch"
	EventPlayerRemoved            EventType = "playerRemoved"
	EventUpdatedScore             EventType = "updatedPlayerScore"
	EventFinalAnswerSet           EventType = "finalAnswerSet"
	EventPlayerDisabled           EventType = "playerDisabled"
	EventAllPlayersResponded      EventType = "allPlayersResponded"
	EventUpdateChartDataList      EventType = "updateChartDataList"
	EventQrlEvaluationBegun       EventType = "qrlEvaluationBegun"
	EventQrlEvaluationFinished    EventType = "qrlEvaluationFinished"
	EventChatAccessibilityChanged EventType = "chatAccessibilityChanged"
	EventTeamCreated              EventType = "teamCreated"
	EventTeamJoined               EventType = "teamJoined"
	EventTeamQuit                 EventType = "teamQuit"
	EventObserverRemoved          EventType = "observerRemoved"
	EventSendWinnerName           EventType = "sendWinnerName"
	EventMatchListUpdated         EventType = "matchListUpdated"
	EventError                    EventType = "error"
)

// Envelope is one protocol frame on the wire
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Empty is sent for events without data
type Empty struct{}

// RosterPayload is broadcast when the player list changes
type RosterPayload struct {
	Players         []Player `json:"players"`
	IsTeamMatch     bool     `json:"isTeamMatch"`
	Teams           []Team   `json:"teams"`
	IsPricedMatch   bool     `json:"isPricedMatch"`
	PriceMatch      int      `json:"priceMatch"`
	NbPlayersJoined int      `json:"nbPlayersJoined"`
}

// NewRosterPayload builds the roster view of a match
func NewRosterPayload(m *Match) RosterPayload {
	return RosterPayload{
		Players:         m.Players,
		IsTeamMatch:     m.IsTeamMatch,
		Teams:           m.Teams,
		IsPricedMatch:   m.IsPricedMatch,
		PriceMatch:      m.PriceMatch,
		NbPlayersJoined: m.NbPlayersJoined,
	}
}

// ObserverJoinedPayload is broadcast when an observer joins
type ObserverJoinedPayload struct {
	Match             *Match `json:"match"`
	AddedObserverName string `json:"addedObserverName"`
}

// NextQuestionPayload is broadcast when the manager moves the cursor
type NextQuestionPayload struct {
	CurrentQuestionIndex int `json:"currentQuestionIndex"`
}

// TimePayload carries a countdown or histogram tick
type TimePayload struct {
	RoomID AccessCode `json:"roomId"`
	Timer  int        `json:"timer"`
}

// ScorePayload is broadcast after a score update
type ScorePayload struct {
	Teams  []Team  `json:"teams"`
	Player *Player `json:"player"`
}

// PlayerDisabledPayload is broadcast when a player leaves a running match
type PlayerDisabledPayload struct {
	Name    string  `json:"name"`
	Players *Player `json:"players"`
}

// ChatAccessPayload is broadcast when the manager mutes or unmutes players
type ChatAccessPayload struct {
	MatchAccessCode AccessCode `json:"matchAccessCode"`
	Players         []Player   `json:"players"`
}

// MoneyPayload carries account balances after a match
type MoneyPayload struct {
	Array            []AccountBalance `json:"array"`
	WinnerPlayerName string           `json:"winnerPlayerName"`
}

// ErrorPayload is sent to a single connection when its command failed
type ErrorPayload struct {
	Message string `json:"message"`
}
