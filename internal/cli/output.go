package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case MatchList:
		o.printMatchList(v)
	case Match:
		o.printMatch(v)
	case DeleteResult:
		fmt.Printf("Match deleted. Winner: %s\n", orNone(v.WinnerPlayerName))
	case DeleteAllResult:
		fmt.Printf("Deleted %d match(es)\n", v.Deleted)
	case HistoryList:
		o.printHistory(v)
	case HistoryRecord:
		o.printHistory(HistoryList{v})
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// MatchSummary is one entry of the match list
type MatchSummary struct {
	AccessCode     string `json:"accessCode"`
	QuizName       string `json:"quizName"`
	PlayersCount   int    `json:"playersCount"`
	ObserversCount int    `json:"observersCount"`
	HasStarted     bool   `json:"hasStarted"`
	IsAccessible   bool   `json:"isAccessible"`
	IsPricedMatch  bool   `json:"isPricedMatch"`
	PriceMatch     int    `json:"priceMatch"`
}

// MatchList response type
type MatchList []MatchSummary

// Match response type
type Match struct {
	AccessCode           string `json:"accessCode"`
	State                string `json:"state"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
	Timer                int    `json:"timer"`
	IsAccessible         bool   `json:"isAccessible"`
	ManagerName          string `json:"managerName"`
	IsPricedMatch        bool   `json:"isPricedMatch"`
	PriceMatch           int    `json:"priceMatch"`
	Game                 struct {
		Title     string            `json:"title"`
		Questions []json.RawMessage `json:"questions"`
	} `json:"game"`
	Players []struct {
		Name     string `json:"name"`
		IsActive bool   `json:"isActive"`
		Score    int    `json:"score"`
	} `json:"players"`
	Teams []struct {
		Name    string   `json:"name"`
		Players []string `json:"players"`
		Score   int      `json:"score"`
	} `json:"teams"`
	Observers []struct {
		Name string `json:"name"`
	} `json:"observers"`
}

// DeleteResult response type
type DeleteResult struct {
	WinnerPlayerName string `json:"winnerPlayerName"`
}

// DeleteAllResult response type
type DeleteAllResult struct {
	Deleted int `json:"deleted"`
}

// HistoryRecord response type
type HistoryRecord struct {
	MatchAccessCode string    `json:"matchAccessCode"`
	BestScore       int       `json:"bestScore"`
	StartTime       time.Time `json:"startTime"`
	NumberOfPlayers int       `json:"numberOfPlayers"`
	GameName        string    `json:"gameName"`
}

// HistoryList response type
type HistoryList []HistoryRecord

// HealthResult response type
type HealthResult struct {
	Status  string `json:"status"`
	Matches int    `json:"matches"`
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func (o *Output) printMatchList(list MatchList) {
	if len(list) == 0 {
		fmt.Println("No live matches")
		return
	}
	fmt.Printf("%-6s %-24s %7s %9s %-8s %-6s %s\n", "CODE", "QUIZ", "PLAYERS", "OBSERVERS", "STARTED", "OPEN", "PRICE")
	for _, m := range list {
		price := "-"
		if m.IsPricedMatch {
			price = fmt.Sprintf("%d", m.PriceMatch)
		}
		fmt.Printf("%-6s %-24s %7d %9d %-8t %-6t %s\n",
			m.AccessCode, m.QuizName, m.PlayersCount, m.ObserversCount, m.HasStarted, m.IsAccessible, price)
	}
}

func (o *Output) printMatch(m Match) {
	fmt.Printf("Match: %s\n", m.AccessCode)
	fmt.Printf("Quiz: %s (%d questions)\n", m.Game.Title, len(m.Game.Questions))
	fmt.Printf("State: %s\n", m.State)
	if m.CurrentQuestionIndex >= 0 {
		fmt.Printf("Question: %d\n", m.CurrentQuestionIndex+1)
	}
	if m.Timer > 0 {
		fmt.Printf("Timer: %ds\n", m.Timer)
	}
	fmt.Printf("Manager: %s\n", m.ManagerName)
	fmt.Printf("Open: %t\n", m.IsAccessible)
	if m.IsPricedMatch {
		fmt.Printf("Entry price: %d\n", m.PriceMatch)
	}

	fmt.Printf("Players (%d):\n", len(m.Players))
	for _, p := range m.Players {
		status := ""
		if !p.IsActive {
			status = " [left]"
		}
		fmt.Printf("  - %s: %d points%s\n", p.Name, p.Score, status)
	}

	if len(m.Teams) > 0 {
		fmt.Println("Teams:")
		for _, t := range m.Teams {
			fmt.Printf("  - %s (%s): %d points\n", t.Name, strings.Join(t.Players, ", "), t.Score)
		}
	}

	if len(m.Observers) > 0 {
		names := make([]string, len(m.Observers))
		for i, obs := range m.Observers {
			names[i] = obs.Name
		}
		fmt.Printf("Observers: %s\n", strings.Join(names, ", "))
	}
}

func (o *Output) printHistory(records HistoryList) {
	if len(records) == 0 {
		fmt.Println("No saved matches")
		return
	}
	for _, r := range records {
		fmt.Printf("%s  %-24s code %s, %d player(s), best score %d\n",
			r.StartTime.Format("2006-01-02 15:04"), r.GameName, r.MatchAccessCode, r.NumberOfPlayers, r.BestScore)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
	fmt.Printf("Live matches: %d\n", h.Matches)
}
