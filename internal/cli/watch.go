package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		jsonOutput bool
		observer   string
	)

	cmd := &cobra.Command{
		Use:   "watch [code]",
		Short: "Stream live events over the websocket",
		Long: `Connect to the server websocket and print every frame received.

Without a code only server-wide events arrive, such as matchListUpdated.
With a code and --as, the connection joins that match as an observer of
the given name and receives the room's events as well.

Press Ctrl+C to disconnect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := ""
			if len(args) == 1 {
				code = args[0]
			}
			if code != "" && observer == "" {
				return errors.New("--as is required when watching a match")
			}
			return streamFrames(cmd.Context(), code, observer, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().StringVar(&observer, "as", "", "Observer name used to join the match")

	return cmd
}

// Frame is one received websocket frame
type Frame struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func streamFrames(ctx context.Context, code, observer string, jsonOutput bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, client.WebSocketURL(), nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Close the socket once interrupted so the blocked read returns
	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	if code != "" {
		join := map[string]any{
			"event": "joinMatchObserver",
			"data":  map[string]string{"accessCode": code, "name": observer},
		}
		if err := conn.WriteJSON(join); err != nil {
			return fmt.Errorf("join failed: %w", err)
		}
		if !jsonOutput {
			fmt.Printf("Watching match %s as %s\n", code, observer)
		}
	}

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				if !jsonOutput {
					fmt.Println("Disconnected")
				}
				return nil
			}
			// Closed locally after an interrupt
			if errors.Is(err, net.ErrClosed) {
				if !jsonOutput {
					fmt.Println("\nDisconnected")
				}
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}
		frame.Time = time.Now()
		printFrame(frame, jsonOutput)
	}
}

func printFrame(frame Frame, jsonOutput bool) {
	if jsonOutput {
		jsonData, _ := json.Marshal(frame)
		fmt.Println(string(jsonData))
		return
	}

	timestamp := frame.Time.Format("2006-01-02 15:04:05")
	// Truncate data if it's too long for display
	displayData := string(frame.Data)
	if len(displayData) > 100 {
		displayData = displayData[:100] + "..."
	}
	fmt.Printf("[%s] %s: %s\n", timestamp, frame.Event, displayData)
}
