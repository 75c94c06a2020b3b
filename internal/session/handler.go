package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/finalizer"
	"github.com/mcoot/quizmatch/internal/services/match"
	"github.com/mcoot/quizmatch/internal/services/registry"
	"github.com/mcoot/quizmatch/internal/services/timer"
	"github.com/mcoot/quizmatch/internal/storage"
)

// ErrStopped is returned when work is submitted after the engine loop exited
var ErrStopped = errors.New("session engine stopped")

// Transport delivers encoded frames to connections
type Transport interface {
	Send(connIDs []string, frame []byte)
	Broadcast(frame []byte)
}

// Config holds engine settings
type Config struct {
	QueueSize         int
	BackgroundTimeout time.Duration
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		QueueSize:         1024,
		BackgroundTimeout: 10 * time.Second,
	}
}

type histogramTarget struct {
	code   model.AccessCode
	connID string
}

// Handler is the session protocol engine. Every command and timer tick is
// applied on the single goroutine started by Run, in the order received.
type Handler struct {
	registry  *registry.Registry
	matches   *match.Controller
	timers    *timer.Scheduler
	finalizer *finalizer.Finalizer
	storage   storage.Storage
	transport Transport
	rooms     *Rooms
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config

	commands chan func()
	stopped  chan struct{}

	// Owned by the engine loop
	announced  map[model.AccessCode]string
	histograms map[timer.Key]histogramTarget

	background sync.WaitGroup
}

// New creates a session Handler
func New(
	registry *registry.Registry,
	matches *match.Controller,
	timers *timer.Scheduler,
	finalizer *finalizer.Finalizer,
	storage storage.Storage,
	transport Transport,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Handler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.BackgroundTimeout <= 0 {
		cfg.BackgroundTimeout = DefaultConfig().BackgroundTimeout
	}
	return &Handler{
		registry:   registry,
		matches:    matches,
		timers:     timers,
		finalizer:  finalizer,
		storage:    storage,
		transport:  transport,
		rooms:      NewRooms(),
		clock:      clock,
		logger:     logger.With(slog.String("component", "session")),
		cfg:        cfg,
		commands:   make(chan func(), cfg.QueueSize),
		stopped:    make(chan struct{}),
		announced:  make(map[model.AccessCode]string),
		histograms: make(map[timer.Key]histogramTarget),
	}
}

// Rooms exposes room membership
func (h *Handler) Rooms() *Rooms {
	return h.rooms
}

// Run processes commands and timer ticks until ctx is cancelled
func (h *Handler) Run(ctx context.Context) {
	h.logger.Info("session engine started")
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.timers.StopAll()
			h.logger.Info("session engine stopped")
			return
		case fn := <-h.commands:
			h.safely("command", fn)
		case tick := <-h.timers.Ticks():
			h.safely("tick", func() { h.HandleTick(tick) })
		}
	}
}

// safely runs fn, recovering and logging a panic so one bad command cannot
// take down the loop
func (h *Handler) safely(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic recovered in session engine",
				slog.String("kind", kind),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}

// enqueue hands fn to the engine loop. It blocks while the queue is full.
func (h *Handler) enqueue(ctx context.Context, fn func()) error {
	select {
	case <-h.stopped:
		return ErrStopped
	default:
	}
	select {
	case h.commands <- fn:
		return nil
	case <-h.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exec runs fn on the engine loop and waits for it to finish
func (h *Handler) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := h.enqueue(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch decodes a frame from a connection and queues it. Undecodable
// frames are answered with an error event to that connection only.
func (h *Handler) Dispatch(connID string, event model.EventType, data json.RawMessage) {
	cmd, err := Decode(event, data)
	if err != nil {
		h.logger.Warn("rejected inbound event",
			slog.String("event", string(event)),
			slog.String("conn_id", connID),
			slog.String("error", err.Error()))
		h.toConn(connID, model.EventError, model.ErrorPayload{Message: err.Error()})
		return
	}

	in := Inbound{ConnID: connID, Event: event, Command: cmd}
	if err := h.enqueue(context.Background(), func() { h.Handle(in) }); err != nil {
		h.logger.Warn("dropped inbound event",
			slog.String("event", string(event)),
			slog.String("conn_id", connID),
			slog.String("error", err.Error()))
	}
}

// Disconnect forgets a closed connection
func (h *Handler) Disconnect(connID string) {
	_ = h.enqueue(context.Background(), func() { h.handleDisconnect(connID) })
}

func (h *Handler) handleDisconnect(connID string) {
	code, ok := h.rooms.Disconnect(connID)
	if !ok {
		return
	}
	key := timer.HistogramKey(code, connID)
	h.timers.Stop(key)
	delete(h.histograms, key)
	h.logger.Debug("connection left room on disconnect",
		slog.String("conn_id", connID),
		slog.String("access_code", string(code)))
}

// HandleTick applies one timer tick. Ticks from replaced or stopped handles,
// or for matches that no longer exist, are dropped.
func (h *Handler) HandleTick(t timer.Tick) {
	if !h.timers.IsCurrent(t.Key, t.Generation) {
		h.logger.Debug("stale tick dropped", slog.String("key", string(t.Key)))
		return
	}

	switch t.Kind {
	case timer.KindCountdown:
		code := model.AccessCode(t.Key)
		if err := h.matches.SetTimer(code, t.Value); err != nil {
			h.timers.Stop(t.Key)
			h.logger.Info("countdown stopped for missing match", slog.String("access_code", string(code)))
			return
		}
		h.toRoom(code, model.EventNewTime, model.TimePayload{RoomID: code, Timer: t.Value})

	case timer.KindElapsed:
		target, ok := h.histograms[t.Key]
		if !ok || !h.registry.Exists(target.code) {
			h.timers.Stop(t.Key)
			delete(h.histograms, t.Key)
			return
		}
		h.toConn(target.connID, model.EventHistogramTime, model.TimePayload{RoomID: target.code, Timer: t.Value})
	}
}

// teardownRoom stops the room's timers and forgets the engine's per-room state
func (h *Handler) teardownRoom(code model.AccessCode) {
	h.timers.StopRoom(code)
	delete(h.announced, code)
	for key, target := range h.histograms {
		if target.code == code {
			delete(h.histograms, key)
		}
	}
}

// FinalizeMatch deletes a match, announces the winner, and records results
// in the background. Broadcasts do not wait for the stats to be stored.
func (h *Handler) FinalizeMatch(ctx context.Context, code model.AccessCode) (*finalizer.Result, error) {
	var result *finalizer.Result
	var ferr error
	if err := h.exec(ctx, func() { result, ferr = h.finalize(code) }); err != nil {
		return nil, err
	}
	return result, ferr
}

func (h *Handler) finalize(code model.AccessCode) (*finalizer.Result, error) {
	m, err := h.registry.Delete(code)
	if err != nil {
		return nil, err
	}
	h.teardownRoom(code)

	result := h.finalizer.Compute(m, h.clock.Now())

	h.toRoom(code, model.EventSendWinnerName, result.WinnerPlayerName)
	members := h.rooms.Evict(code)
	h.toAll(model.EventMatchListUpdated, nil)

	h.goBackground("finalize", func(ctx context.Context) {
		h.finalizer.Record(ctx, result)
		h.sendBalances(ctx, members, result.WinnerPlayerName)
	})

	h.logger.Info("match finalized",
		slog.String("access_code", string(code)),
		slog.String("winner", result.WinnerPlayerName),
		slog.Int("connections", len(members)))
	return result, nil
}

// DeleteAll removes every match, cancelling each room without recording
// results
func (h *Handler) DeleteAll(ctx context.Context) ([]*model.Match, error) {
	var removed []*model.Match
	err := h.exec(ctx, func() {
		removed = h.registry.DeleteAll()
		for _, m := range removed {
			h.teardownRoom(m.AccessCode)
			h.toRoom(m.AccessCode, model.EventGameCanceled, nil)
			h.rooms.Evict(m.AccessCode)
		}
		h.toAll(model.EventMatchListUpdated, nil)
	})
	if err != nil {
		return nil, err
	}
	h.logger.Info("all matches deleted", slog.Int("count", len(removed)))
	return removed, nil
}

// AnnounceMatchList tells every connection that the match list changed
func (h *Handler) AnnounceMatchList() {
	h.toAll(model.EventMatchListUpdated, nil)
}

// sendBalances reads every account balance and sends it to the connections
func (h *Handler) sendBalances(ctx context.Context, connIDs []string, winner string) {
	balances, err := h.finalizer.Balances(ctx)
	if err != nil {
		h.logger.Error("failed to read balances", slog.String("error", err.Error()))
		return
	}
	h.toConns(connIDs, model.EventUpdateMoney, model.MoneyPayload{Array: balances, WinnerPlayerName: winner})
}

// goBackground runs fn off the engine loop with its own timeout
func (h *Handler) goBackground(name string, fn func(ctx context.Context)) {
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic recovered in background task",
					slog.String("task", name),
					slog.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.BackgroundTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// Drain waits for background work such as stats recording to finish
func (h *Handler) Drain() {
	h.background.Wait()
}

// Outbound

func (h *Handler) encode(event model.EventType, data any) ([]byte, error) {
	env := model.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func (h *Handler) toConns(connIDs []string, event model.EventType, data any) {
	if len(connIDs) == 0 {
		return
	}
	frame, err := h.encode(event, data)
	if err != nil {
		h.logger.Error("failed to encode event", slog.String("event", string(event)), slog.String("error", err.Error()))
		return
	}
	h.transport.Send(connIDs, frame)
}

func (h *Handler) toConn(connID string, event model.EventType, data any) {
	h.toConns([]string{connID}, event, data)
}

func (h *Handler) toRoom(code model.AccessCode, event model.EventType, data any) {
	h.toConns(h.rooms.Members(code), event, data)
}

func (h *Handler) toAll(event model.EventType, data any) {
	frame, err := h.encode(event, data)
	if err != nil {
		h.logger.Error("failed to encode event", slog.String("event", string(event)), slog.String("error", err.Error()))
		return
	}
	h.transport.Broadcast(frame)
}
