package timer

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/model"
)

const (
	// DefaultInterval is used when a caller asks for a non-positive interval
	DefaultInterval = time.Second

	tickBufferSize = 256
)

// Kind distinguishes room countdowns from per-connection histogram clocks
type Kind string

const (
	KindCountdown Kind = "countdown"
	KindElapsed   Kind = "elapsed"
)

// Key identifies a timer handle
type Key string

// RoomKey is the key of a room's question countdown
func RoomKey(code model.AccessCode) Key {
	return Key(code)
}

// HistogramKey is the key of one connection's elapsed-time clock in a room
func HistogramKey(code model.AccessCode, connID string) Key {
	return Key(histogramPrefix(code) + connID)
}

func histogramPrefix(code model.AccessCode) string {
	return string(code) + "/"
}

// Tick is emitted once per interval by a live handle
type Tick struct {
	Key        Key
	Kind       Kind
	Value      int
	Expired    bool
	Generation uint64
}

type handle struct {
	generation uint64
	kind       Kind
	stop       chan struct{}
}

// Scheduler owns every running timer. Ticks are not applied by the scheduler
// itself: they are delivered on the channel returned by Ticks, and the
// consumer re-validates each one with IsCurrent before acting on it.
type Scheduler struct {
	clock  clock.Clock
	logger *slog.Logger
	ticks  chan Tick

	fallback time.Duration

	mu         sync.Mutex
	handles    map[Key]*handle
	expired    map[Key]uint64
	generation uint64
}

// New creates a Scheduler
func New(clk clock.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		clock:    clk,
		logger:   logger.With(slog.String("component", "timer")),
		fallback: DefaultInterval,
		ticks:    make(chan Tick, tickBufferSize),
		handles:  make(map[Key]*handle),
		expired:  make(map[Key]uint64),
	}
}

// WithFallbackInterval sets the interval used in place of a non-positive one.
// It must be called before any timer is started.
func (s *Scheduler) WithFallbackInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.fallback = d
	}
	return s
}

// Ticks returns the channel every handle delivers to
func (s *Scheduler) Ticks() <-chan Tick {
	return s.ticks
}

// StartCountdown replaces any handle on key with a countdown from seconds.
// Each tick carries the remaining value; the tick that reaches zero is marked
// Expired and the handle stops itself.
func (s *Scheduler) StartCountdown(key Key, seconds int, interval time.Duration) uint64 {
	return s.start(key, KindCountdown, seconds, interval)
}

// StartElapsed replaces any handle on key with a clock counting up from zero.
// It never expires.
func (s *Scheduler) StartElapsed(key Key, interval time.Duration) uint64 {
	return s.start(key, KindElapsed, 0, interval)
}

func (s *Scheduler) start(key Key, kind Kind, initial int, interval time.Duration) uint64 {
	if interval <= 0 {
		interval = s.fallback
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.handles[key]; ok {
		close(old.stop)
		delete(s.handles, key)
		s.logger.Debug("timer replaced", slog.String("key", string(key)))
	}
	delete(s.expired, key)

	s.generation++
	h := &handle{
		generation: s.generation,
		kind:       kind,
		stop:       make(chan struct{}),
	}
	s.handles[key] = h

	// Created here rather than in run so the ticker is registered with the
	// clock before Start returns.
	ticker := s.clock.NewTicker(interval)
	go s.run(key, h, ticker, initial)

	s.logger.Debug("timer started",
		slog.String("key", string(key)),
		slog.String("kind", string(kind)),
		slog.Int("initial", initial),
		slog.Duration("interval", interval))

	return h.generation
}

func (s *Scheduler) run(key Key, h *handle, ticker clockwork.Ticker, value int) {
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.Chan():
		}

		tick := Tick{Key: key, Kind: h.kind, Generation: h.generation}
		switch h.kind {
		case KindCountdown:
			value--
			if value <= 0 {
				value = 0
				tick.Expired = true
			}
		case KindElapsed:
			value++
		}
		tick.Value = value

		if tick.Expired {
			s.expire(key, h.generation)
		}

		select {
		case s.ticks <- tick:
		case <-h.stop:
			return
		}

		if tick.Expired {
			return
		}
	}
}

// expire retires a countdown that reached zero. Its final tick stays current
// until the key is started or stopped again.
func (s *Scheduler) expire(key Key, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[key]; ok && h.generation == generation {
		delete(s.handles, key)
		s.expired[key] = generation
		s.logger.Debug("timer expired", slog.String("key", string(key)))
	}
}

// Stop cancels the handle on key. Stopping an idle key is a no-op; the return
// value reports whether anything was running.
func (s *Scheduler) Stop(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.expired, key)
	h, ok := s.handles[key]
	if !ok {
		return false
	}
	close(h.stop)
	delete(s.handles, key)
	s.logger.Debug("timer stopped", slog.String("key", string(key)))
	return true
}

// StopRoom cancels the room countdown and every histogram clock of the room
func (s *Scheduler) StopRoom(code model.AccessCode) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := histogramPrefix(code)
	for key := range s.expired {
		if key == RoomKey(code) || strings.HasPrefix(string(key), prefix) {
			delete(s.expired, key)
		}
	}
	stopped := 0
	for key, h := range s.handles {
		if key == RoomKey(code) || strings.HasPrefix(string(key), prefix) {
			close(h.stop)
			delete(s.handles, key)
			stopped++
		}
	}
	if stopped > 0 {
		s.logger.Debug("room timers stopped",
			slog.String("access_code", string(code)),
			slog.Int("stopped", stopped))
	}
	return stopped
}

// StopAll cancels every handle
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, h := range s.handles {
		close(h.stop)
		delete(s.handles, key)
	}
	clear(s.expired)
}

// IsCurrent reports whether a tick of the given generation should still be
// acted on: it belongs to the live handle for key, or to the countdown that
// just expired there.
func (s *Scheduler) IsCurrent(key Key, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[key]; ok {
		return h.generation == generation
	}
	expired, ok := s.expired[key]
	return ok && expired == generation
}

// Active reports whether any handle is running on key
func (s *Scheduler) Active(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[key]
	return ok
}

// Len returns the number of live handles
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
