package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mcoot/quizmatch/internal/api"
	"github.com/mcoot/quizmatch/internal/config"
	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/dependencies/random"
	"github.com/mcoot/quizmatch/internal/services/finalizer"
	"github.com/mcoot/quizmatch/internal/services/match"
	"github.com/mcoot/quizmatch/internal/services/registry"
	"github.com/mcoot/quizmatch/internal/services/scoring"
	"github.com/mcoot/quizmatch/internal/services/timer"
	"github.com/mcoot/quizmatch/internal/session"
	"github.com/mcoot/quizmatch/internal/storage"
	"github.com/mcoot/quizmatch/internal/storage/memory"
	redisstorage "github.com/mcoot/quizmatch/internal/storage/redis"
	"github.com/mcoot/quizmatch/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Registry  *registry.Registry
	Scoring   *scoring.Service
	Matches   *match.Controller
	Timers    *timer.Scheduler
	Publisher finalizer.Publisher
	Finalizer *finalizer.Finalizer

	// Transport and session engine
	Hub     *ws.Hub
	Session *session.Handler

	logger  *slog.Logger
	closers []io.Closer
	loops   sync.WaitGroup
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// NATSConfig enables result publishing when set
	NATSConfig *finalizer.NATSConfig
	// Session and WebSocket fall back to their package defaults field by field
	Session   session.Config
	WebSocket ws.Config
	// TimerInterval replaces a non-positive tick interval sent by a client
	TimerInterval time.Duration
}

// ConfigFrom builds a factory Config from the environment configuration
func ConfigFrom(cfg config.Config, logger *slog.Logger) Config {
	out := Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
		Session: session.Config{
			QueueSize:         cfg.SessionQueueSize,
			BackgroundTimeout: cfg.SessionBackgroundTimeout,
		},
		WebSocket: ws.Config{
			PingInterval:    cfg.WSPingInterval,
			MaxMessageSize:  cfg.WSMaxMessageSize,
			ReadBufferSize:  cfg.WSReadBufferSize,
			WriteBufferSize: cfg.WSWriteBufferSize,
			SendBufferSize:  cfg.WSSendBufferSize,
		},
		TimerInterval: cfg.TimerInterval,
	}

	if cfg.StorageType == StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		if cfg.RedisPoolSize > 0 {
			redisCfg.PoolSize = cfg.RedisPoolSize
		}
		redisCfg.MatchHistoryTTL = cfg.RedisHistoryTTL
		out.RedisConfig = &redisCfg
	}

	if cfg.NATSURL != "" {
		natsCfg := finalizer.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.SubjectPrefix = cfg.NATSSubjectPrefix
		out.NATSConfig = &natsCfg
	}

	return out
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []io.Closer

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	var publisher finalizer.Publisher = finalizer.NopPublisher{}
	if cfg.NATSConfig != nil {
		natsPublisher, err := finalizer.NewNATSPublisher(*cfg.NATSConfig, logger)
		if err != nil {
			_ = closeAll(closers, logger)
			return nil, err
		}
		publisher = natsPublisher
		closers = append(closers, natsPublisher)
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	app := newWithDependencies(store, publisher, clk, rnd, cfg, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	publisher finalizer.Publisher,
	clk clock.Clock,
	rnd random.Random,
	cfg Config,
	logger *slog.Logger,
) *App {
	reg := registry.New(clk, rnd, logger)
	scoringService := scoring.New(logger)
	matchController := match.NewController(reg, scoringService, clk, logger)
	timers := timer.New(clk, logger).WithFallbackInterval(cfg.TimerInterval)
	fin := finalizer.New(store, scoringService, publisher, logger)

	hub := ws.NewHub(cfg.WebSocket, clk, logger)
	sessionHandler := session.New(reg, matchController, timers, fin, store, hub, clk, logger, cfg.Session)
	hub.SetDispatcher(sessionHandler)

	return &App{
		Storage:   store,
		Clock:     clk,
		Random:    rnd,
		Registry:  reg,
		Scoring:   scoringService,
		Matches:   matchController,
		Timers:    timers,
		Publisher: publisher,
		Finalizer: fin,
		Hub:       hub,
		Session:   sessionHandler,
		logger:    logger.With(slog.String("component", "app")),
	}
}

// Router builds the HTTP handler serving the REST API and the websocket
func (a *App) Router(logger *slog.Logger, passwordHash []byte) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:       logger,
		Registry:     a.Registry,
		Matches:      a.Matches,
		Session:      a.Session,
		Storage:      a.Storage,
		PasswordHash: passwordHash,
		WebSocket:    a.Hub,
	})
}

// Start runs the websocket hub and the session engine until ctx is cancelled
func (a *App) Start(ctx context.Context) {
	a.loops.Add(2)
	go func() {
		defer a.loops.Done()
		a.Hub.Run(ctx)
	}()
	go func() {
		defer a.loops.Done()
		a.Session.Run(ctx)
	}()
}

// Close waits for the loops started by Start to exit, lets background work
// finish, then releases external connections. Cancel Start's context first.
func (a *App) Close() error {
	a.loops.Wait()
	a.Session.Drain()
	return closeAll(a.closers, a.logger)
}

func closeAll(closers []io.Closer, logger *slog.Logger) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("failed to close dependency", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
