package finalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher announces finalized match results to other services
type Publisher interface {
	Publish(ctx context.Context, result *Result) error
}

// NopPublisher discards results. It is used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Result) error { return nil }

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns sensible defaults for the result publisher
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "quizmatch.results",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// natsConn is the part of *nats.Conn the publisher uses
type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	IsConnected() bool
	Close()
}

// NATSPublisher publishes each result on <prefix>.<access code>
type NATSPublisher struct {
	conn   natsConn
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With(slog.String("component", "nats"))

	opts := []nats.Option{
		nats.Name("quizmatch"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", slog.String("error", err.Error()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return newNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newNATSPublisher(conn natsConn, prefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject results of the given match are published on
func (p *NATSPublisher) Subject(result *Result) string {
	return fmt.Sprintf("%s.%s", p.prefix, result.AccessCode)
}

func (p *NATSPublisher) Publish(ctx context.Context, result *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	subject := p.Subject(result)
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Access-Code": []string{string(result.AccessCode)},
			"Game-ID":     []string{result.GameID},
		},
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to NATS: %w", err)
	}

	p.logger.Info("published match result",
		slog.String("subject", subject),
		slog.String("winner", result.WinnerPlayerName))
	return nil
}

// Connected reports whether the NATS connection is up
func (p *NATSPublisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
