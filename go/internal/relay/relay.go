package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lila-games/xoxo/go/internal/match"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the view relay
type Config struct {
	URL           string
	SubjectPrefix string // e.g., "xoxo.match"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "xoxo.match",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Conn is the part of a NATS connection the relay publishes through
type Conn interface {
	PublishMsg(m *nats.Msg) error
	Close()
}

// Relay mirrors every match view onto NATS so other processes can follow
// the game. Views are published on core NATS, not JetStream: a late
// subscriber only needs the next one.
type Relay struct {
	conn   Conn
	config Config
}

// Connect dials NATS and returns a relay publishing through it
func Connect(cfg Config) (*Relay, error) {
	opts := []nats.Option{
		nats.Name("xoxo-relay"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject_prefix", cfg.SubjectPrefix).
		Msg("view relay connected")

	return New(nc, cfg), nil
}

// New creates a relay over an existing connection
func New(conn Conn, cfg Config) *Relay {
	return &Relay{conn: conn, config: cfg}
}

// Subject returns the subject views of a match are published on. Dots in
// the match id would split the subject, so they become underscores.
func (r *Relay) Subject(matchID string) string {
	return fmt.Sprintf("%s.%s.view", r.config.SubjectPrefix, strings.ReplaceAll(matchID, ".", "_"))
}

// Publish sends one view. Views outside a match are not published.
func (r *Relay) Publish(view match.View) error {
	if view.MatchID == "" {
		return nil
	}

	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}

	subject := r.Subject(view.MatchID)
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Match-ID": []string{view.MatchID},
			"Phase":    []string{view.Phase.String()},
		},
	}
	if err := r.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish view to %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("phase", view.Phase.String()).
		Msg("view relayed")

	return nil
}

// Observe publishes a view and logs failures. It fits
// match.Synchronizer.OnChange.
func (r *Relay) Observe(view match.View) {
	if err := r.Publish(view); err != nil {
		log.Warn().Err(err).Str("match_id", view.MatchID).Msg("view relay failed")
	}
}

// Close closes the underlying connection
func (r *Relay) Close() error {
	if r.conn != nil {
		r.conn.Close()
	}
	return nil
}
