package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lila-games/xoxo/go/clients"
	"github.com/lila-games/xoxo/go/clients/nakama_client"
	"github.com/lila-games/xoxo/go/internal/identity"
	"github.com/rs/zerolog/log"
)

// Session is an authenticated session
type Session = nakama_client.Session

// AuthClient defines what the gateway needs from the server's REST API
type AuthClient interface {
	AuthenticateDevice(ctx context.Context, deviceID, username string, create bool) (*Session, error)
	SocketURL(token string) string
}

// Credentials identify the local player when authenticating
type Credentials struct {
	Username string
	// DeviceID overrides the stored device id when set
	DeviceID string
}

// Config holds configuration for the gateway
type Config struct {
	ChannelConfig ChannelConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ChannelConfig: DefaultChannelConfig(),
	}
}

// Gateway owns the session and the realtime channel lifecycle
type Gateway struct {
	client AuthClient
	store  identity.Store
	config Config
	dialer *websocket.Dialer
}

// NewGateway creates a new gateway
func NewGateway(client AuthClient, store identity.Store, config Config) *Gateway {
	return &Gateway{
		client: client,
		store:  store,
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.ChannelConfig.HandshakeTimeout,
		},
	}
}

// Connect authenticates the device and remembers its identity for the next
// run. Identity persistence is best-effort.
func (g *Gateway) Connect(ctx context.Context, creds Credentials) (*Session, error) {
	id, err := g.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load stored identity, starting fresh")
		id = &identity.Identity{}
	}

	deviceID := creds.DeviceID
	if deviceID == "" {
		deviceID = id.DeviceID
	}
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	session, err := g.client.AuthenticateDevice(ctx, deviceID, creds.Username, true)
	if err != nil {
		return nil, &AuthError{Username: creds.Username, Err: classifyAuthError(err)}
	}

	id.DeviceID = deviceID
	id.UserID = session.UserID
	id.Username = creds.Username
	if err := g.store.Save(id); err != nil {
		log.Warn().Err(err).Msg("could not persist identity")
	}

	log.Info().
		Str("user_id", session.UserID).
		Bool("created", session.Created).
		Msg("authenticated")

	return session, nil
}

// classifyAuthError maps API failures onto the gateway's sentinels
func classifyAuthError(err error) error {
	var statusErr *clients.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	switch statusErr.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", ErrIdentityInUse, err)
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
		return fmt.Errorf("%w: %w", ErrCredentialsRejected, err)
	}
	return err
}

// OpenChannel dials the realtime channel for a session. A refused handshake
// or a channel closed before its first frame reports ErrSessionStale.
func (g *Gateway) OpenChannel(ctx context.Context, session *Session) (*Socket, error) {
	if session == nil || session.Token == "" {
		return nil, &ChannelError{Op: "open", Err: ErrSessionStale}
	}

	conn, resp, err := g.dialer.DialContext(ctx, g.client.SocketURL(session.Token), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if isStaleHandshake(resp) {
			return nil, &ChannelError{Op: "open", Err: ErrSessionStale}
		}
		return nil, &ChannelError{Op: "open", Err: err}
	}

	socket := newSocket(conn, session.UserID, g.config.ChannelConfig)
	if err := socket.settle(ctx, g.config.ChannelConfig.SettleWindow); err != nil {
		return nil, &ChannelError{Op: "open", Err: err}
	}
	return socket, nil
}

// ConnectAndOpen authenticates and opens a channel, re-authenticating once
// if the first session turns out to be stale
func (g *Gateway) ConnectAndOpen(ctx context.Context, creds Credentials) (*Session, *Socket, error) {
	session, err := g.Connect(ctx, creds)
	if err != nil {
		return nil, nil, err
	}

	socket, err := g.OpenChannel(ctx, session)
	if errors.Is(err, ErrSessionStale) {
		log.Warn().Str("user_id", session.UserID).Msg("session stale, re-authenticating")
		if session, err = g.Connect(ctx, creds); err != nil {
			return nil, nil, err
		}
		socket, err = g.OpenChannel(ctx, session)
	}
	if err != nil {
		return nil, nil, err
	}

	return session, socket, nil
}
