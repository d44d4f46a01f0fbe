package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ChannelConfig holds configuration for the realtime channel
type ChannelConfig struct {
	WriteTimeout     time.Duration
	PongWait         time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	// SettleWindow is how long a fresh channel is watched for the server
	// closing it before any frame arrives, which means the token was refused
	SettleWindow     time.Duration
	RequestTimeout   time.Duration
	MaxMessageSize   int64
	SendBufferSize   int
}

// DefaultChannelConfig returns default channel configuration
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		WriteTimeout:     10 * time.Second,
		PongWait:         60 * time.Second,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		SettleWindow:     250 * time.Millisecond,
		RequestTimeout:   10 * time.Second,
		MaxMessageSize:   64 * 1024,
		SendBufferSize:   64,
	}
}

// outbound is a frame queued for the write pump
type outbound struct {
	data []byte
	done chan error
}

// Socket is an open duplex channel bound to a session
type Socket struct {
	ID     string
	UserID string

	conn      *websocket.Conn
	config    ChannelConfig
	listeners *Registry
	send      chan outbound

	pendingMu sync.Mutex
	pending   map[string]chan *envelope

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	firstFrame     chan struct{}
	firstFrameOnce sync.Once

	ConnectedAt time.Time
}

func newSocket(conn *websocket.Conn, userID string, config ChannelConfig) *Socket {
	s := &Socket{
		ID:          uuid.New().String(),
		UserID:      userID,
		conn:        conn,
		config:      config,
		listeners:   NewRegistry(),
		send:        make(chan outbound, config.SendBufferSize),
		pending:     make(map[string]chan *envelope),
		closed:      make(chan struct{}),
		firstFrame:  make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	go s.writePump()
	go s.readPump()

	log.Info().
		Str("socket_id", s.ID).
		Str("user_id", userID).
		Msg("realtime channel established")

	return s
}

// Register installs a listener for push events. Release the returned
// registration on teardown.
func (s *Socket) Register(l Listener) *Registration {
	return s.listeners.Register(l)
}

// Connected reports whether the channel is open
func (s *Socket) Connected() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// Done is closed when the channel shuts down
func (s *Socket) Done() <-chan struct{} {
	return s.closed
}

// JoinMatch subscribes the channel to a match and waits for the server's
// acknowledgment
func (s *Socket) JoinMatch(ctx context.Context, matchID string) (*JoinedMatch, error) {
	resp, err := s.request(ctx, &envelope{MatchJoin: &matchJoin{MatchID: matchID}})
	if err != nil {
		return nil, &ChannelError{Op: "join match", Err: err}
	}
	if resp.Match == nil {
		return nil, &ChannelError{Op: "join match", Err: errors.New("acknowledgment has no match")}
	}

	log.Info().
		Str("socket_id", s.ID).
		Str("match_id", resp.Match.MatchID).
		Int("presences", len(resp.Match.Presences)).
		Msg("joined match")

	return resp.Match, nil
}

// LeaveMatch unsubscribes the channel from a match
func (s *Socket) LeaveMatch(ctx context.Context, matchID string) error {
	if _, err := s.request(ctx, &envelope{MatchLeave: &matchLeave{MatchID: matchID}}); err != nil {
		return &ChannelError{Op: "leave match", Err: err}
	}

	log.Info().
		Str("socket_id", s.ID).
		Str("match_id", matchID).
		Msg("left match")

	return nil
}

// Send transmits a match data message. It returns once the frame has been
// written; it says nothing about whether the server accepted the intent.
func (s *Socket) Send(ctx context.Context, matchID string, opCode OpCode, payload []byte) error {
	data, err := json.Marshal(&envelope{MatchDataSend: &matchDataSend{
		MatchID:  matchID,
		OpCode:   opCode,
		Data:     payload,
		Reliable: true,
	}})
	if err != nil {
		return &SendError{MatchID: matchID, OpCode: opCode, Err: err}
	}

	if err := s.write(ctx, data); err != nil {
		return &SendError{MatchID: matchID, OpCode: opCode, Err: err}
	}

	log.Debug().
		Str("match_id", matchID).
		Int64("op_code", int64(opCode)).
		Int("size", len(payload)).
		Msg("match data sent")

	return nil
}

// Close tears the channel down and drops every listener registration.
// Safe to call more than once.
func (s *Socket) Close() error {
	s.shutdown(nil)
	return nil
}

func (s *Socket) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.closeErr = cause
		close(s.closed)
		s.listeners.Clear()

		deadline := time.Now().Add(s.config.WriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.conn.Close()

		s.pendingMu.Lock()
		for cid, ch := range s.pending {
			close(ch)
			delete(s.pending, cid)
		}
		s.pendingMu.Unlock()

		ev := log.Info().Str("socket_id", s.ID)
		if cause != nil {
			ev = ev.Err(cause)
		}
		ev.Msg("realtime channel closed")
	})
}

// request sends an envelope with a fresh cid and waits for the matching
// response
func (s *Socket) request(ctx context.Context, env *envelope) (*envelope, error) {
	env.Cid = uuid.New().String()
	ch := make(chan *envelope, 1)

	s.pendingMu.Lock()
	if !s.Connected() {
		s.pendingMu.Unlock()
		return nil, ErrChannelClosed
	}
	s.pending[env.Cid] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, env.Cid)
		s.pendingMu.Unlock()
	}()

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	if err := s.write(ctx, data); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrChannelClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// write queues a frame for the write pump and waits until it is written
func (s *Socket) write(ctx context.Context, data []byte) error {
	msg := outbound{data: data, done: make(chan error, 1)}

	select {
	case <-s.closed:
		return ErrChannelClosed
	default:
	}

	select {
	case s.send <- msg:
	case <-s.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-msg.done:
		return err
	case <-s.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writePump handles sending frames to the websocket
func (s *Socket) writePump() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return

		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			err := s.conn.WriteMessage(websocket.TextMessage, msg.data)
			msg.done <- err
			if err != nil {
				log.Error().
					Err(err).
					Str("socket_id", s.ID).
					Msg("failed to write message to websocket")
				s.shutdown(err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("socket_id", s.ID).
					Msg("failed to send ping")
				s.shutdown(err)
				return
			}
		}
	}
}

// readPump handles reading frames from the websocket. It is the only
// goroutine that delivers push events, so listeners see them in order.
func (s *Socket) readPump() {
	s.conn.SetReadLimit(s.config.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("socket_id", s.ID).
					Msg("unexpected websocket close error")
			}
			s.shutdown(err)
			return
		}

		s.firstFrameOnce.Do(func() { close(s.firstFrame) })
		s.conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
		s.handleServerMessage(message)
	}
}

// handleServerMessage routes a frame to a waiting request or to the active
// listener
func (s *Socket) handleServerMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Warn().
			Err(err).
			Str("socket_id", s.ID).
			Msg("dropping malformed realtime frame")
		return
	}

	if env.Cid != "" {
		s.pendingMu.Lock()
		if ch, ok := s.pending[env.Cid]; ok {
			select {
			case ch <- &env:
			default:
			}
		}
		s.pendingMu.Unlock()
		return
	}

	switch {
	case env.MatchData != nil:
		if !s.listeners.dispatchData(*env.MatchData) {
			log.Debug().Str("match_id", env.MatchData.MatchID).Msg("no listener for match data")
		}
	case env.MatchPresenceEvent != nil:
		if !s.listeners.dispatchPresence(*env.MatchPresenceEvent) {
			log.Debug().Str("match_id", env.MatchPresenceEvent.MatchID).Msg("no listener for presence event")
		}
	case env.Error != nil:
		log.Warn().
			Int("code", env.Error.Code).
			Str("message", env.Error.Message).
			Msg("realtime error")
	}
}

// settle watches a freshly opened channel for window. A server that closes
// the channel before sending anything has refused the session.
func (s *Socket) settle(ctx context.Context, window time.Duration) error {
	if window <= 0 {
		return nil
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case <-s.firstFrame:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		s.shutdown(ctx.Err())
		return ctx.Err()
	case <-s.closed:
		select {
		case <-s.firstFrame:
			return fmt.Errorf("%w: %v", ErrChannelClosed, s.closeErr)
		default:
		}
		return fmt.Errorf("%w: closed before first frame: %v", ErrSessionStale, s.closeErr)
	}
}

// isStaleHandshake reports whether a failed dial means the session token
// was refused
func isStaleHandshake(resp *http.Response) bool {
	return resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden)
}
