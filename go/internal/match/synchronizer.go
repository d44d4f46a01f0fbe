package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/lila-games/xoxo/go/internal/countdown"
	"github.com/lila-games/xoxo/go/internal/events"
	"github.com/lila-games/xoxo/go/internal/gateway"
	"github.com/rs/zerolog/log"
)

// Channel defines what the synchronizer needs from the realtime channel
type Channel interface {
	Connected() bool
	Register(l gateway.Listener) *gateway.Registration
	JoinMatch(ctx context.Context, matchID string) (*gateway.JoinedMatch, error)
	LeaveMatch(ctx context.Context, matchID string) error
	Send(ctx context.Context, matchID string, opCode gateway.OpCode, payload []byte) error
}

// ErrJoinAborted is returned when the match was left while its join was
// still in flight
var ErrJoinAborted = errors.New("join aborted")

// Config holds configuration for the synchronizer
type Config struct {
	Countdown countdown.Config
}

// DefaultConfig returns default synchronizer configuration
func DefaultConfig() Config {
	return Config{
		Countdown: countdown.DefaultConfig(),
	}
}

// Synchronizer reconciles authoritative snapshots pushed by the server with
// the local player's optimistic moves for a single joined match.
//
// Every handler runs to completion under mu. The lock is never held while
// waiting on the channel.
type Synchronizer struct {
	mu      sync.Mutex
	channel Channel
	clock   clockwork.Clock
	timer   *countdown.Timer
	localID string

	session      *Session
	registration *gateway.Registration
	phase        Phase
	board        Board
	boardGen     uint64 // bumped whenever the board is replaced wholesale
	turn         TurnState
	pending      *PendingMove
	roster       Roster
	status       string
	notice       string

	observersMu sync.Mutex
	observers   []func(View)
}

// NewSynchronizer creates an idle synchronizer for the local player
func NewSynchronizer(channel Channel, localPlayerID string, clock clockwork.Clock, config Config) *Synchronizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Synchronizer{
		channel: channel,
		clock:   clock,
		timer:   countdown.New(clock, config.Countdown),
		localID: localPlayerID,
		roster:  make(Roster),
		status:  StatusIdle,
	}
	s.timer.OnTick(func(int) { s.notify() })
	return s
}

// OnChange subscribes fn to a View after every handled event and countdown
// tick. fn is called without any synchronizer lock held.
func (s *Synchronizer) OnChange(fn func(View)) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, fn)
}

// View returns a copy of the current state
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Join subscribes to a match, leaving any previously joined match first. The
// listener is registered before the join request so no snapshot sent right
// after the acknowledgment is missed.
func (s *Synchronizer) Join(ctx context.Context, matchID string) error {
	if err := s.Leave(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.channel == nil || !s.channel.Connected() {
		s.mu.Unlock()
		return ErrNoConnection
	}

	session := &Session{
		MatchID:       matchID,
		LocalPlayerID: s.localID,
		JoinedAt:      s.clock.Now(),
	}
	s.resetLocked()
	s.session = session
	s.phase = PhaseJoining
	s.status = StatusJoining
	s.registration = s.channel.Register(s)
	s.mu.Unlock()

	s.notify()

	joined, err := s.channel.JoinMatch(ctx, matchID)

	s.mu.Lock()
	if s.session != session {
		s.mu.Unlock()
		return ErrJoinAborted
	}

	if err != nil {
		s.registration.Release()
		s.registration = nil
		s.resetLocked()
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("failed to join match %s: %w", matchID, err)
	}

	if joined.Self != nil && joined.Self.UserID != "" && session.LocalPlayerID == "" {
		session.LocalPlayerID = joined.Self.UserID
	}
	for _, p := range joined.Presences {
		s.roster.add(p.UserID)
	}
	s.roster.add(session.LocalPlayerID)

	// A snapshot may already have moved the match on
	if s.phase == PhaseJoining {
		s.phase = PhaseWaiting
		s.status = StatusWaiting
		if s.hasOpponentLocked() {
			s.status = StatusOpponentFound
		}
	}
	s.mu.Unlock()

	log.Info().
		Str("match_id", matchID).
		Str("local_player_id", session.LocalPlayerID).
		Int("presences", len(joined.Presences)).
		Msg("match joined")

	s.notify()
	return nil
}

// Leave stops listening to the current match and asks the server to drop
// the subscription. Events stop reaching the synchronizer before the leave
// request is sent; the request itself is best-effort.
func (s *Synchronizer) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil
	}

	matchID := s.session.MatchID
	if s.registration != nil {
		s.registration.Release()
		s.registration = nil
	}
	s.resetLocked()
	s.mu.Unlock()

	s.notify()

	if s.channel == nil || !s.channel.Connected() {
		return nil
	}
	if err := s.channel.LeaveMatch(ctx, matchID); err != nil {
		log.Warn().
			Err(err).
			Str("match_id", matchID).
			Msg("leave request failed, subscription dropped locally")
	}
	return nil
}

// InviteAI asks the server to seat an automated opponent in the current match
func (s *Synchronizer) InviteAI(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil || s.phase == PhaseIdle || s.phase == PhaseJoining {
		s.mu.Unlock()
		return ErrStillJoining
	}
	if s.channel == nil || !s.channel.Connected() {
		s.mu.Unlock()
		return ErrNoConnection
	}
	matchID := s.session.MatchID
	s.mu.Unlock()

	return s.channel.Send(ctx, matchID, gateway.OpCodeInviteAI, nil)
}

// HandleMatchData handles a data push from the channel
func (s *Synchronizer) HandleMatchData(data gateway.MatchData) {
	s.mu.Lock()
	if !s.currentLocked(data.MatchID) {
		s.mu.Unlock()
		log.Debug().Str("match_id", data.MatchID).Msg("ignoring data for another match")
		return
	}

	switch data.OpCode {
	case gateway.OpCodeState:
		snap, err := events.DecodeState(data.Data)
		if err != nil {
			s.mu.Unlock()
			log.Warn().Err(err).Str("match_id", data.MatchID).Msg("dropping malformed snapshot")
			return
		}
		s.applySnapshotLocked(snap)

	case gateway.OpCodeError:
		msg, err := events.DecodeServerError(data.Data)
		if err != nil {
			log.Warn().Err(err).Str("match_id", data.MatchID).Msg("malformed rejection")
		}
		if msg == "" {
			msg = "move rejected"
		}
		// The board is left for the next snapshot to correct
		s.pending = nil
		s.notice = msg

	default:
		s.mu.Unlock()
		log.Debug().
			Str("match_id", data.MatchID).
			Int64("op_code", int64(data.OpCode)).
			Msg("ignoring unknown op code")
		return
	}
	s.mu.Unlock()

	s.notify()
}

// HandleMatchPresence handles participants joining or leaving
func (s *Synchronizer) HandleMatchPresence(event gateway.MatchPresenceEvent) {
	s.mu.Lock()
	if !s.currentLocked(event.MatchID) {
		s.mu.Unlock()
		log.Debug().Str("match_id", event.MatchID).Msg("ignoring presence for another match")
		return
	}

	opponentLeft := false
	for _, p := range event.Leaves {
		s.roster.remove(p.UserID)
		if p.UserID != s.session.LocalPlayerID {
			opponentLeft = true
		}
	}

	opponentJoined := false
	for _, p := range event.Joins {
		s.roster.add(p.UserID)
		if p.UserID != s.session.LocalPlayerID {
			opponentJoined = true
		}
	}

	switch {
	case opponentLeft:
		s.phase = PhaseOpponentLeft
		s.status = StatusOpponentLeft
		s.timer.Disarm()
		log.Info().Str("match_id", event.MatchID).Msg("opponent left")
	case opponentJoined && s.phase != PhaseOpponentLeft:
		s.status = StatusOpponentFound
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Synchronizer) currentLocked(matchID string) bool {
	return s.session != nil && s.session.MatchID == matchID
}

// applySnapshotLocked replaces the reconciled state with an authoritative
// snapshot
func (s *Synchronizer) applySnapshotLocked(snap *events.Snapshot) {
	if !s.session.LocalMark.Valid() {
		if m, ok := snap.MarkFor(s.session.LocalPlayerID); ok {
			s.session.LocalMark = m
			log.Info().
				Str("match_id", s.session.MatchID).
				Stringer("mark", m).
				Msg("local mark assigned")
		}
	}

	// No board means the previous one still stands
	if snap.HasBoard {
		s.board = Board(snap.Board)
		s.boardGen++
	}

	s.turn = TurnState{
		TurnMark: snap.Turn,
		Winner:   snap.Winner,
		Timing:   snap.Timing,
		Deadline: snap.At,
	}

	if snap.Timing != events.TimingNone {
		s.timer.Arm(snap.At)
	} else {
		s.timer.Disarm()
	}

	s.pending = nil
	s.notice = ""

	if s.phase == PhaseOpponentLeft {
		return
	}

	switch {
	case s.turn.Winner.Declared() || s.board.Full():
		s.phase = PhaseConcluded
	case s.turn.TurnMark.Valid():
		s.phase = PhaseInProgress
	default:
		s.phase = PhaseWaiting
	}
	s.status = s.statusLocked()
}

// statusLocked derives the display status from the turn state
func (s *Synchronizer) statusLocked() string {
	if s.turn.Winner.Draw {
		return StatusDraw
	}
	if s.turn.Winner.Mark.Valid() {
		return winStatus(s.turn.Winner.Mark)
	}
	if s.board.Full() {
		return StatusDraw
	}

	turn := s.turn.TurnMark
	if !turn.Valid() {
		return StatusWaiting
	}
	local := s.session.LocalMark
	if !local.Valid() {
		return turnStatus(turn)
	}
	if turn == local {
		return StatusYourTurn
	}
	return StatusOpponentTurn
}

func (s *Synchronizer) hasOpponentLocked() bool {
	for id := range s.roster {
		if id != s.session.LocalPlayerID {
			return true
		}
	}
	return false
}

func (s *Synchronizer) resetLocked() {
	s.timer.Disarm()
	s.session = nil
	s.phase = PhaseIdle
	s.board = Board{}
	s.boardGen++
	s.turn = TurnState{}
	s.pending = nil
	s.roster = make(Roster)
	s.status = StatusIdle
	s.notice = ""
}

func (s *Synchronizer) viewLocked() View {
	v := View{
		LocalPlayerID:    s.localID,
		Phase:            s.phase,
		Board:            s.board,
		TurnMark:         s.turn.TurnMark,
		Winner:           s.turn.Winner.Mark,
		Draw:             s.turn.Winner.Draw,
		Status:           s.status,
		Notice:           s.notice,
		Participants:     s.roster.IDs(),
		RemainingSeconds: s.timer.Remaining(),
	}
	sort.Strings(v.Participants)

	if s.session != nil {
		v.MatchID = s.session.MatchID
		v.LocalPlayerID = s.session.LocalPlayerID
		v.LocalMark = s.session.LocalMark
	}
	if s.pending != nil {
		p := *s.pending
		v.Pending = &p
	}
	if !s.turn.Deadline.IsZero() {
		d := s.turn.Deadline
		v.Deadline = &d
	}
	return v
}

// notify hands the current view to every observer
func (s *Synchronizer) notify() {
	s.observersMu.Lock()
	observers := make([]func(View), len(s.observers))
	copy(observers, s.observers)
	s.observersMu.Unlock()
	if len(observers) == 0 {
		return
	}

	view := s.View()
	for _, fn := range observers {
		fn(view)
	}
}
