package match

import (
	"context"
	"errors"

	"github.com/lila-games/xoxo/go/internal/events"
	"github.com/lila-games/xoxo/go/internal/gateway"
	"github.com/lila-games/xoxo/go/internal/mark"
	"github.com/rs/zerolog/log"
)

// Move rejections. None of them changes state or sends anything.
var (
	ErrMatchConcluded = errors.New("match already has a winner")
	ErrNoConnection   = errors.New("no connection")
	ErrStillJoining   = errors.New("still joining the match")
	ErrMovePending    = errors.New("previous move not yet confirmed")
	ErrInvalidCell    = errors.New("cell out of range")
	ErrCellOccupied   = errors.New("cell already taken")
	ErrNotYourTurn    = errors.New("not your turn")
)

// SubmitMove claims a cell for the local player. The cell is filled
// optimistically and the move is sent; the next snapshot confirms or
// overrides it. If the send fails the prediction is rolled back and a
// *gateway.SendError is returned.
func (s *Synchronizer) SubmitMove(ctx context.Context, cell int) error {
	s.mu.Lock()
	if err := s.checkMoveLocked(cell); err != nil {
		s.mu.Unlock()
		return err
	}

	move := &PendingMove{
		CellIndex:     cell,
		PredictedMark: s.predictedMarkLocked(),
		DispatchedAt:  s.clock.Now(),
	}
	s.board[cell] = move.PredictedMark
	boardGen := s.boardGen
	s.pending = move
	s.status = StatusMoveSent
	s.notice = ""
	matchID := s.session.MatchID
	s.mu.Unlock()

	s.notify()

	payload, err := events.EncodeMove(cell)
	if err == nil {
		err = s.channel.Send(ctx, matchID, gateway.OpCodeMove, payload)
	}
	if err == nil {
		log.Debug().
			Str("match_id", matchID).
			Int("cell", cell).
			Stringer("mark", move.PredictedMark).
			Msg("move sent")
		return nil
	}

	s.revertMove(move, boardGen)

	log.Warn().
		Err(err).
		Str("match_id", matchID).
		Int("cell", cell).
		Msg("move could not be sent, prediction reverted")

	var sendErr *gateway.SendError
	if !errors.As(err, &sendErr) {
		err = &gateway.SendError{MatchID: matchID, OpCode: gateway.OpCodeMove, Err: err}
	}
	return err
}

// checkMoveLocked applies the move preconditions in order; the first one
// that fails wins
func (s *Synchronizer) checkMoveLocked(cell int) error {
	switch {
	case s.turn.Winner.Declared():
		return ErrMatchConcluded
	case s.channel == nil || !s.channel.Connected():
		return ErrNoConnection
	case s.session == nil || s.phase == PhaseIdle || s.phase == PhaseJoining:
		return ErrStillJoining
	case s.pending != nil:
		return ErrMovePending
	case cell < 0 || cell >= events.BoardSize:
		return ErrInvalidCell
	case !s.board.Empty(cell):
		return ErrCellOccupied
	}

	// Either mark unknown: let the server decide
	local, turn := s.session.LocalMark, s.turn.TurnMark
	if local.Valid() && turn.Valid() && local != turn {
		return ErrNotYourTurn
	}
	return nil
}

// predictedMarkLocked is the mark a local move is predicted with. Before a
// mark has been assigned, the first player's mark is assumed.
func (s *Synchronizer) predictedMarkLocked() mark.Mark {
	if s.session.LocalMark.Valid() {
		return s.session.LocalMark
	}
	return mark.First
}

// revertMove undoes a prediction after a failed send. The cell is cleared
// only while it still holds the predicted mark on the board the prediction
// was made on; a board replaced by a snapshot in the meantime is left alone.
func (s *Synchronizer) revertMove(move *PendingMove, boardGen uint64) {
	s.mu.Lock()
	if s.boardGen != boardGen {
		s.mu.Unlock()
		return
	}

	if s.board[move.CellIndex] == move.PredictedMark {
		s.board[move.CellIndex] = mark.None
	}
	if s.pending == move {
		s.pending = nil
	}
	s.notice = "move not sent, try again"
	if s.pending == nil && s.phase != PhaseOpponentLeft && s.session != nil {
		s.status = s.statusLocked()
	}
	s.mu.Unlock()

	s.notify()
}
