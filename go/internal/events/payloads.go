package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lila-games/xoxo/go/internal/mark"
)

// Payload types shared between the gateway and the match synchronizer

// BoardSize is the number of cells on the board.
const BoardSize = 9

// DrawSentinel is the winner value the server sends for a drawn round.
const DrawSentinel = "draw"

// MovePayload is the payload of a move intent
type MovePayload struct {
	Position int `json:"position"`
}

// ServerErrorPayload is the payload the server sends when it rejects an intent
type ServerErrorPayload struct {
	Error string `json:"error"`
}

// StatePayload is the raw authoritative snapshot as it arrives on the wire.
// Every field is optional.
type StatePayload struct {
	Board         json.RawMessage `json:"board,omitempty"`
	Marks         map[string]any  `json:"marks,omitempty"`
	Players       map[string]any  `json:"players,omitempty"`
	Mark          any             `json:"mark,omitempty"`
	Turn          any             `json:"turn,omitempty"`
	Winner        any             `json:"winner,omitempty"`
	NextGameStart any             `json:"nextGameStart,omitempty"`
	Deadline      any             `json:"deadline,omitempty"`
}

// Winner is the outcome reported by a snapshot
type Winner struct {
	Mark mark.Mark
	Draw bool
}

// Declared reports whether the round has an outcome.
func (w Winner) Declared() bool {
	return w.Draw || w.Mark.Valid()
}

func (w Winner) String() string {
	if w.Draw {
		return DrawSentinel
	}
	return w.Mark.String()
}

// TimingKind says which timestamp a snapshot carried
type TimingKind int

const (
	TimingNone TimingKind = iota
	TimingDeadline
	TimingNextGameStart
)

// Snapshot is a decoded, normalized state push
type Snapshot struct {
	HasBoard bool
	Board    [BoardSize]mark.Mark
	Marks    map[string]mark.Mark
	Turn     mark.Mark
	Winner   Winner
	Timing   TimingKind
	At       time.Time
}

// MarkFor returns the mark assigned to a participant, if the snapshot has one.
func (s *Snapshot) MarkFor(participantID string) (mark.Mark, bool) {
	m, ok := s.Marks[participantID]
	if !ok || !m.Valid() {
		return mark.None, false
	}
	return m, true
}

// DecodeError is returned for a push payload that cannot be decoded
type DecodeError struct {
	Kind string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeMove serializes a move intent for the given cell
func EncodeMove(position int) ([]byte, error) {
	if position < 0 || position >= BoardSize {
		return nil, fmt.Errorf("position %d out of range", position)
	}
	return json.Marshal(MovePayload{Position: position})
}

// DecodeServerError extracts the message from a server rejection
func DecodeServerError(data []byte) (string, error) {
	var payload ServerErrorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &DecodeError{Kind: "error", Err: err}
	}
	return payload.Error, nil
}

// DecodeState parses and normalizes a state push
func DecodeState(data []byte) (*Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &DecodeError{Kind: "state", Err: errors.New("empty payload")}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload StatePayload
	if err := dec.Decode(&payload); err != nil {
		return nil, &DecodeError{Kind: "state", Err: err}
	}

	snap := &Snapshot{
		Marks: make(map[string]mark.Mark),
	}

	// "players" is what older servers call the assignment map
	for id, raw := range payload.Players {
		snap.Marks[id] = mark.Normalize(raw)
	}
	for id, raw := range payload.Marks {
		snap.Marks[id] = mark.Normalize(raw)
	}

	if len(payload.Board) > 0 && string(payload.Board) != "null" {
		board, err := decodeBoard(payload.Board)
		if err != nil {
			return nil, &DecodeError{Kind: "state", Err: err}
		}
		snap.Board = board
		snap.HasBoard = true
	}

	snap.Turn = snap.resolve(payload.Mark)
	if !snap.Turn.Valid() {
		snap.Turn = snap.resolve(payload.Turn)
	}

	if s, ok := payload.Winner.(string); ok && strings.EqualFold(strings.TrimSpace(s), DrawSentinel) {
		snap.Winner = Winner{Draw: true}
	} else {
		snap.Winner = Winner{Mark: snap.resolve(payload.Winner)}
	}

	if at, ok := epoch(payload.Deadline); ok {
		snap.Timing = TimingDeadline
		snap.At = at
	} else if at, ok := epoch(payload.NextGameStart); ok {
		snap.Timing = TimingNextGameStart
		snap.At = at
	}

	return snap, nil
}

// resolve normalizes a raw mark value, falling back to a participant id lookup
func (s *Snapshot) resolve(raw any) mark.Mark {
	if m := mark.Normalize(raw); m.Valid() {
		return m
	}
	if id, ok := raw.(string); ok {
		if m, ok := s.Marks[id]; ok {
			return m
		}
	}
	return mark.None
}

func decodeBoard(raw json.RawMessage) ([BoardSize]mark.Mark, error) {
	var board [BoardSize]mark.Mark

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var cells []any
	if err := dec.Decode(&cells); err != nil {
		return board, fmt.Errorf("board: %w", err)
	}

	// Rows of three, as the server stores them
	if len(cells) == 3 {
		flat := make([]any, 0, BoardSize)
		for i, row := range cells {
			r, ok := row.([]any)
			if !ok || len(r) != 3 {
				return board, fmt.Errorf("board: row %d is not a 3-cell row", i)
			}
			flat = append(flat, r...)
		}
		cells = flat
	}

	if len(cells) != BoardSize {
		return board, fmt.Errorf("board: expected %d cells, got %d", BoardSize, len(cells))
	}

	for i, c := range cells {
		board[i] = mark.Normalize(c)
	}
	return board, nil
}

// epoch converts a raw epoch-seconds value to a time. Zero and negative
// values count as absent.
func epoch(raw any) (time.Time, bool) {
	var secs float64
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		secs = f
	case float64:
		secs = v
	case string:
		f, err := json.Number(strings.TrimSpace(v)).Float64()
		if err != nil {
			return time.Time{}, false
		}
		secs = f
	default:
		return time.Time{}, false
	}

	if secs <= 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, false
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))), true
}
