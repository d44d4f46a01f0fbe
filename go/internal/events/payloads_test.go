package events

import (
	"errors"
	"testing"
	"time"

	"github.com/lila-games/xoxo/go/internal/mark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeState_FlatBoard(t *testing.T) {
	snap, err := DecodeState([]byte(`{
		"board": [1, "2", "X", "O", null, 0, "", 2, "1"],
		"marks": {"alice": 1, "bob": "O"},
		"mark": 2,
		"deadline": 1700000000
	}`))
	require.NoError(t, err)

	assert.True(t, snap.HasBoard)
	assert.Equal(t, [BoardSize]mark.Mark{
		mark.First, mark.Second, mark.First,
		mark.Second, mark.None, mark.None,
		mark.None, mark.Second, mark.First,
	}, snap.Board)
	assert.Equal(t, mark.Second, snap.Turn)
	assert.False(t, snap.Winner.Declared())
	assert.Equal(t, TimingDeadline, snap.Timing)
	assert.Equal(t, time.Unix(1700000000, 0), snap.At)

	m, ok := snap.MarkFor("alice")
	assert.True(t, ok)
	assert.Equal(t, mark.First, m)
	m, ok = snap.MarkFor("bob")
	assert.True(t, ok)
	assert.Equal(t, mark.Second, m)
	_, ok = snap.MarkFor("carol")
	assert.False(t, ok)
}

func TestDecodeState_NestedBoardAndParticipantIDs(t *testing.T) {
	snap, err := DecodeState([]byte(`{
		"board": [["X","",""],["","O",""],["","","X"]],
		"players": {"u1": "X", "u2": "O"},
		"turn": "u2",
		"winner": "u1",
		"nextGameStart": "1700000005.5"
	}`))
	require.NoError(t, err)

	assert.Equal(t, mark.First, snap.Board[0])
	assert.Equal(t, mark.Second, snap.Board[4])
	assert.Equal(t, mark.First, snap.Board[8])
	assert.Equal(t, mark.Second, snap.Turn)
	assert.Equal(t, Winner{Mark: mark.First}, snap.Winner)
	assert.Equal(t, TimingNextGameStart, snap.Timing)
	assert.Equal(t, time.Unix(1700000005, int64(500*time.Millisecond)), snap.At)
}

func TestDecodeState_DrawSentinel(t *testing.T) {
	snap, err := DecodeState([]byte(`{"winner": "Draw"}`))
	require.NoError(t, err)
	assert.True(t, snap.Winner.Draw)
	assert.True(t, snap.Winner.Declared())
	assert.False(t, snap.HasBoard)
	assert.Equal(t, TimingNone, snap.Timing)
}

func TestDecodeState_IgnoresZeroTimestamps(t *testing.T) {
	snap, err := DecodeState([]byte(`{"deadline": 0, "nextGameStart": -4}`))
	require.NoError(t, err)
	assert.Equal(t, TimingNone, snap.Timing)
	assert.True(t, snap.At.IsZero())
}

func TestDecodeState_Malformed(t *testing.T) {
	inputs := []string{
		``,
		`not json`,
		`{"board": [1, 2, 3]}`,
		`{"board": [[1,2],[1,2,3],[1,2,3]]}`,
		`{"board": "XOXOXOXOX"}`,
	}

	for _, in := range inputs {
		_, err := DecodeState([]byte(in))
		require.Error(t, err, in)

		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr), in)
		assert.Equal(t, "state", decodeErr.Kind)
	}
}

func TestEncodeMove(t *testing.T) {
	b, err := EncodeMove(4)
	require.NoError(t, err)
	assert.JSONEq(t, `{"position": 4}`, string(b))

	_, err = EncodeMove(9)
	assert.Error(t, err)
	_, err = EncodeMove(-1)
	assert.Error(t, err)
}

func TestDecodeServerError(t *testing.T) {
	msg, err := DecodeServerError([]byte(`{"error":"not your turn"}`))
	require.NoError(t, err)
	assert.Equal(t, "not your turn", msg)

	_, err = DecodeServerError([]byte(`{`))
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}
