package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/lila-games/xoxo/go/clients/nakama_client"
	"github.com/lila-games/xoxo/go/internal/gateway"
	"github.com/lila-games/xoxo/go/internal/mark"
	"github.com/lila-games/xoxo/go/internal/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	moves   []int
	invites int
	moveErr error
	view    match.View
}

func (f *fakePlayer) SubmitMove(ctx context.Context, cell int) error {
	f.moves = append(f.moves, cell)
	return f.moveErr
}

func (f *fakePlayer) InviteAI(ctx context.Context) error {
	f.invites++
	return nil
}

func (f *fakePlayer) View() match.View {
	return f.view
}

func TestCommandLoop_MovesUntilQuit(t *testing.T) {
	p := &fakePlayer{}
	var out bytes.Buffer

	in := strings.NewReader("4\n\nai\n 0 \nq\n8\n")
	err := commandLoop(context.Background(), in, &out, p, make(chan struct{}))
	require.NoError(t, err)

	assert.Equal(t, []int{4, 0}, p.moves)
	assert.Equal(t, 1, p.invites)
}

func TestCommandLoop_EndOfInput(t *testing.T) {
	p := &fakePlayer{}
	var out bytes.Buffer

	require.NoError(t, commandLoop(context.Background(), strings.NewReader("2"), &out, p, make(chan struct{})))
	assert.Equal(t, []int{2}, p.moves)
}

func TestCommandLoop_ChannelClosed(t *testing.T) {
	closed := make(chan struct{})
	close(closed)

	// Input that never ends
	r, w := io.Pipe()
	defer w.Close()
	err := commandLoop(context.Background(), r, &bytes.Buffer{}, &fakePlayer{}, closed)
	assert.ErrorIs(t, err, gateway.ErrChannelClosed)
}

func TestHandleCommand_MoveErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: match.ErrCellOccupied, want: "that cell is taken"},
		{err: match.ErrNotYourTurn, want: "not your turn"},
		{err: match.ErrMovePending, want: "waiting for the server"},
		{err: &gateway.SendError{MatchID: "m1", OpCode: gateway.OpCodeMove, Err: gateway.ErrChannelClosed}, want: "move failed"},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		p := &fakePlayer{moveErr: tt.err}
		assert.False(t, handleCommand(context.Background(), &out, p, "3"))
		assert.Contains(t, out.String(), tt.want)
	}
}

func TestHandleCommand_Unknown(t *testing.T) {
	var out bytes.Buffer
	p := &fakePlayer{}
	assert.False(t, handleCommand(context.Background(), &out, p, "seven"))
	assert.Contains(t, out.String(), `unknown command "seven"`)
	assert.Empty(t, p.moves)
}

func TestRenderer_SkipsCountdownOnlyChanges(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)

	v := match.View{
		MatchID:          "m1",
		LocalMark:        mark.Second,
		Board:            match.Board{mark.First},
		Status:           match.StatusYourTurn,
		RemainingSeconds: 12,
	}
	r.Render(v)
	first := out.String()
	assert.Contains(t, first, " X | 1 | 2 ")
	assert.Contains(t, first, "you are O | your turn")

	v.RemainingSeconds = 11
	r.Render(v)
	assert.Equal(t, first, out.String())

	v.RemainingSeconds = 5
	r.Render(v)
	assert.Contains(t, out.String(), "5s left")

	v.Notice = "move not sent, try again"
	r.Render(v)
	assert.Contains(t, out.String(), "your turn (move not sent, try again)")
}

func TestPrintLeaderboard(t *testing.T) {
	var records []nakama_client.LeaderboardRecord
	require.NoError(t, json.Unmarshal([]byte(`[
		{"owner_id":"u1","username":"alice","score":"120","rank":"1"},
		{"owner_id":"u2","username":"bob","score":"95","rank":"2"}
	]`), &records))

	var out bytes.Buffer
	require.NoError(t, printLeaderboard(&out, records, "u2"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "RANK"))
	assert.Contains(t, lines[1], "alice")
	assert.Contains(t, lines[1], "120")
	assert.Contains(t, lines[2], "bob (you)")

	out.Reset()
	require.NoError(t, printLeaderboard(&out, nil, "u1"))
	assert.Equal(t, "no scores yet\n", out.String())
}

func TestMoveErrorText_Unwrapped(t *testing.T) {
	assert.Equal(t, "move failed: boom", moveErrorText(errors.New("boom")))
}

