package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lila-games/xoxo/go/internal/config"
	"github.com/lila-games/xoxo/go/internal/gateway"
	"github.com/lila-games/xoxo/go/internal/match"
)

type playOptions struct {
	AI      bool
	MatchID string
	In      io.Reader
	Out     io.Writer
}

// player is what the command loop drives
type player interface {
	SubmitMove(ctx context.Context, cell int) error
	InviteAI(ctx context.Context) error
	View() match.View
}

func runPlay(ctx context.Context, cfg config.Config, opts playOptions) error {
	if cfg.Username == "" {
		return errors.New("a display name is required (--name or XOXO_NAME)")
	}

	services := setupServices(cfg)

	session, socket, err := services.Gateway.ConnectAndOpen(ctx, gateway.Credentials{Username: cfg.Username})
	if err != nil {
		if errors.Is(err, gateway.ErrIdentityInUse) {
			return fmt.Errorf("this username has already been used, pick another: %w", err)
		}
		return err
	}
	defer socket.Close()

	matchID := opts.MatchID
	if matchID == "" {
		if matchID, err = services.Client.FindMatch(ctx, session, opts.AI); err != nil {
			return fmt.Errorf("find match: %w", err)
		}
	}

	synchronizer := match.NewSynchronizer(socket, session.UserID, clockwork.NewRealClock(), cfg.Match())

	r := newRenderer(opts.Out)
	synchronizer.OnChange(r.Render)

	stopRelay := startRelay(cfg, synchronizer)
	defer stopRelay()
	stopStatus := startStatusServer(cfg, synchronizer)
	defer stopStatus()

	if err := synchronizer.Join(ctx, matchID); err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = synchronizer.Leave(leaveCtx)
	}()

	fmt.Fprintln(opts.Out, helpText)
	return commandLoop(ctx, opts.In, opts.Out, synchronizer, socket.Done())
}

const helpText = "cells are numbered 0-8; type a number to move, \"ai\" to invite an AI opponent, \"b\" to redraw, \"q\" to quit"

// commandLoop reads one command per line until quit, end of input, context
// cancellation or the channel closing
func commandLoop(ctx context.Context, in io.Reader, out io.Writer, p player, closed <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return &gateway.ChannelError{Op: "read", Err: gateway.ErrChannelClosed}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleCommand(ctx, out, p, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func handleCommand(ctx context.Context, out io.Writer, p player, cmd string) (quit bool) {
	switch strings.ToLower(cmd) {
	case "":
		return false
	case "q", "quit", "exit":
		return true
	case "ai":
		if err := p.InviteAI(ctx); err != nil {
			fmt.Fprintf(out, "could not invite an AI opponent: %v\n", err)
		}
		return false
	case "b", "board":
		fmt.Fprintln(out, renderView(p.View()))
		return false
	case "h", "help", "?":
		fmt.Fprintln(out, helpText)
		return false
	}

	cell, err := strconv.Atoi(cmd)
	if err != nil {
		fmt.Fprintf(out, "unknown command %q\n", cmd)
		return false
	}
	if err := p.SubmitMove(ctx, cell); err != nil {
		fmt.Fprintln(out, moveErrorText(err))
	}
	return false
}

func moveErrorText(err error) string {
	switch {
	case errors.Is(err, match.ErrMatchConcluded):
		return "the round is over"
	case errors.Is(err, match.ErrNoConnection):
		return "no connection"
	case errors.Is(err, match.ErrStillJoining):
		return "still joining, hold on"
	case errors.Is(err, match.ErrMovePending):
		return "waiting for the server to confirm your last move"
	case errors.Is(err, match.ErrInvalidCell):
		return "pick a cell from 0 to 8"
	case errors.Is(err, match.ErrCellOccupied):
		return "that cell is taken"
	case errors.Is(err, match.ErrNotYourTurn):
		return "not your turn"
	}
	return fmt.Sprintf("move failed: %v", err)
}

// renderer prints a view whenever something other than the countdown
// changes, and the countdown every few seconds
type renderer struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

func (r *renderer) Render(v match.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text := renderView(v)
	if text != r.last {
		r.last = text
		fmt.Fprintln(r.out, text)
		return
	}

	if v.RemainingSeconds > 0 && (v.RemainingSeconds <= 5 || v.RemainingSeconds%10 == 0) {
		fmt.Fprintf(r.out, "%ds left\n", v.RemainingSeconds)
	}
}

// renderView formats everything but the countdown
func renderView(v match.View) string {
	var sb strings.Builder
	if v.MatchID == "" {
		sb.WriteString(v.Status)
		return sb.String()
	}

	fmt.Fprintf(&sb, "\n%s\n\n", v.Board)
	if v.LocalMark.Valid() {
		fmt.Fprintf(&sb, "you are %s | ", v.LocalMark)
	}
	sb.WriteString(v.Status)
	if v.Notice != "" {
		fmt.Fprintf(&sb, " (%s)", v.Notice)
	}
	if v.Deadline != nil {
		fmt.Fprintf(&sb, " | until %s", v.Deadline.Local().Format(time.Kitchen))
	}

	return sb.String()
}
