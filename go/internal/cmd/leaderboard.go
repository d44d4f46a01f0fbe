package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lila-games/xoxo/go/clients/nakama_client"
	"github.com/lila-games/xoxo/go/internal/config"
	"github.com/lila-games/xoxo/go/internal/gateway"
)

func runLeaderboard(ctx context.Context, cfg config.Config, limit int, out io.Writer) error {
	if cfg.Username == "" {
		return errors.New("a display name is required (--name or XOXO_NAME)")
	}

	services := setupServices(cfg)

	session, err := services.Gateway.Connect(ctx, gateway.Credentials{Username: cfg.Username})
	if err != nil {
		return err
	}

	records, err := services.Client.ListLeaderboard(ctx, session, nakama_client.GlobalLeaderboardID, limit)
	if err != nil {
		return err
	}

	return printLeaderboard(out, records, session.UserID)
}

func printLeaderboard(out io.Writer, records []nakama_client.LeaderboardRecord, self string) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "no scores yet")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLAYER\tSCORE\t")
	for _, rec := range records {
		name := rec.Username
		if rec.OwnerID == self {
			name += " (you)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", rec.Rank, name, rec.Score)
	}
	return w.Flush()
}
