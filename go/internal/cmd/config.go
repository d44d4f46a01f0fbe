package main

import (
	"github.com/lila-games/xoxo/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const releaseVersion = "0.3.0"

func newRootCmd() *cobra.Command {
	v := viper.New()
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:     "xoxo",
		Short:   "Play tic-tac-toe against other players on a Nakama match server.",
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(v)
			if err != nil {
				return err
			}
			*cfg = loaded

			if cfg.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
	}

	config.BindFlags(cmd.PersistentFlags(), v)

	cmd.AddCommand(newPlayCmd(cfg), newLeaderboardCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("xoxo v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newPlayCmd(cfg *config.Config) *cobra.Command {
	var (
		ai      bool
		matchID string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Find a match and play it in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *cfg, playOptions{
				AI:      ai,
				MatchID: matchID,
				In:      cmd.InOrStdin(),
				Out:     cmd.OutOrStdout(),
			})
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&ai, "ai", false, "play against an automated opponent")
	fs.StringVar(&matchID, "match", "", "join this match instead of finding one")

	return cmd
}

func newLeaderboardCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the global leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd.Context(), *cfg, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of records to show")

	return cmd
}
