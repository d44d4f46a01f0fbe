package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lila-games/xoxo/go/internal/config"
	"github.com/lila-games/xoxo/go/internal/match"
	"github.com/lila-games/xoxo/go/internal/relay"
	"github.com/lila-games/xoxo/go/internal/statusapi"
	"github.com/rs/zerolog/log"
)

// startStatusServer serves the match state over HTTP when an address is
// configured. The returned function shuts it down.
func startStatusServer(cfg config.Config, provider statusapi.StateProvider) func() {
	if cfg.StatusAddr == "" {
		return func() {}
	}

	server := statusapi.NewServer(cfg.StatusAddr, provider)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("status server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("status server shutdown failed")
		}
	}
}

// startRelay mirrors views onto NATS when a URL is configured. A relay that
// cannot connect is logged and skipped; the game does not depend on it.
func startRelay(cfg config.Config, synchronizer *match.Synchronizer) func() {
	relayCfg, enabled := cfg.Relay()
	if !enabled {
		return func() {}
	}

	r, err := relay.Connect(relayCfg)
	if err != nil {
		log.Warn().Err(err).Str("url", relayCfg.URL).Msg("view relay disabled")
		return func() {}
	}

	synchronizer.OnChange(r.Observe)
	return func() { _ = r.Close() }
}
