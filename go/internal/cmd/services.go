package main

import (
	"github.com/lila-games/xoxo/go/clients/nakama_client"
	"github.com/lila-games/xoxo/go/internal/config"
	"github.com/lila-games/xoxo/go/internal/gateway"
	"github.com/lila-games/xoxo/go/internal/identity"
)

type Services struct {
	Client  *nakama_client.NakamaClient
	Gateway *gateway.Gateway
}

func setupServices(cfg config.Config) *Services {
	// REST client → identity store → gateway
	client := nakama_client.NewNakamaClient(cfg.Nakama())
	client.SetTimeout(cfg.RequestTimeout)

	store := identity.NewFileStore(cfg.IdentityPath)

	return &Services{
		Client:  client,
		Gateway: gateway.NewGateway(client, store, cfg.Gateway()),
	}
}
