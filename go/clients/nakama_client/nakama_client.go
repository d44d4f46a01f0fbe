package nakama_client

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/lila-games/xoxo/go/clients"
)

// Config holds the server coordinates
type Config struct {
	ServerKey string
	Host      string
	Port      int
	SSL       bool
}

// DefaultConfig returns the local development server
func DefaultConfig() Config {
	return Config{
		ServerKey: DefaultServerKey,
		Host:      DefaultHost,
		Port:      DefaultPort,
	}
}

type NakamaClient struct {
	*clients.BaseClient
	config Config
}

func NewNakamaClient(config Config) *NakamaClient {
	scheme := "http"
	if config.SSL {
		scheme = "https"
	}

	return &NakamaClient{
		BaseClient: clients.NewBaseClient(fmt.Sprintf("%s://%s:%d", scheme, config.Host, config.Port)),
		config:     config,
	}
}

// NewNakamaClientWithBaseURL points the client at an explicit base URL
func NewNakamaClientWithBaseURL(baseURL, serverKey string) *NakamaClient {
	return &NakamaClient{
		BaseClient: clients.NewBaseClient(baseURL),
		config:     Config{ServerKey: serverKey},
	}
}

// SocketURL returns the realtime endpoint for a session token
func (c *NakamaClient) SocketURL(token string) string {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return ""
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = SocketEndpoint

	q := url.Values{}
	q.Set("lang", "en")
	q.Set("status", "true")
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String()
}

func (c *NakamaClient) basicAuth() map[string]string {
	creds := base64.StdEncoding.EncodeToString([]byte(c.config.ServerKey + ":"))
	return map[string]string{
		"Authorization": "Basic " + creds,
		"Content-Type":  "application/json",
	}
}

func bearer(s *Session) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + s.Token,
		"Content-Type":  "application/json",
	}
}
