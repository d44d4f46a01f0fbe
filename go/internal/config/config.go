package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lila-games/xoxo/go/clients/nakama_client"
	"github.com/lila-games/xoxo/go/internal/countdown"
	"github.com/lila-games/xoxo/go/internal/gateway"
	"github.com/lila-games/xoxo/go/internal/identity"
	"github.com/lila-games/xoxo/go/internal/match"
	"github.com/lila-games/xoxo/go/internal/relay"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the client reads
const EnvPrefix = "XOXO"

// Keys shared by flags, environment variables and viper
const (
	KeyServerKey       = "server-key"
	KeyHost            = "host"
	KeyPort            = "port"
	KeySSL             = "ssl"
	KeyUsername        = "name"
	KeyIdentityPath    = "identity"
	KeyNATSURL         = "nats-url"
	KeyNATSPrefix      = "nats-prefix"
	KeyStatusAddr      = "status-addr"
	KeyCountdownPolicy = "countdown"
	KeyCountdownFixed  = "countdown-seconds"
	KeyRequestTimeout  = "request-timeout"
	KeyVerbose         = "verbose"
)

// Config holds client settings.
type Config struct {
	ServerKey string
	Host      string
	Port      int
	SSL       bool

	Username     string
	IdentityPath string

	// NATSURL empty disables the view relay
	NATSURL    string
	NATSPrefix string
	// StatusAddr empty disables the status server
	StatusAddr string

	CountdownPolicy  string
	CountdownSeconds int
	RequestTimeout   time.Duration
	Verbose          bool
}

// NewConfigFromEnv reads XOXO_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("XOXO_PORT", strconv.Itoa(nakama_client.DefaultPort)))
	if err != nil {
		port = nakama_client.DefaultPort
	}
	seconds, err := strconv.Atoi(getEnv("XOXO_COUNTDOWN_SECONDS", "30"))
	if err != nil {
		seconds = 30
	}
	timeout, err := time.ParseDuration(getEnv("XOXO_REQUEST_TIMEOUT", "10s"))
	if err != nil {
		timeout = 10 * time.Second
	}

	return Config{
		ServerKey:        getEnv("XOXO_SERVER_KEY", nakama_client.DefaultServerKey),
		Host:             getEnv("XOXO_HOST", nakama_client.DefaultHost),
		Port:             port,
		SSL:              getEnvAsBool("XOXO_SSL", false),
		Username:         getEnv("XOXO_NAME", ""),
		IdentityPath:     getEnv("XOXO_IDENTITY", identity.DefaultPath()),
		NATSURL:          getEnv("XOXO_NATS_URL", ""),
		NATSPrefix:       getEnv("XOXO_NATS_PREFIX", relay.DefaultConfig().SubjectPrefix),
		StatusAddr:       getEnv("XOXO_STATUS_ADDR", ""),
		CountdownPolicy:  getEnv("XOXO_COUNTDOWN", "deadline"),
		CountdownSeconds: seconds,
		RequestTimeout:   timeout,
		Verbose:          getEnvAsBool("XOXO_VERBOSE", false),
	}
}

// BindFlags registers the client flags on fs, defaulting to the
// environment, and binds them into v
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	def := NewConfigFromEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.String(KeyServerKey, def.ServerKey, "server key used for device authentication (env: XOXO_SERVER_KEY)")
	fs.String(KeyHost, def.Host, "game server host (env: XOXO_HOST)")
	fs.IntP(KeyPort, "p", def.Port, "game server port (env: XOXO_PORT)")
	fs.Bool(KeySSL, def.SSL, "use https and wss (env: XOXO_SSL)")
	fs.StringP(KeyUsername, "n", def.Username, "display name (env: XOXO_NAME)")
	fs.String(KeyIdentityPath, def.IdentityPath, "where the device identity is stored (env: XOXO_IDENTITY)")
	fs.String(KeyNATSURL, def.NATSURL, "relay match views to this NATS server (env: XOXO_NATS_URL)")
	fs.String(KeyNATSPrefix, def.NATSPrefix, "subject prefix for relayed views (env: XOXO_NATS_PREFIX)")
	fs.String(KeyStatusAddr, def.StatusAddr, "serve match state over HTTP on this address (env: XOXO_STATUS_ADDR)")
	fs.String(KeyCountdownPolicy, def.CountdownPolicy, "countdown source: deadline or fixed (env: XOXO_COUNTDOWN)")
	fs.Int(KeyCountdownFixed, def.CountdownSeconds, "countdown length for the fixed policy (env: XOXO_COUNTDOWN_SECONDS)")
	fs.Duration(KeyRequestTimeout, def.RequestTimeout, "timeout for server requests (env: XOXO_REQUEST_TIMEOUT)")
	fs.BoolP(KeyVerbose, "v", def.Verbose, "display debug output (env: XOXO_VERBOSE)")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})
}

// Load reads a Config out of v and validates it
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		ServerKey:        v.GetString(KeyServerKey),
		Host:             v.GetString(KeyHost),
		Port:             v.GetInt(KeyPort),
		SSL:              v.GetBool(KeySSL),
		Username:         v.GetString(KeyUsername),
		IdentityPath:     v.GetString(KeyIdentityPath),
		NATSURL:          v.GetString(KeyNATSURL),
		NATSPrefix:       v.GetString(KeyNATSPrefix),
		StatusAddr:       v.GetString(KeyStatusAddr),
		CountdownPolicy:  v.GetString(KeyCountdownPolicy),
		CountdownSeconds: v.GetInt(KeyCountdownFixed),
		RequestTimeout:   v.GetDuration(KeyRequestTimeout),
		Verbose:          v.GetBool(KeyVerbose),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings for consistency
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.CountdownPolicy {
	case "deadline":
	case "fixed":
		if c.CountdownSeconds < 1 {
			return fmt.Errorf("invalid countdown length for fixed policy: %d", c.CountdownSeconds)
		}
	default:
		return fmt.Errorf("unknown countdown policy %q (want deadline or fixed)", c.CountdownPolicy)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout: %s", c.RequestTimeout)
	}
	return nil
}

// Nakama returns the REST client settings
func (c Config) Nakama() nakama_client.Config {
	return nakama_client.Config{
		ServerKey: c.ServerKey,
		Host:      c.Host,
		Port:      c.Port,
		SSL:       c.SSL,
	}
}

// Gateway returns the gateway settings
func (c Config) Gateway() gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.ChannelConfig.RequestTimeout = c.RequestTimeout
	cfg.ChannelConfig.HandshakeTimeout = c.RequestTimeout
	return cfg
}

// Match returns the synchronizer settings
func (c Config) Match() match.Config {
	return match.Config{
		Countdown: countdown.Config{
			Policy:       countdown.ParsePolicy(c.CountdownPolicy),
			FixedSeconds: c.CountdownSeconds,
		},
	}
}

// Relay returns the NATS relay settings and whether the relay is enabled
func (c Config) Relay() (relay.Config, bool) {
	cfg := relay.DefaultConfig()
	cfg.URL = c.NATSURL
	if c.NATSPrefix != "" {
		cfg.SubjectPrefix = c.NATSPrefix
	}
	return cfg, c.NATSURL != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
