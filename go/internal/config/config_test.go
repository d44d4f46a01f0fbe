package config

import (
	"testing"
	"time"

	"github.com/lila-games/xoxo/go/internal/countdown"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"XOXO_HOST", "XOXO_PORT", "XOXO_SERVER_KEY", "XOXO_COUNTDOWN", "XOXO_REQUEST_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := NewConfigFromEnv()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 7350, cfg.Port)
	assert.Equal(t, "defaultkey", cfg.ServerKey)
	assert.Equal(t, "deadline", cfg.CountdownPolicy)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("XOXO_HOST", "games.example.com")
	t.Setenv("XOXO_PORT", "not-a-port")
	t.Setenv("XOXO_SSL", "true")
	t.Setenv("XOXO_COUNTDOWN", "fixed")
	t.Setenv("XOXO_COUNTDOWN_SECONDS", "15")

	cfg := NewConfigFromEnv()
	assert.Equal(t, "games.example.com", cfg.Host)
	assert.Equal(t, 7350, cfg.Port)
	assert.True(t, cfg.SSL)

	mc := cfg.Match()
	assert.Equal(t, countdown.PolicyFixed, mc.Countdown.Policy)
	assert.Equal(t, 15, mc.Countdown.FixedSeconds)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("XOXO_HOST", "env-host")
	t.Setenv("XOXO_NATS_URL", "nats://env:4222")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := viper.New()
	BindFlags(fs, v)
	require.NoError(t, fs.Parse([]string{"--host", "flag-host", "--port", "7351", "--name", "alice"}))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "flag-host", cfg.Host)
	assert.Equal(t, 7351, cfg.Port)
	assert.Equal(t, "alice", cfg.Username)

	rc, enabled := cfg.Relay()
	assert.True(t, enabled)
	assert.Equal(t, "nats://env:4222", rc.URL)
	assert.Equal(t, "xoxo.match", rc.SubjectPrefix)

	nc := cfg.Nakama()
	assert.Equal(t, "flag-host", nc.Host)
	assert.Equal(t, 7351, nc.Port)
}

func TestValidate(t *testing.T) {
	valid := NewConfigFromEnv()

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "empty host", mutate: func(c *Config) { c.Host = "" }},
		{name: "port out of range", mutate: func(c *Config) { c.Port = 70000 }},
		{name: "unknown policy", mutate: func(c *Config) { c.CountdownPolicy = "sometimes" }},
		{name: "fixed without length", mutate: func(c *Config) {
			c.CountdownPolicy = "fixed"
			c.CountdownSeconds = 0
		}},
		{name: "zero timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
