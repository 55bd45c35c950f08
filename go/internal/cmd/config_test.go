package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, StoreMemory, config.Store.Backend)
	assert.Equal(t, ChannelMemory, config.Channel.Backend)
	assert.Equal(t, 16, config.Channel.SubscriberBuffer)
	assert.Equal(t, "MATCH_CLOCK", config.Channel.JetStream.StreamName)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: postgres
  lock_timeout: 750ms
channel:
  backend: rabbitmq
  rabbitmq:
    exchange: clocks
    prefetch: 5
`)

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, config.Store.Backend)
	assert.Equal(t, 750*time.Millisecond, config.Store.LockTimeout)
	assert.Equal(t, ChannelRabbitMQ, config.Channel.Backend)
	assert.Equal(t, "clocks", config.Channel.RabbitMQ.Exchange)
	assert.Equal(t, 5, config.Channel.RabbitMQ.Prefetch)
	assert.Equal(t, "8080", config.Server.Port, "unset keys keep defaults")
}

func TestLoadConfig_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9000\"\n")
	t.Setenv("PORT", "9100")
	t.Setenv("SUBSCRIBER_BUFFER", "64")
	t.Setenv("NATS_URL", "nats://nats:4222")

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", config.Server.Port)
	assert.Equal(t, 64, config.Channel.SubscriberBuffer)
	assert.Equal(t, "nats://nats:4222", config.Channel.JetStream.URL)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown store":            "store:\n  backend: redis\n",
		"unknown channel":          "channel:\n  backend: kafka\n",
		"transport without outbox": "channel:\n  backend: jetstream\n",
		"malformed yaml":           "store: [",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
