package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	ChannelMemory    = "memory"
	ChannelJetStream = "jetstream"
	ChannelRabbitMQ  = "rabbitmq"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Store struct {
		Backend     string        `yaml:"backend"`
		LockTimeout time.Duration `yaml:"lock_timeout"`
	} `yaml:"store"`

	Channel struct {
		Backend          string                 `yaml:"backend"`
		SubscriberBuffer int                    `yaml:"subscriber_buffer"`
		JetStream        channel.JetStreamConfig `yaml:"jetstream"`
		RabbitMQ         channel.RabbitMQConfig  `yaml:"rabbitmq"`
	} `yaml:"channel"`
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Store.Backend = StoreMemory
	config.Store.LockTimeout = 2 * time.Second
	config.Channel.Backend = ChannelMemory
	config.Channel.SubscriberBuffer = channel.DefaultSubscriberBuffer
	config.Channel.JetStream = channel.DefaultJetStreamConfig()
	config.Channel.RabbitMQ = channel.DefaultRabbitMQConfig()
	return &config
}

// loadConfig reads the YAML file over the defaults. A missing file is not an
// error. Environment variables win over both.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Store.Backend = getEnv("STORE_BACKEND", config.Store.Backend)
	config.Channel.Backend = getEnv("CHANNEL_BACKEND", config.Channel.Backend)
	config.Channel.SubscriberBuffer = getEnvAsInt("SUBSCRIBER_BUFFER", config.Channel.SubscriberBuffer)
	config.Channel.JetStream.URL = getEnv("NATS_URL", config.Channel.JetStream.URL)
	config.Channel.RabbitMQ.URL = getEnv("RABBITMQ_URL", config.Channel.RabbitMQ.URL)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Channel.Backend {
	case ChannelMemory:
	case ChannelJetStream, ChannelRabbitMQ:
		// Only the postgres store writes the outbox the relay publishes from.
		if c.Store.Backend != StorePostgres {
			return fmt.Errorf("channel backend %q requires the %s store", c.Channel.Backend, StorePostgres)
		}
	default:
		return fmt.Errorf("unknown channel backend %q", c.Channel.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
