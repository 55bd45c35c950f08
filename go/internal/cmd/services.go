package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/matchday/go/internal/matchclock"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/mcdev12/matchday/go/internal/matchclock/gateway"
)

type Services struct {
	MatchClock *matchclock.Service
	Gateway    *gateway.Service
	Broker     *channel.Broker
	Database   *sql.DB
}

// setupServices wires database → repository → app → service and picks how
// commits reach the broker: directly in-process, or back through a transport
// fed by the outbox relay.
func setupServices(ctx context.Context, config *Config) (*Services, error) {
	services := &Services{
		Broker: channel.NewBroker(config.Channel.SubscriberBuffer),
	}

	var repo matchclock.ClockRepository
	switch config.Store.Backend {
	case StorePostgres:
		database, err := setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		services.Database = database
		repo = matchclock.NewRepository(database, config.Store.LockTimeout)
	default:
		repo = matchclock.NewMemoryRepository()
	}

	var (
		publisher matchclock.Publisher
		consumer  gateway.Consumer
		err       error
	)
	switch config.Channel.Backend {
	case ChannelJetStream:
		consumer, err = channel.NewJetStreamConsumer(config.Channel.JetStream, services.Broker)
	case ChannelRabbitMQ:
		consumer, err = channel.NewRabbitMQConsumer(config.Channel.RabbitMQ, services.Broker)
	default:
		publisher = services.Broker
	}
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to create %s consumer: %w", config.Channel.Backend, err)
	}

	app := matchclock.NewApp(repo, publisher)
	services.MatchClock = matchclock.NewService(app, services.Broker)
	services.Gateway = gateway.NewService(gateway.DefaultConfig(), app, services.Broker, consumer)

	return services, nil
}

func (s *Services) Close() {
	if s.Broker != nil {
		s.Broker.Close()
	}
	if s.Database != nil {
		s.Database.Close()
	}
}
