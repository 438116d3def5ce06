package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/potooio/herald/internal/api"
	"github.com/potooio/herald/internal/config"
	"github.com/potooio/herald/internal/notifier"
	"github.com/potooio/herald/internal/render"
	"github.com/potooio/herald/internal/store"
	"github.com/potooio/herald/internal/strategies"
	"github.com/potooio/herald/internal/transport"
	"github.com/potooio/herald/internal/types"
)

// userStore holds both preferences and user records.
type userStore interface {
	types.PreferenceStore
	types.UserDirectory
	store.UserWriter
}

// components are the long-lived parts of the daemon.
type components struct {
	logger    *zap.Logger
	engine    *notifier.Engine
	batcher   *notifier.Batcher
	router    http.Handler
	transport types.Transport
	closers   []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// close releases connections in reverse order of creation.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		nc := c.closers[i]
		if err := nc.close(); err != nil {
			c.logger.Warn("Close failed", zap.String("component", nc.name), zap.Error(err))
		}
	}
}

// build connects the stores and transport selected by cfg and wires the engine,
// digest batcher and HTTP router on top of them. On error, whatever was opened
// is closed again.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *components, err error) {
	c := &components{logger: logger}
	defer func() {
		if err != nil {
			c.close()
		}
	}()
	health := map[string]api.HealthCheck{}

	var users userStore
	switch cfg.Store.Kind {
	case config.StoreSQLite:
		s, err := store.OpenSQLite(ctx, logger, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open preference store: %w", err)
		}
		c.closers = append(c.closers, namedCloser{"sqlite", s.Close})
		health["sqlite"] = s.Ping
		users = s
	default:
		users = store.NewMemoryStore()
	}

	var digests types.DigestQueue
	switch cfg.Digest.Queue {
	case config.StoreRedis:
		client := store.NewRedisClient(cfg.RedisOptions())
		c.closers = append(c.closers, namedCloser{"redis", client.Close})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect digest queue: %w", err)
		}
		health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		digests = store.NewRedisDigestQueue(client, cfg.Digest.Redis.Prefix)
	default:
		digests = store.NewMemoryDigestQueue()
	}

	tr, err := buildTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.transport = tr
	if at, ok := tr.(*transport.AMQPTransport); ok {
		c.closers = append(c.closers, namedCloser{"amqp", at.Close})
	}

	renderer, err := render.NewRenderer(cfg.RenderOptions())
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	registry := strategies.Default()
	c.engine = notifier.NewEngine(logger, registry, notifier.Dependencies{
		Preferences: users,
		Users:       users,
		Recorder:    users,
		Renderer:    renderer,
		Transport:   tr,
		Digests:     digests,
	}, cfg.EngineOptions())

	bo, err := cfg.BatcherOptions()
	if err != nil {
		return nil, err
	}
	c.batcher = notifier.NewBatcher(logger, users, users, digests, renderer, tr, bo)

	c.router = api.NewRouter(logger, api.RouterOptions{
		Notifier:    c.engine,
		Preferences: users,
		Digests:     digests,
		Drainer:     c.batcher,
		Capabilities: api.CapabilitiesHandlerOptions{
			Kinds:           registry.Kinds(),
			Transport:       tr.Name(),
			PreferenceStore: cfg.Store.Kind,
			DigestQueue:     cfg.Digest.Queue,
		},
		Health: health,
	})
	return c, nil
}

func buildTransport(cfg *config.Config, logger *zap.Logger) (types.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportSMTP:
		return transport.NewSMTPTransport(logger, cfg.SMTPOptions())
	case config.TransportWebhook:
		return transport.NewWebhookTransport(logger, cfg.WebhookOptions())
	case config.TransportAMQP:
		return transport.DialAMQP(logger, cfg.AMQPOptions())
	case config.TransportLog:
		return transport.NewLogTransport(logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
}
