// Package cli wires configuration, stores and the demo bot into a runnable
// relay for the command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/relay"
	"github.com/aretw0/relay/internal/config"
	"github.com/aretw0/relay/internal/demo"
	"github.com/aretw0/relay/internal/logging"
	httpAdapter "github.com/aretw0/relay/pkg/adapters/http"
	"github.com/aretw0/relay/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/relay/pkg/adapters/redis"
	"github.com/aretw0/relay/pkg/adapters/sqlite"
	"github.com/aretw0/relay/pkg/observability"
	"github.com/aretw0/relay/pkg/persistence/middleware"
	"github.com/aretw0/relay/pkg/policy"
	"github.com/aretw0/relay/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// Outbound is what the demo bot talks to: messages plus dispatcher notices.
type Outbound interface {
	demo.Messenger
	ports.Notifier
}

// Runtime is a fully wired relay.
type Runtime struct {
	Engine   *relay.Engine
	Bot      *demo.Bot
	Registry *prometheus.Registry
	Streams  *httpAdapter.StreamManager
	Logger   *slog.Logger

	closers []func() error
}

// Close releases the session store.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// NewLogger builds the application logger from the log section.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level, cfg.Format), nil
}

// Build wires a Runtime from cfg. out receives the bot's messages and the
// dispatcher's notices.
func Build(ctx context.Context, cfg config.Config, out Outbound, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}
	rt.Streams = httpAdapter.NewStreamManager(logger)

	store, locker, err := rt.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err = wrapStore(store, cfg.Store, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(rt.Registry)

	rt.Bot = demo.New(out, store)

	opts := []relay.Option{
		relay.WithStore(store),
		relay.WithDevIDs(cfg.DevIDs...),
		relay.WithAdminChecker(policy.StaticAdmins(cfg.Admins)),
		relay.WithNotifier(out),
		relay.WithHooks(metrics.Hooks(debugHooks(logger), streamHooks(rt.Streams))),
		relay.WithLogger(logger),
	}
	if locker != nil {
		opts = append(opts, relay.WithDistributedLocker(locker, cfg.Lock.TTL))
	}
	rt.Engine = relay.New(rt.Bot.Routes(), opts...)
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg config.Config) (ports.SessionStore, ports.DistributedLocker, error) {
	switch cfg.Store.Driver {
	case "redis":
		rc := cfg.Store.Redis
		client := backend.NewClient(&backend.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", rc.Addr, err)
		}
		store := redisAdapter.NewFromClient(client, redisAdapter.WithPrefix(rc.Prefix), redisAdapter.WithTTL(rc.TTL), redisAdapter.WithLogger(rt.Logger))
		rt.closers = append(rt.closers, store.Close)
		var locker ports.DistributedLocker
		if cfg.Lock.Distributed {
			locker = redisAdapter.NewLocker(client, rc.Prefix)
		}
		rt.Logger.Info("Session store ready", "driver", "redis", "addr", rc.Addr)
		return store, locker, nil

	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, store.Close)
		rt.Logger.Info("Session store ready", "driver", "sqlite", "path", cfg.Store.SQLite.Path)
		return store, nil, nil

	default:
		rt.Logger.Info("Session store ready", "driver", "memory")
		return memory.NewStore(), nil, nil
	}
}

// wrapStore applies the storage middleware enabled in cfg. Redaction sits
// outside encryption so it sees decrypted data.
func wrapStore(store ports.SessionStore, cfg config.StoreConfig, logger *slog.Logger) (ports.SessionStore, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mws = append(mws, middleware.NewRedactMiddleware(cfg.Redact))
	}
	if cfg.Encryption.Key != "" {
		active, fallback, err := cfg.Encryption.Decode()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
			Logger:       logger,
		}))
	}
	return middleware.Chain(store, mws...), nil
}
