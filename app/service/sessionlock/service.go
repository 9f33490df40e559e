package sessionlock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadagent/app/config"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

// Service picks the Redis locker when an address is configured and the local one otherwise.
type Service struct {
	Locker
	client *redis.Client
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)

	if cfg.Redis.Addr == "" {
		slog.Info("Using in-process session locks")
		return &Service{Locker: NewLocal()}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(appCtx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("Using redis session locks", "addr", cfg.Redis.Addr)

	return &Service{
		Locker: NewRedis(client, cfg.Redis.Prefix, cfg.Redis.LockTTL),
		client: client,
	}, nil
}

func (s *Service) Shutdown() error {
	if s.client == nil {
		return nil
	}

	return s.client.Close()
}
