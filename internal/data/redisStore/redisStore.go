package redisStore

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 3 * time.Second
	ioTimeout   = 30 * time.Second
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store is a thin wrapper over one redis logical database.
type Store struct {
	client *redis.Client
	DB     int
	logger *logger_i.Logger
}

// Open connects and pings. The caller owns the store and closes it.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    opts.DB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           ioTimeout,
		WriteTimeout:          ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s db %d is offline: %w", opts.Addr, opts.DB, err)
	}

	s := NewWithClient(client)
	s.DB = opts.DB
	s.logger.Info("Redis store ready", "addr", opts.Addr, "db", opts.DB)
	return s, nil
}

// NewWithClient wraps an existing client, used with miniredis in tests.
func NewWithClient(client *redis.Client) *Store {
	return &Store{
		client: client,
		DB:     client.Options().DB,
		logger: logger_i.NewLogger("Redis Store"),
	}
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Error closing redis client", "db", s.DB, "error", err)
		return err
	}
	return nil
}
