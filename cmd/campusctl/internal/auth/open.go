package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/schoolops/campus/pkg/sdk"
)

// Options selects and configures a session storage backend.
type Options struct {
	Backend string // file, sqlite, redis or memory
	Dir     string // default location for file and sqlite backends

	File      string
	SQLiteDSN string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	RedisTTL       time.Duration
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open creates the configured storage. The returned Closer releases any
// connection the backend holds.
func Open(ctx context.Context, opts Options) (sdk.SessionStorage, io.Closer, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileStorage(opts.Dir, opts.File), nopCloser{}, nil
	case "memory":
		return sdk.NewMemoryStorage(), nopCloser{}, nil
	case "sqlite":
		s, err := NewSQLiteStorage(ctx, opts.Dir, opts.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.RedisAddr, err)
		}
		s := NewRedisStorage(client, opts.RedisKeyPrefix, opts.RedisTTL)
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", opts.Backend)
	}
}
