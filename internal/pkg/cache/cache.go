package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/ScreenShow/internal/pkg/env"
)

// limiterDatabase keeps rate limiter keys apart from the default database.
const limiterDatabase = 1

var client *goredis.Client

// Options builds the Redis client options from CACHE_* variables.
func Options() *goredis.Options {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")
	return &goredis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	}
}

// SetupCache initializes the connection to the Redis server. An unreachable
// server is logged, not fatal; the health check reports it.
func SetupCache() {
	client = goredis.NewClient(Options())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", client.Options().Addr).Msg("could not connect to cache")
		return
	}
	log.Info().Str("addr", client.Options().Addr).Msg("connected to cache")
}

// GetClient returns the Redis client instance
func GetClient() *goredis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Ping checks the cache connection.
func Ping(ctx context.Context) error {
	if err := GetClient().Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping cache: %w", err)
	}
	return nil
}

// Close releases the client connection pool.
func Close() error {
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	return err
}

// LimiterStorage returns Redis-backed fiber storage for the rate limiter so
// limits hold across instances.
func LimiterStorage() *redis.Storage {
	opts := GetClient().Options()
	host, port := "localhost", 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: limiterDatabase,
		Reset:    false,
	})
}
