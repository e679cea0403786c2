package config

// Redis backs the viewer date selections, the response cache with its
// invalidation tags, and the rate limiter.  Selections need it; the cache
// and limiter switch themselves off when the client is nil.

import (
	"context"    // bounded ping on startup
	"crypto/tls" // optional TLS for managed Redis
	"os"         // environment lookups
	"strconv"    // REDIS_DB parsing
	"strings"    // case-insensitive REDIS_TLS
	"time"       // ping timeout

	"github.com/redis/go-redis/v9" // Redis client
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (host/port win when both are set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
// When the ping fails the client is closed and only the error is returned.
func NewRedisClient() (*redis.Client, error) {
	// host/port win over the REDIS_ADDR shorthand
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	// an unparsable REDIS_DB falls back to 0
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	var tlsConf *tls.Config
	if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        dbNum,
		TLSConfig: tlsConf,
	})
	// Fail fast: a Redis that does not answer in 2s is treated as down.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
