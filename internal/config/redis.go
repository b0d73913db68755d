package config

// This file defines a Redis client constructor for the application.  Redis
// backs the response cache of the public listing routes.  The client
// parameters are loaded from environment variables.  If connection fails
// during startup, the function returns nil and callers degrade gracefully by
// serving those routes uncached.

import (
    "context"
    "crypto/tls"
    "log/slog"
    "os"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (host/port take precedence when both are set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
// The returned client is nil if a connection cannot be established.
func NewRedisClient(logger *slog.Logger) *redis.Client {
    host := os.Getenv("REDIS_HOST")
    port := os.Getenv("REDIS_PORT")
    addr := getenv("REDIS_ADDR", "localhost:6379")
    if host != "" && port != "" {
        addr = host + ":" + port
    }
    var tlsConf *tls.Config
    if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      addr,
        Password:  os.Getenv("REDIS_PASSWORD"),
        DB:        envInt("REDIS_DB", 0),
        TLSConfig: tlsConf,
    })
    // Ping the server with a short timeout.  Return nil on failure.
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        logger.Warn("redis unavailable, response cache disabled", slog.String("addr", addr), slog.String("error", err.Error()))
        _ = client.Close()
        return nil
    }
    return client
}
