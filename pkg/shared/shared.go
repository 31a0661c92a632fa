// Package shared provides common utility functions used across the fan-out commands.
package shared

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetEnvOrDefault returns the environment variable value or a default if not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration parses a duration from the environment, falling back to defaultValue
// when the variable is unset or unparseable.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvBool parses a boolean from the environment, falling back to defaultValue.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// MaskAddress masks the middle of a phone number for logging.
// Short values are masked entirely.
func MaskAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) < 8 {
		return "***"
	}
	return address[:len(address)-7] + "***" + address[len(address)-4:]
}

// ConnectRedis creates and validates a Redis connection.
// Returns the client and nil on success, or nil and an error on failure.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}

// GetEnvInt parses an integer from the environment, falling back to defaultValue.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
