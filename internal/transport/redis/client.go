package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewClient - connects to the broker that carries the emulated radio link.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func linkChannel(prefix, deviceID string) string {
	return prefix + ":link:" + deviceID
}

func presenceKey(prefix, deviceID string) string {
	return prefix + ":presence:" + deviceID
}
