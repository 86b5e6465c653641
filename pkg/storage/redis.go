package storage

import (
	"fmt"

	"github.com/dhis2-sre/mq-manager/pkg/config"
	"github.com/go-redis/redis"
)

// NewRedis connects to the Redis instance holding the sweep lease.
func NewRedis(c config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", c.Host, c.Port),
	})

	if _, err := client.Ping().Result(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %v", err)
	}

	return client, nil
}
