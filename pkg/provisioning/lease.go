package provisioning

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

// Lease is held by at most one owner until it expires. It is never released early, so an owner
// that acquired it keeps it for the whole ttl.
type Lease struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

func NewLease(client *redis.Client, key, owner string, ttl time.Duration) *Lease {
	return &Lease{
		client: client,
		key:    key,
		owner:  owner,
		ttl:    ttl,
	}
}

// Acquire returns true if the lease was free and is now held by this owner.
func (l *Lease) Acquire() (bool, error) {
	acquired, err := l.client.SetNX(l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %q: %v", l.key, err)
	}
	return acquired, nil
}
