package grantCache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"share-service/internal/model/grantInfo"
)

// DefaultTTL bounds how long a cached grant can outlive an invalidation we
// failed to deliver. Validity is re-evaluated on every read regardless, so
// the TTL only limits staleness of revocations, not of expiry.
const DefaultTTL = 30 * time.Second

// tombstone is what Invalidate leaves behind. Put is set-if-absent, so a
// store lookup that was already in flight when the grant got revoked cannot
// write the stale grant over the tombstone and resurrect it.
const tombstone = "__revoked__"

// GrantCache keeps token -> grant lookups out of the primary store on the hot
// redemption path. It is strictly an accelerator: a miss or a redis outage
// falls back to the store.
type GrantCache struct {
	Client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client) *GrantCache {
	return &GrantCache{Client: client, ttl: DefaultTTL}
}

func (c *GrantCache) buildKey(token string) string {
	return fmt.Sprintf("grant:token:%s", token)
}

func (c *GrantCache) Put(ctx context.Context, grant *grantInfo.Grant) error {
	if grant.Kind != grantInfo.KindLink {
		return nil
	}
	data, err := json.Marshal(grant)
	if err != nil {
		return err
	}
	return c.Client.SetNX(ctx, c.buildKey(grant.Token), data, c.ttl).Err()
}

func (c *GrantCache) GetByToken(ctx context.Context, token string) (*grantInfo.Grant, error) {
	data, err := c.Client.Get(ctx, c.buildKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if string(data) == tombstone {
		return nil, nil
	}
	var grant grantInfo.Grant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Invalidate replaces the entry with a tombstone rather than deleting it. A
// bare delete leaves a window where a racing Put lands on an empty key; the
// tombstone holds the key until any in-flight lookup is long gone.
func (c *GrantCache) Invalidate(ctx context.Context, token string) error {
	return c.Client.Set(ctx, c.buildKey(token), tombstone, c.ttl).Err()
}
