package tenant

import (
	"context"

	redis "github.com/go-redis/redis/v8"
	"github.com/leeforge/bot/json"
)

// RedisStore keeps each tenant as a JSON value under <prefix>tenant:<id>.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, prefix: keyPrefix}
}

func (s *RedisStore) key(tenantID string) string {
	return s.prefix + "tenant:" + tenantID
}

func (s *RedisStore) Load(ctx context.Context, tenantID string) (*Overrides, error) {
	data, err := s.client.Get(ctx, s.key(tenantID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var o Overrides
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	o.TenantID = tenantID
	return &o, nil
}

func (s *RedisStore) Save(ctx context.Context, o *Overrides) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(o.TenantID), data, 0).Err()
}
