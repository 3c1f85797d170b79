package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/redis/go-redis/v9"
)

const DefaultQuotaRedisKey = "pocket:quota"

// RedisSnapshotter keeps the quota table in one hash: user id -> JSON record.
type RedisSnapshotter struct {
	rdb *redis.Client
	key string
}

func NewRedisSnapshotter(rdb *redis.Client, key string) *RedisSnapshotter {
	if key == "" {
		key = DefaultQuotaRedisKey
	}
	return &RedisSnapshotter{rdb: rdb, key: key}
}

func (r *RedisSnapshotter) Load(ctx context.Context) (map[int64]entities.UserQuota, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}
	out := make(map[int64]entities.UserQuota, len(fields))
	for field, raw := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("quota field %q: %w", field, err)
		}
		var q entities.UserQuota
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("decode quota for %d: %w", id, err)
		}
		q.UserID = id
		out[id] = q
	}
	return out, nil
}

func (r *RedisSnapshotter) Save(ctx context.Context, quotas map[int64]entities.UserQuota) error {
	values := make(map[string]any, len(quotas))
	for id, q := range quotas {
		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode quota for %d: %w", id, err)
		}
		values[strconv.FormatInt(id, 10)] = string(raw)
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", r.key, err)
	}
	return nil
}
