package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the state map in a Redis hash, one field per date key.
// The whole hash is replaced on every save inside a transaction so a
// concurrent reader never sees a half-written map.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "ph-top5:daily-state"
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]DailyState, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("state: redis hgetall %s: %w", s.key, err)
	}
	states := make(map[string]DailyState, len(fields))
	for date, raw := range fields {
		var st DailyState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("state: parse entry %s: %w", date, err)
		}
		states[date] = st
	}
	return states, nil
}

func (s *RedisStore) Save(ctx context.Context, states map[string]DailyState) error {
	vals := make(map[string]any, len(states))
	for date, st := range states {
		b, err := json.Marshal(st)
		if err != nil {
			return err
		}
		vals[date] = string(b)
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key)
		if len(vals) > 0 {
			p.HSet(ctx, s.key, vals)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("state: redis save %s: %w", s.key, err)
	}
	return nil
}
