package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sitecloner/api/internal/model"
)

const (
	sessionKeyPrefix = "session:"
	sessionIndexKey  = "sessions:created"

	// Update retries the optimistic transaction this many times before
	// giving up; contention on a single session is rare and short-lived.
	maxUpdateRetries = 10
)

// RedisStore persists sessions as JSON values with a sorted-set index on
// creation time for listing. Updates use WATCH-based optimistic
// transactions so concurrent writers to the same session serialize instead
// of interleaving.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a store. ttl bounds session retention; zero keeps
// sessions until explicitly deleted.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *RedisStore) Create(ctx context.Context, s *model.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, sessionKey(s.SessionID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.SessionID)
	}

	return r.rdb.ZAdd(ctx, sessionIndexKey, redis.Z{
		Score:  float64(s.CreatedAt.UnixNano()),
		Member: s.SessionID,
	}).Err()
}

func (r *RedisStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Update(ctx context.Context, id string, mutate func(*model.Session)) (*model.Session, error) {
	key := sessionKey(id)
	var updated *model.Session

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return ErrNotFound
			}
			return err
		}
		var s model.Session
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to unmarshal session %s: %w", id, err)
		}
		mutate(&s)
		payload, err := json.Marshal(&s)
		if err != nil {
			return fmt.Errorf("failed to marshal session %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err == nil {
			updated = &s
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.rdb.Watch(ctx, txn, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("session %s update retries exhausted", id)
}

func (r *RedisStore) List(ctx context.Context, q ListQuery) ([]*model.Session, int, error) {
	// Newest first. The index may reference keys that already expired;
	// those are skipped and pruned.
	ids, err := r.rdb.ZRevRange(ctx, sessionIndexKey, 0, -1).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []*model.Session{}, 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, err
	}

	matched := make([]*model.Session, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			r.rdb.ZRem(ctx, sessionIndexKey, ids[i])
			continue
		}
		var s model.Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			continue
		}
		if q.Status != "" && s.Status != q.Status {
			continue
		}
		matched = append(matched, &s)
	}

	total := len(matched)
	if q.Offset >= total {
		return []*model.Session{}, total, nil
	}
	end := q.Offset + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}
	return matched[q.Offset:end], total, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	deleted, err := r.rdb.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return err
	}
	r.rdb.ZRem(ctx, sessionIndexKey, id)
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}
