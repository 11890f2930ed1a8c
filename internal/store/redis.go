package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/seantiz/estimator/internal/model"
)

// DefaultRedisPrefix is the key prefix used when none is configured.
const DefaultRedisPrefix = "estimator"

// Compile-time interface satisfaction check.
var _ DataStore = (*RedisDataStore)(nil)

// RedisDataStore implements DataStore on Redis. Each (substance, force field)
// pair is a hash of data id to msgpack-encoded StoredData, and each substance
// keeps a set of the force fields it has data for.
type RedisDataStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisDataStore connects to the Redis server at url.
// Format: redis://[:password@]host:port[/db]
func NewRedisDataStore(url, prefix string) (*RedisDataStore, error) {
	if url == "" {
		return nil, errors.New("redis data store requires a URL")
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis data store: invalid URL: %w", err)
	}

	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisDataStore{
		client: goredis.NewClient(opts),
		prefix: prefix,
	}, nil
}

// Ping checks connectivity to the server.
func (s *RedisDataStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisDataStore) Close() error {
	return s.client.Close()
}

// StoreData persists d under substanceID.
func (s *RedisDataStore) StoreData(ctx context.Context, substanceID string, d *model.StoredData) error {
	if d.ID == "" {
		d.ID = model.NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	b, err := msgpack.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode stored data: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.dataKey(substanceID, d.ForceFieldID), d.ID, b)
		pipe.SAdd(ctx, s.forceFieldsKey(substanceID), d.ForceFieldID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store data: %w", err)
	}
	return nil
}

// RetrieveData returns the data stored for substanceID, oldest first.
func (s *RedisDataStore) RetrieveData(ctx context.Context, substanceID, forceFieldID string) ([]*model.StoredData, error) {
	forceFields := []string{forceFieldID}
	if forceFieldID == "" {
		members, err := s.client.SMembers(ctx, s.forceFieldsKey(substanceID)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis list force fields: %w", err)
		}
		forceFields = members
	}

	var out []*model.StoredData
	for _, ff := range forceFields {
		entries, err := s.client.HGetAll(ctx, s.dataKey(substanceID, ff)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis retrieve data: %w", err)
		}
		for id, raw := range entries {
			var d model.StoredData
			if err := msgpack.Unmarshal([]byte(raw), &d); err != nil {
				return nil, fmt.Errorf("decode stored data %s: %w", id, err)
			}
			out = append(out, &d)
		}
	}

	slices.SortFunc(out, func(a, b *model.StoredData) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *RedisDataStore) dataKey(substanceID, forceFieldID string) string {
	return fmt.Sprintf("%s:data:%s:%s", s.prefix, substanceID, forceFieldID)
}

func (s *RedisDataStore) forceFieldsKey(substanceID string) string {
	return fmt.Sprintf("%s:forcefields:%s", s.prefix, substanceID)
}
