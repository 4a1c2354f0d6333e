package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/velatrade/vela/internal/storage"
)

const opTimeout = 5 * time.Second

// Store persists values as json strings in redis.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore connects to redis at the given address and verifies the connection.
func NewStore(addr string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("could not connect to redis at %s: %w", addr, err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

// StoreShard creates a redis backed storage per shard.
func StoreShard(addr string, db int) storage.Shard {
	return func(shard string) (storage.Persistence, error) {
		return NewStore(addr, db, shard)
	}
}

func (s *Store) key(k storage.Key) string {
	return fmt.Sprintf("%s:%s", s.prefix, k.Path())
}

func (s *Store) Store(k storage.Key, value interface{}) error {
	bb, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not marshal value for '%+v': %w", k, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Set(ctx, s.key(k), bb, 0).Err()
}

func (s *Store) Load(k storage.Key, value interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	data, err := s.client.Get(ctx, s.key(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("no entry for '%+v': %w", k, storage.NotFoundErr)
		}
		return fmt.Errorf("could not read '%+v': %w", k, err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("could not unmarshal '%+v': %w", k, storage.CouldNotLoadErr)
	}
	return nil
}

// Close releases the redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
