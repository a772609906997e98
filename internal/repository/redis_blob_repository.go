package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBlobRepo keeps the schedule blob in a single Redis string key with
// no expiry.
type RedisBlobRepo struct {
	rdb *redis.Client
	key string
}

// NewRedisBlobRepo returns a RedisBlobRepo bound to key on the given client.
func NewRedisBlobRepo(rdb *redis.Client, key string) *RedisBlobRepo {
	return &RedisBlobRepo{rdb: rdb, key: key}
}

// Read fetches the blob.  A missing key maps to ErrBlobNotFound.
func (r *RedisBlobRepo) Read(ctx context.Context) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return data, nil
}

// Write overwrites the key with data.
func (r *RedisBlobRepo) Write(ctx context.Context, data []byte) error {
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
