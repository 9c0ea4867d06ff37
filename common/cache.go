// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
)

const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 15 * time.Minute
)

var (
	ErrCacheSize = errors.New("cache size must be positive")
)

// Cache is a time-bounded result cache. Values are lz4 compressed and kept in a
// process local LRU; when a redis client is configured they are also written through
// to redis so that multiple api instances share results.
type Cache struct {
	local *lru.Cache
	rdb   *redis.Client
	ttl   time.Duration

	// Now is used to expire local entries; replaced in tests
	Now func() time.Time
}

type cacheEntry struct {
	expires time.Time
	data    []byte
}

// NewCache creates a cache holding at most size entries for ttl. redisURL may be empty.
func NewCache(size int, ttl time.Duration, redisURL string) (*Cache, error) {
	if size <= 0 {
		return nil, ErrCacheSize
	}

	local, err := lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return nil, err
	}

	c := &Cache{
		local: local,
		ttl:   ttl,
		Now:   time.Now,
	}

	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return nil, err
		}
		c.rdb = redis.NewClient(opt)
	}

	return c, nil
}

// SetupCache builds the cache from the `cache.*` configuration keys
func SetupCache() (*Cache, error) {
	size := viper.GetInt("cache.local_size")
	if size == 0 {
		size = DefaultCacheSize
	}

	ttl := time.Duration(viper.GetInt("cache.ttl")) * time.Second
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	redisURL := ""
	if viper.GetBool("cache.redis") {
		redisURL = viper.GetString("cache.redis_url")
	}

	return NewCache(size, ttl, redisURL)
}

// Set stores the bytes under key
func (c *Cache) Set(ctx context.Context, key string, val []byte) error {
	compressed, err := compress(val)
	if err != nil {
		return err
	}

	c.local.Add(key, &cacheEntry{
		expires: c.Now().Add(c.ttl),
		data:    compressed,
	})

	if c.rdb != nil {
		return c.rdb.Set(ctx, key, compressed, c.ttl).Err()
	}
	return nil
}

// Get returns the bytes stored under key; ok is false on a miss
func (c *Cache) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	if v, found := c.local.Get(key); found {
		entry := v.(*cacheEntry)
		if c.Now().Before(entry.expires) {
			val, err = decompress(entry.data)
			return val, err == nil, err
		}
		c.local.Remove(key)
	}

	if c.rdb == nil {
		return nil, false, nil
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("redis cache lookup failed")
		return nil, false, err
	}

	// refill the local tier
	c.local.Add(key, &cacheEntry{
		expires: c.Now().Add(c.ttl),
		data:    raw,
	})

	val, err = decompress(raw)
	return val, err == nil, err
}

// SetJSON serializes v and stores it under key
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data)
}

// GetJSON deserializes the value stored under key into v
func (c *Cache) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// Len returns the number of entries in the local tier
func (c *Cache) Len() int {
	return c.local.Len()
}

// CacheKey hashes the JSON encoding of v into a key with the given prefix
func CacheKey(prefix string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:]), nil
}

func compress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	zw := lz4.NewWriter(w)
	if _, err := io.Copy(zw, bytes.NewReader(in)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decompress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	if _, err := io.Copy(w, lz4.NewReader(bytes.NewReader(in))); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
