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

package data

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultAssetCacheTTL = 24 * time.Hour

// Clock returns the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type assetSnapshot struct {
	assets []*Asset
	loaded time.Time
}

// AssetCache is a read-through cache of the asset reference list. A refresh builds a
// complete new snapshot and publishes it with a single atomic store, so readers see
// either the old list or the new one.
type AssetCache struct {
	lister AssetLister
	clock  Clock
	ttl    time.Duration

	snapshot atomic.Pointer[assetSnapshot]
	loadMu   sync.Mutex
}

// NewAssetCache creates a cache over lister. A nil clock uses the wall clock and a
// non-positive ttl uses DefaultAssetCacheTTL.
func NewAssetCache(lister AssetLister, clock Clock, ttl time.Duration) *AssetCache {
	if clock == nil {
		clock = SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultAssetCacheTTL
	}
	return &AssetCache{
		lister: lister,
		clock:  clock,
		ttl:    ttl,
	}
}

// Get returns the asset list, reloading it when the snapshot is older than the ttl.
// If a reload fails and an older snapshot exists, the older snapshot is served.
func (c *AssetCache) Get(ctx context.Context) ([]*Asset, error) {
	if snap := c.snapshot.Load(); snap != nil && c.fresh(snap) {
		return copyAssets(snap.assets), nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	// another caller may have refreshed while we waited
	snap := c.snapshot.Load()
	if snap != nil && c.fresh(snap) {
		return copyAssets(snap.assets), nil
	}

	newSnap, err := c.load(ctx)
	if err != nil {
		if snap != nil {
			log.Warn().Err(err).Time("LoadedAt", snap.loaded).Msg("asset list refresh failed; serving previous list")
			return copyAssets(snap.assets), nil
		}
		return nil, err
	}

	return copyAssets(newSnap.assets), nil
}

// Refresh reloads the asset list regardless of its age
func (c *AssetCache) Refresh(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	_, err := c.load(ctx)
	return err
}

// LastUpdate returns when the current snapshot was loaded or the zero time
func (c *AssetCache) LastUpdate() time.Time {
	if snap := c.snapshot.Load(); snap != nil {
		return snap.loaded
	}
	return time.Time{}
}

// load must be called with loadMu held
func (c *AssetCache) load(ctx context.Context) (*assetSnapshot, error) {
	assets, err := c.lister.ListAssets(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not load asset list")
		return nil, err
	}

	snap := &assetSnapshot{
		assets: copyAssets(assets),
		loaded: c.clock.Now(),
	}
	c.snapshot.Store(snap)

	log.Info().Int("NumAssets", len(assets)).Msg("asset list refreshed")
	return snap, nil
}

func (c *AssetCache) fresh(snap *assetSnapshot) bool {
	return c.clock.Now().Sub(snap.loaded) <= c.ttl
}

func copyAssets(assets []*Asset) []*Asset {
	res := make([]*Asset, len(assets))
	for idx, a := range assets {
		cp := *a
		res[idx] = &cp
	}
	return res
}
