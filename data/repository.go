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
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-optimizer/common"
)

// PriceStore reads closing prices of a single asset class. Implementations return
// series ordered by identifier with strictly increasing dates.
type PriceStore interface {
	FetchClose(ctx context.Context, class AssetClass, ids []string, begin, end time.Time) ([]*AssetSeries, error)
}

// PriceWriter is implemented by stores that accept new observations
type PriceWriter interface {
	LastTradeDate(ctx context.Context, class AssetClass, id string) (time.Time, bool, error)
	SaveObservations(ctx context.Context, class AssetClass, id string, obs []Observation) (int, error)
}

// AssetLister returns the asset reference list
type AssetLister interface {
	ListAssets(ctx context.Context) ([]*Asset, error)
}

// PriceRepository resolves identifiers and a date range into closing price series
type PriceRepository interface {
	Fetch(ctx context.Context, ids []string, class AssetClass, begin, end time.Time) ([]*AssetSeries, error)
	FetchMode(ctx context.Context, ids []string, mode Mode, begin, end time.Time) ([]*AssetSeries, error)
}

// Repository validates requests and routes them to a PriceStore
type Repository struct {
	store      PriceStore
	classifier *Classifier
}

// NewRepository creates a repository over store; a nil classifier uses the default table
func NewRepository(store PriceStore, classifier *Classifier) *Repository {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &Repository{
		store:      store,
		classifier: classifier,
	}
}

// Classifier returns the lookup table used to route identifiers in ModeAssets
func (r *Repository) Classifier() *Classifier {
	return r.classifier
}

// Fetch returns the closing prices of ids in class between begin and end (inclusive).
// An empty result is not an error.
func (r *Repository) Fetch(ctx context.Context, ids []string, class AssetClass, begin, end time.Time) ([]*AssetSeries, error) {
	ids = normalize(ids)
	if err := r.validate(ids, begin, end); err != nil {
		return nil, err
	}
	if !class.Valid() {
		return nil, ErrUnknownAssetClass
	}

	subLog := log.With().Str("AssetClass", string(class)).Strs("Ids", ids).Time("Begin", begin).Time("End", end).Logger()

	series, err := r.store.FetchClose(ctx, class, ids, begin, end)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not fetch closing prices")
		return nil, err
	}

	subLog.Debug().Int("NumSeries", len(series)).Msg("fetched closing prices")
	return series, nil
}

// FetchMode partitions ids by mode and merges the per-class results. The result is
// ordered by identifier.
func (r *Repository) FetchMode(ctx context.Context, ids []string, mode Mode, begin, end time.Time) ([]*AssetSeries, error) {
	ids = normalize(ids)
	if err := r.validate(ids, begin, end); err != nil {
		return nil, err
	}

	parts, err := r.classifier.Partition(ids, mode)
	if err != nil {
		return nil, err
	}

	res := make([]*AssetSeries, 0, len(ids))
	for _, class := range []AssetClass{Equity, Index, Currency} {
		classIDs, ok := parts[class]
		if !ok || len(classIDs) == 0 {
			continue
		}
		series, err := r.Fetch(ctx, classIDs, class, begin, end)
		if err != nil {
			return nil, err
		}
		res = append(res, series...)
	}

	sort.SliceStable(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *Repository) validate(ids []string, begin, end time.Time) error {
	if r.store == nil {
		return ErrNoStore
	}
	if len(ids) == 0 {
		return ErrNoIdentifiers
	}
	if end.Before(begin) {
		return ErrInvalidTimeRange
	}
	return nil
}

// normalize trims and uppercases ids, drops blanks and removes duplicates
func normalize(ids []string) []string {
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			res = append(res, id)
		}
	}
	common.ArrToUpper(res)
	return common.UniqueStrings(res)
}
