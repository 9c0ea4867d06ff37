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

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/tradecron"
	"github.com/rs/zerolog/log"
)

// Fetcher retrieves closing prices for a single identifier
type Fetcher interface {
	Fetch(ctx context.Context, class data.AssetClass, id string, begin, end time.Time) ([]data.Observation, error)
}

// Report summarizes an update run
type Report struct {
	Saved   int
	Updated []string
	Failed  []string
}

// Updater incrementally brings a price store up to date
type Updater struct {
	fetcher  Fetcher
	store    data.PriceWriter
	clock    data.Clock
	calendar *tradecron.Calendar
	market   *tradecron.MarketStatus
}

// NewUpdater creates an updater that writes rows downloaded by fetcher into store
func NewUpdater(fetcher Fetcher, store data.PriceWriter) *Updater {
	return &Updater{
		fetcher: fetcher,
		store:   store,
		clock:   data.SystemClock{},
		market:  tradecron.NewMarketStatus(&tradecron.RegularHours, nil),
	}
}

// WithCalendar sets the exchange holidays; without one only weekends are skipped
func (u *Updater) WithCalendar(cal *tradecron.Calendar) *Updater {
	u.calendar = cal
	u.market = tradecron.NewMarketStatus(&tradecron.RegularHours, cal)
	return u
}

// WithClock replaces the clock used to compute the last complete trading day
func (u *Updater) WithClock(clock data.Clock) *Updater {
	u.clock = clock
	return u
}

// Update downloads everything after the last stored trade date for each id up to
// the last complete trading day. Failures are logged per id and do not abort the run.
func (u *Updater) Update(ctx context.Context, class data.AssetClass, ids []string) (*Report, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("%w: %q", data.ErrUnknownAssetClass, class)
	}

	report := &Report{}
	end := u.market.PreviousTradingDay(u.clock.Now())

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		subLog := log.With().Str("AssetClass", string(class)).Str("Id", id).Logger()

		begin := common.InitialTradeDate()
		last, ok, err := u.store.LastTradeDate(ctx, class, id)
		if err != nil {
			subLog.Error().Stack().Err(err).Msg("could not read last trade date")
			report.Failed = append(report.Failed, id)
			continue
		}
		if ok {
			begin = last.AddDate(0, 0, 1)
		}

		if begin.After(end) {
			subLog.Debug().Msg("already up to date")
			continue
		}

		obs, err := u.fetcher.Fetch(ctx, class, id, begin, end)
		if err != nil {
			subLog.Error().Stack().Err(err).Msg("could not download prices")
			report.Failed = append(report.Failed, id)
			continue
		}

		n, err := u.store.SaveObservations(ctx, class, id, obs)
		if err != nil {
			subLog.Error().Stack().Err(err).Msg("could not save prices")
			report.Failed = append(report.Failed, id)
			continue
		}

		subLog.Info().Int("NumRows", n).Time("Begin", begin).Time("End", end).Msg("prices updated")
		report.Saved += n
		report.Updated = append(report.Updated, id)
	}

	return report, nil
}

// UpdateAll routes ids through the classifier and updates every resulting class
func (u *Updater) UpdateAll(ctx context.Context, classifier *data.Classifier, ids []string) (*Report, error) {
	if classifier == nil {
		classifier = data.DefaultClassifier()
	}

	parts, err := classifier.Partition(ids, data.ModeAssets)
	if err != nil {
		return nil, err
	}

	total := &Report{}
	for _, class := range []data.AssetClass{data.Equity, data.Index, data.Currency} {
		classIDs, ok := parts[class]
		if !ok {
			continue
		}
		report, err := u.Update(ctx, class, classIDs)
		if report != nil {
			total.Saved += report.Saved
			total.Updated = append(total.Updated, report.Updated...)
			total.Failed = append(total.Failed, report.Failed...)
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
