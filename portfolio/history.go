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

package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/returns"
)

const NoDataMessage = "No data for the selected securities."

// Replay reconstructs the value of a buy-and-hold portfolio with constant weights.
// Prices are aligned and cleaned like returns.Build and inner joined, so every date
// of the result has a price for every asset. The first aligned date carries
// initialValue. The returned message describes the date range the data covers; an
// empty series is returned with NoDataMessage when nothing overlaps.
func Replay(weights map[string]float64, series []*data.AssetSeries, begin, end time.Time, initialValue float64, freq returns.Frequency, opts ...returns.Option) (*ValueSeries, string) {
	subLog := log.With().Time("Begin", begin).Time("End", end).Int("Freq", int(freq)).Logger()

	if err := freq.Validate(); err != nil {
		subLog.Warn().Err(err).Msg("invalid frequency for replay; using daily")
		freq = returns.Daily
	}

	inRange := make([]*data.AssetSeries, 0, len(series))
	for _, s := range series {
		if s == nil {
			continue
		}
		inRange = append(inRange, clip(s, begin, end))
	}

	empty := &ValueSeries{Points: []ValuePoint{}}

	prices, err := returns.PriceMatrix(inRange, freq, opts...)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not build price matrix")
		return empty, NoDataMessage
	}
	if prices.Len() == 0 {
		return empty, NoDataMessage
	}

	cum := prices.LogReturns().WeightedSum("portfolio_value", weights).CumSum()

	res := &ValueSeries{Points: make([]ValuePoint, 0, prices.Len())}
	res.Points = append(res.Points, ValuePoint{Date: prices.Dates[0], Value: initialValue})
	for idx, dt := range cum.Dates {
		res.Points = append(res.Points, ValuePoint{
			Date:  dt,
			Value: initialValue * math.Exp(cum.Vals[0][idx]),
		})
	}

	return res, coverageMessage(weights, inRange)
}

// clip restricts s to observations within [begin, end]
func clip(s *data.AssetSeries, begin, end time.Time) *data.AssetSeries {
	res := &data.AssetSeries{ID: s.ID, Class: s.Class}
	for _, obs := range s.Observations {
		if obs.Date.Before(begin) || obs.Date.After(end) {
			continue
		}
		res.Observations = append(res.Observations, obs)
	}
	return res
}

// coverageMessage reports the window in which every weighted asset has data: from the
// latest first observation to the earliest last observation
func coverageMessage(weights map[string]float64, series []*data.AssetSeries) string {
	var from, to time.Time
	found := false

	for _, s := range series {
		if _, ok := weights[s.ID]; !ok || s.Len() == 0 {
			continue
		}
		if !found {
			from, to = s.Start(), s.End()
			found = true
			continue
		}
		from = common.MaxTime(from, s.Start())
		to = common.MinTime(to, s.End())
	}

	if !found {
		return NoDataMessage
	}

	return fmt.Sprintf("Portfolio history is shown from %s to %s because some securities have limited data.",
		from.Format(common.DateLayout), to.Format(common.DateLayout))
}
