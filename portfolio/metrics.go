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
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/penny-vault/pv-optimizer/dataframe"
	"github.com/penny-vault/pv-optimizer/returns"
)

// Metrics computes annualized return and volatility of the simple period returns of
// the series together with its Sharpe ratio and drawdown
func Metrics(series *ValueSeries, freq returns.Frequency, rf float64) *SeriesMetrics {
	res := &SeriesMetrics{
		DrawdownMetrics: *Analyze(series),
	}
	if series.Len() < 2 {
		return res
	}

	df := &dataframe.DataFrame{
		Dates:    make([]time.Time, series.Len()),
		ColNames: []string{"portfolio_value"},
		Vals:     [][]float64{series.Values()},
	}
	for idx, p := range series.Points {
		df.Dates[idx] = p.Date
	}

	rets := df.PctChange().Vals[0]
	factor := float64(freq)

	res.Return = stat.Mean(rets, nil) * factor
	if len(rets) > 1 {
		res.Volatility = stat.StdDev(rets, nil) * math.Sqrt(factor)
	}

	if res.Volatility > 0 && !math.IsNaN(res.Volatility) {
		sharpe := (res.Return - rf) / res.Volatility
		res.SharpeRatio = &sharpe
	}

	return res
}
