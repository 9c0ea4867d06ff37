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
	"time"
)

// DefaultInitialValue is the starting value of a replayed portfolio
const DefaultInitialValue = 1_000_000.0

// ValuePoint is the value of the portfolio at the close of a trading date
type ValuePoint struct {
	Date  time.Time
	Value float64
}

// ValueSeries is a portfolio value history with strictly increasing dates
type ValueSeries struct {
	Points []ValuePoint
}

func (s *ValueSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Values returns the portfolio values in date order
func (s *ValueSeries) Values() []float64 {
	vals := make([]float64, s.Len())
	for idx, p := range s.Points {
		vals[idx] = p.Value
	}
	return vals
}

// DrawDown is a period in which the portfolio fell from its previous peak. Recovery
// is the zero time when the portfolio has not yet recovered.
type DrawDown struct {
	Begin       time.Time
	End         time.Time
	Recovery    time.Time
	LossPercent float64
}

// DrawdownMetrics describes the worst peak-to-trough decline of a value series
type DrawdownMetrics struct {
	// MaxDrawdown is the magnitude of the worst decline, in [0, 1]
	MaxDrawdown float64
	TroughDate  time.Time

	// RecoveryDate and RecoveryDays are nil when the series never regains the peak
	RecoveryDate *time.Time
	RecoveryDays *int
}

// SeriesMetrics are annualized statistics of a value series
type SeriesMetrics struct {
	Return     float64
	Volatility float64

	// SharpeRatio is nil when the series has no volatility
	SharpeRatio *float64

	DrawdownMetrics
}
