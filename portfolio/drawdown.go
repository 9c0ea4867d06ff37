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
	"sort"
	"time"
)

// Analyze finds the maximum drawdown of the series, the date of its trough and the
// first date after the trough on which the series regained the peak it fell from.
func Analyze(series *ValueSeries) *DrawdownMetrics {
	res := &DrawdownMetrics{}
	if series.Len() == 0 {
		return res
	}

	pts := series.Points
	peak := pts[0].Value
	peakAtTrough := peak
	worst := 0.0
	troughIdx := 0

	for idx, p := range pts {
		peak = math.Max(peak, p.Value)
		if peak <= 0 {
			continue
		}
		dd := (p.Value - peak) / peak
		if dd < worst {
			worst = dd
			troughIdx = idx
			peakAtTrough = peak
		}
	}

	res.MaxDrawdown = math.Abs(worst)
	res.TroughDate = pts[troughIdx].Date
	if worst == 0 {
		return res
	}

	for _, p := range pts[troughIdx+1:] {
		if p.Value >= peakAtTrough {
			recovery := p.Date
			days := calendarDays(res.TroughDate, recovery)
			res.RecoveryDate = &recovery
			res.RecoveryDays = &days
			break
		}
	}

	return res
}

// AllDrawDowns computes all draw downs of the series. A draw down is the period in
// which the portfolio falls from its previous peak; it includes the time period of
// the loss, the percent lost and when the portfolio recovered.
func AllDrawDowns(series *ValueSeries) []*DrawDown {
	allDrawDowns := []*DrawDown{}
	if series.Len() < 2 {
		return allDrawDowns
	}

	peak := series.Points[0].Value
	var drawDown *DrawDown
	var prev time.Time
	for _, v := range series.Points {
		peak = math.Max(peak, v.Value)
		diff := v.Value - peak
		if diff < 0 {
			if drawDown == nil {
				drawDown = &DrawDown{
					Begin:       prev,
					End:         v.Date,
					LossPercent: (v.Value / peak) - 1.0,
				}
			}

			loss := v.Value/peak - 1.0
			if loss < drawDown.LossPercent {
				drawDown.End = v.Date
				drawDown.LossPercent = loss
			}
		} else if drawDown != nil {
			drawDown.Recovery = v.Date
			allDrawDowns = append(allDrawDowns, drawDown)
			drawDown = nil
		}
		prev = v.Date
	}

	// a draw down still open at the end of the series has no recovery
	if drawDown != nil {
		allDrawDowns = append(allDrawDowns, drawDown)
	}

	return allDrawDowns
}

// TopDrawDowns returns the n deepest draw downs, deepest first
func TopDrawDowns(series *ValueSeries, n int) []*DrawDown {
	all := AllDrawDowns(series)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].LossPercent < all[j].LossPercent
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// calendarDays counts whole days between two dates, ignoring DST shifts
func calendarDays(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
