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

package dataframe

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// NewSeries creates a named column; dates and vals must have the same length
func NewSeries(name string, dates []time.Time, vals []float64) (*Series, error) {
	if len(dates) != len(vals) {
		return nil, fmt.Errorf("%w: %s has %d dates and %d values", ErrLengthMismatch, name, len(dates), len(vals))
	}
	return &Series{Name: name, Dates: dates, Vals: vals}, nil
}

// Align merges series into a single dataframe indexed by the union of their dates.
// Dates a series does not cover are NaN. Columns keep the order of the arguments; when
// a series repeats a date the later value wins.
func Align(series ...*Series) *DataFrame {
	dateSet := make(map[int64]time.Time)
	for _, s := range series {
		for _, dt := range s.Dates {
			dateSet[dt.UnixNano()] = dt
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, dt := range dateSet {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowIdx := make(map[int64]int, len(dates))
	for idx, dt := range dates {
		rowIdx[dt.UnixNano()] = idx
	}

	df := &DataFrame{
		Dates:    dates,
		ColNames: make([]string, len(series)),
		Vals:     make([][]float64, len(series)),
	}

	for colIdx, s := range series {
		df.ColNames[colIdx] = s.Name
		col := make([]float64, len(dates))
		for idx := range col {
			col[idx] = math.NaN()
		}
		for idx, dt := range s.Dates {
			col[rowIdx[dt.UnixNano()]] = s.Vals[idx]
		}
		df.Vals[colIdx] = col
	}

	return df
}
