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
	"math"
	"time"
)

// MonthEnd resamples the dataframe to one row per calendar month holding the last
// observed (non-NaN) value of each column in that month. Rows are labelled with the
// last date of the month present in the index. Returns a new dataframe.
func (df *DataFrame) MonthEnd() *DataFrame {
	res := &DataFrame{
		ColNames: df.ColNames,
		Dates:    make([]time.Time, 0, df.Len()/20+1),
		Vals:     make([][]float64, len(df.Vals)),
	}
	for colIdx := range res.Vals {
		res.Vals[colIdx] = make([]float64, 0, cap(res.Dates))
	}

	if df.Len() == 0 {
		return res
	}

	begin := 0
	for rowIdx := 1; rowIdx <= df.Len(); rowIdx++ {
		if rowIdx < df.Len() && sameMonth(df.Dates[rowIdx], df.Dates[begin]) {
			continue
		}

		// rows [begin, rowIdx) are one calendar month
		res.Dates = append(res.Dates, df.Dates[rowIdx-1])
		for colIdx, col := range df.Vals {
			last := math.NaN()
			for ii := rowIdx - 1; ii >= begin; ii-- {
				if !math.IsNaN(col[ii]) {
					last = col[ii]
					break
				}
			}
			res.Vals[colIdx] = append(res.Vals[colIdx], last)
		}
		begin = rowIdx
	}

	return res
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
