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

import "math"

// ReplaceValue sets every occurrence of val to with, in place
func (df *DataFrame) ReplaceValue(val, with float64) *DataFrame {
	for _, col := range df.Vals {
		for idx, v := range col {
			if v == val {
				col[idx] = with
			}
		}
	}
	return df
}

// FillValue replaces every occurrence of val, in place, with the closest preceding value
// of the column that is neither val nor NaN; when there is none the closest following
// such value is used, and NaN if the column has none at all. Existing NaNs are left
// untouched.
func (df *DataFrame) FillValue(val float64) *DataFrame {
	for _, col := range df.Vals {
		usable := func(v float64) bool {
			return v != val && !math.IsNaN(v)
		}

		last := math.NaN()
		var pending []int
		for idx, v := range col {
			switch {
			case v == val && math.IsNaN(last):
				pending = append(pending, idx)
			case v == val:
				col[idx] = last
			case usable(v):
				last = v
				for _, p := range pending {
					col[p] = v
				}
				pending = pending[:0]
			}
		}
		for _, p := range pending {
			col[p] = math.NaN()
		}
	}
	return df
}
