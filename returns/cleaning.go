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

package returns

import (
	"math"

	"github.com/penny-vault/pv-optimizer/dataframe"
)

// CleaningPolicy decides what happens to missing and zero prices before returns are
// computed. Implementations must leave no NaN in the returned frame.
type CleaningPolicy interface {
	Name() string
	Clean(df *dataframe.DataFrame) *dataframe.DataFrame
}

// ZeroFillThenDrop fills zero closes from the nearest earlier close of the same asset
// (or the nearest later one when there is none) and then drops every row that has a
// gap. Gaps from alignment, dates on which an asset has no observation, are never
// filled, so the result is the inner join of the series.
type ZeroFillThenDrop struct{}

func (ZeroFillThenDrop) Name() string {
	return "zero-fill-then-drop"
}

func (ZeroFillThenDrop) Clean(df *dataframe.DataFrame) *dataframe.DataFrame {
	return df.Copy().FillValue(0).Drop(math.NaN())
}

// DropMissing removes every row with a zero or missing close without filling
type DropMissing struct{}

func (DropMissing) Name() string {
	return "drop-missing"
}

func (DropMissing) Clean(df *dataframe.DataFrame) *dataframe.DataFrame {
	return df.Copy().ReplaceValue(0, math.NaN()).Drop(math.NaN())
}

// DefaultCleaningPolicy is used when no policy is supplied
var DefaultCleaningPolicy CleaningPolicy = ZeroFillThenDrop{}

// PolicyByName returns the policy with the given name; ok is false if it is unknown
func PolicyByName(name string) (policy CleaningPolicy, ok bool) {
	for _, p := range []CleaningPolicy{ZeroFillThenDrop{}, DropMissing{}} {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}
