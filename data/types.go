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
	"fmt"
	"strings"
	"time"
)

// AssetClass partitions the price store; each class has its own table
type AssetClass string

const (
	Equity   AssetClass = "equity"
	Index    AssetClass = "index"
	Currency AssetClass = "currency"
)

// Valid reports whether c is one of the known asset classes
func (c AssetClass) Valid() bool {
	switch c {
	case Equity, Index, Currency:
		return true
	}
	return false
}

// ParseAssetClass converts a string to an AssetClass. "stock" is accepted as an alias of equity.
func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equity", "stock":
		return Equity, nil
	case "index":
		return Index, nil
	case "currency":
		return Currency, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAssetClass, s)
}

// Mode selects how identifiers are routed to asset classes. In ModeTickers every
// identifier is an equity; in ModeAssets identifiers go through the Classifier.
type Mode string

const (
	ModeTickers Mode = "tickers"
	ModeAssets  Mode = "assets"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeTickers:
		return ModeTickers, nil
	case ModeAssets:
		return ModeAssets, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Observation is the closing price of an asset on a trading date
type Observation struct {
	Date  time.Time
	Close float64
}

// AssetSeries is the ordered closing price history of a single asset. Dates are
// strictly increasing.
type AssetSeries struct {
	ID           string
	Class        AssetClass
	Observations []Observation
}

// Len returns the number of observations
func (s *AssetSeries) Len() int {
	return len(s.Observations)
}

// Start returns the first observation date or the zero time for an empty series
func (s *AssetSeries) Start() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[0].Date
}

// End returns the last observation date or the zero time for an empty series
func (s *AssetSeries) End() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[len(s.Observations)-1].Date
}

// Asset is an entry of the asset reference list
type Asset struct {
	Ticker  string `json:"ticker"`
	AssetRu string `json:"asset_ru"`
}

// table layout per asset class
type classTable struct {
	name  string
	idCol string
}

var classTables = map[AssetClass]classTable{
	Equity:   {name: "stock_values", idCol: "ticker"},
	Index:    {name: "index_values", idCol: "secid"},
	Currency: {name: "currency_values", idCol: "secid"},
}

func tableFor(class AssetClass) (classTable, error) {
	tbl, ok := classTables[class]
	if !ok {
		return classTable{}, fmt.Errorf("%w: %q", ErrUnknownAssetClass, class)
	}
	return tbl, nil
}

// seriesBuilder groups (id, date, close) rows into AssetSeries. Rows must arrive
// ordered by id then date; a repeated date replaces the earlier observation.
type seriesBuilder struct {
	class  AssetClass
	series []*AssetSeries
	byID   map[string]*AssetSeries
}

func newSeriesBuilder(class AssetClass) *seriesBuilder {
	return &seriesBuilder{
		class: class,
		byID:  make(map[string]*AssetSeries),
	}
}

func (b *seriesBuilder) add(id string, date time.Time, close float64) {
	s, ok := b.byID[id]
	if !ok {
		s = &AssetSeries{ID: id, Class: b.class}
		b.byID[id] = s
		b.series = append(b.series, s)
	}

	n := len(s.Observations)
	if n > 0 {
		last := s.Observations[n-1].Date
		if date.Equal(last) {
			s.Observations[n-1].Close = close
			return
		}
		if date.Before(last) {
			// out of order rows are ignored; the store guarantees ordering
			return
		}
	}
	s.Observations = append(s.Observations, Observation{Date: date, Close: close})
}

func (b *seriesBuilder) result() []*AssetSeries {
	return b.series
}

func toDate(t time.Time, tz *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz)
}
