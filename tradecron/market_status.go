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

package tradecron

import (
	"time"

	"github.com/penny-vault/pv-optimizer/common"
)

type MarketStatus struct {
	marketHours *MarketHours
	calendar    *Calendar
	tz          *time.Location
}

// NewMarketStatus evaluates trading days against cal in the exchange timezone
func NewMarketStatus(hours *MarketHours, cal *Calendar) *MarketStatus {
	return &MarketStatus{
		marketHours: hours,
		calendar:    cal,
		tz:          common.GetTimezone(),
	}
}

// EarlyClose returns close time of an early close market day, e.g. 1400
func (ms *MarketStatus) EarlyClose(t time.Time) int {
	closeTime, _ := ms.calendar.lookup(t)
	return closeTime
}

// IsMarketHoliday returns true if the specified date is a market holiday
func (ms *MarketStatus) IsMarketHoliday(t time.Time) bool {
	closeTime, ok := ms.calendar.lookup(t)
	return ok && closeTime == 0
}

// IsMarketOpen returns true if the specified time is during market hours
// (i.e. not a market holiday or weekend)
func (ms *MarketStatus) IsMarketOpen(t time.Time) bool {
	if !ms.IsMarketDay(t) {
		return false
	}

	closeTime := ms.marketHours.Close
	if earlyClose := ms.EarlyClose(t); earlyClose != 0 {
		closeTime = earlyClose
	}

	t = t.In(ms.tz)
	timeOfDay := t.Hour()*100 + t.Minute()
	return timeOfDay >= ms.marketHours.Open && timeOfDay <= closeTime
}

// IsMarketDay returns true if the specified date is a valid trading day
// (i.e. not a market holiday or weekend)
func (ms *MarketStatus) IsMarketDay(t time.Time) bool {
	wd := t.In(ms.tz).Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !ms.IsMarketHoliday(t)
}

// PreviousTradingDay returns midnight of the last trading day strictly before the date of t
func (ms *MarketStatus) PreviousTradingDay(t time.Time) time.Time {
	t = t.In(ms.tz)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ms.tz).AddDate(0, 0, -1)
	for !ms.IsMarketDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextFirstTradingDayOfMonth returns the first trading day of the next month
func (ms *MarketStatus) NextFirstTradingDayOfMonth(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, ms.tz)
	d = d.AddDate(0, 1, 0)
	for !ms.IsMarketDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// NextFirstTradingDayOfWeek returns the first trading day of the week
func (ms *MarketStatus) NextFirstTradingDayOfWeek(t time.Time) time.Time {
	daysToWeekBegin := (8 - t.Weekday()) % 7
	t2 := t.AddDate(0, 0, int(daysToWeekBegin))
	for !ms.IsMarketDay(t2) {
		t2 = t2.AddDate(0, 0, 1)
	}

	// adjust t2 to midnight
	return time.Date(t2.Year(), t2.Month(), t2.Day(), 0, 0, 0, 0, ms.tz)
}

// LastTradingDayOfMonth returns the last trading day of the month of t
func (ms *MarketStatus) LastTradingDayOfMonth(t time.Time) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, ms.tz)
	lastOfMonth := firstOfMonth.AddDate(0, 1, -1)
	for !ms.IsMarketDay(lastOfMonth) {
		lastOfMonth = lastOfMonth.AddDate(0, 0, -1)
	}
	return lastOfMonth
}

// NextLastTradingDayOfWeek returns the next last trading day of week
func (ms *MarketStatus) NextLastTradingDayOfWeek(t time.Time) time.Time {
	daysToFriday := time.Friday - t.Weekday()
	lastDayOfWeek := t.AddDate(0, 0, int(daysToFriday))
	for !ms.IsMarketDay(lastDayOfWeek) {
		lastDayOfWeek = lastDayOfWeek.AddDate(0, 0, -1)
	}

	// adjust lastDayOfWeek to midnight
	return time.Date(lastDayOfWeek.Year(), lastDayOfWeek.Month(), lastDayOfWeek.Day(), 0, 0, 0, 0, ms.tz)
}
