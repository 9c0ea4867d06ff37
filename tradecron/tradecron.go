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
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	AtOpen       = "@open"
	AtClose      = "@close"
	AtWeekBegin  = "@weekbegin"
	AtWeekEnd    = "@weekend"
	AtMonthBegin = "@monthbegin"
	AtMonthEnd   = "@monthend"
)

// MarketHours are the session bounds as HHMM in the exchange timezone
type MarketHours struct {
	Open  int
	Close int
}

var (
	// main session including the closing auction
	RegularHours = MarketHours{
		Open:  1000,
		Close: 1850,
	}

	// morning, main and evening sessions
	ExtendedHours = MarketHours{
		Open:  700,
		Close: 2350,
	}
)

// maximum number of schedule steps Next takes before giving up
const maxIters = 5000

// TradeCron is a market aware cron.Schedule
type TradeCron struct {
	Schedule       cron.Schedule
	ScheduleString string
	TimeSpec       string
	TimeFlag       string
	DateFlag       string
	marketStatus   *MarketStatus
}

// New creates a market aware schedule. It supports schedules via the standard CRON
// format of: Minutes(Min) Hours(H) DayOfMonth(DoM) Month(M) DayOfWeek(DoW)
// See: https://en.wikipedia.org/wiki/Cron
//
// When the hour field is a wildcard the schedule only fires during market hours;
// otherwise it fires at the given time on trading days.
//
// Additional market-aware modifiers are supported:
//
//	@open       - Run at market open; replaces Minute and Hour field
//	              e.g., @open * * *
//	@close      - Run at market close; replaces Minute and Hour field
//	@weekbegin  - Run on first trading day of week; replaces DayOfMonth field
//	@weekend    - Run on last trading day of week; replaces DayOfMonth field
//	@monthbegin - Run at market open or timespec on first trading day of month
//	@monthend   - Run at market close or timespec on last trading day of month
//
// Examples:
//   - every 5 minutes: */5 * * * *
//   - market open on tuesdays: @open * * 2
//   - 15 minutes after market open: 15 @open * * *
//   - 30 minutes after the closing auction: @close 30
//   - market open on first trading day of week: @weekbegin
//   - market open on last trading day of month: @open @monthend
//
// A nil cal only treats weekends as closed.
func New(cronSpec string, hours MarketHours, cal *Calendar) (*TradeCron, error) {
	tc := &TradeCron{
		ScheduleString: cronSpec,
		marketStatus:   NewMarketStatus(&hours, cal),
	}

	// separate special tokens from timespec
	timeSpecTokens := make([]string, 0, 5)
	for _, token := range strings.Fields(expandBriefFormat(cronSpec)) {
		if token[0] != '@' {
			timeSpecTokens = append(timeSpecTokens, token)
			continue
		}
		if err := tc.applyModifier(token); err != nil {
			return nil, err
		}
	}

	var err error
	switch tc.TimeFlag {
	case AtOpen:
		tc.TimeSpec, err = parseTimeRelativeTo(timeSpecTokens, hours.Open/100, hours.Open%100)
	case AtClose:
		tc.TimeSpec, err = parseTimeRelativeTo(timeSpecTokens, hours.Close/100, hours.Close%100)
	default:
		tc.TimeSpec = strings.Join(timeSpecTokens, " ")
	}
	if err != nil {
		return nil, err
	}

	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if tc.Schedule, err = specParser.Parse(tc.TimeSpec); err != nil {
		log.Error().Err(err).Str("TimeSpec", tc.TimeSpec).Str("TradeCronSpec", cronSpec).Msg("robfig/cron could not parse timespec")
		return nil, err
	}

	return tc, nil
}

// applyModifier records a time or date modifier; at most one of each kind is allowed
func (tc *TradeCron) applyModifier(token string) error {
	var flag *string
	switch token {
	case AtOpen, AtClose:
		flag = &tc.TimeFlag
	case AtWeekBegin, AtWeekEnd, AtMonthBegin, AtMonthEnd:
		flag = &tc.DateFlag
	default:
		return ErrUnknownModifier
	}

	if *flag != "" {
		return ErrConflictingModifiers
	}
	*flag = token
	return nil
}

// IsTradeDay evaluates the given date against the schedule and returns true if the date falls
// on a trading day according to the schedule. The time portion of the schedule is ignored when
// evaluating this function
func (tc *TradeCron) IsTradeDay(forDate time.Time) bool {
	tz := tc.marketStatus.tz
	day := time.Date(forDate.Year(), forDate.Month(), forDate.Day(), 0, 0, 0, 0, tz)
	dayBefore := day.AddDate(0, 0, -1)
	dayBefore = time.Date(dayBefore.Year(), dayBefore.Month(), dayBefore.Day(), 23, 59, 59, 999_999_999, tz)
	return tc.dateOnly(tc.Next(dayBefore)).Equal(day)
}

// Next returns the next time the schedule fires after forDate
func (tc *TradeCron) Next(forDate time.Time) time.Time {
	checkDate := tc.startingPoint(forDate)

	isOpen := tc.marketStatus.IsMarketDay
	if hourIsWildcard(tc.TimeSpec) {
		isOpen = tc.marketStatus.IsMarketOpen
	}

	for iter := 0; ; iter++ {
		checkDate = tc.Schedule.Next(checkDate)
		if isOpen(checkDate) {
			return checkDate
		}
		if iter > maxIters {
			log.Panic().Str("TimeSpec", tc.TimeSpec).Msg("something is wrong with tradecron schedule as it appears to be in an infinite loop")
		}
	}
}

// startingPoint fast-forwards forDate to the next date allowed by the date flag
func (tc *TradeCron) startingPoint(forDate time.Time) time.Time {
	ms := tc.marketStatus
	next := tc.Schedule.Next(forDate)
	nextDay := tc.dateOnly(next)

	// target is the qualifying trading day; the candidate is accepted when it falls on it
	pick := func(target, after time.Time) time.Time {
		switch {
		case nextDay.Before(target):
			return target
		case nextDay.Equal(target):
			return forDate
		default:
			return after
		}
	}

	switch tc.DateFlag {
	case AtWeekBegin:
		return pick(ms.NextFirstTradingDayOfWeek(forDate), ms.NextFirstTradingDayOfWeek(nextDay))

	case AtWeekEnd:
		return pick(ms.NextLastTradingDayOfWeek(forDate), ms.NextLastTradingDayOfWeek(nextDay))

	case AtMonthBegin:
		lastMonth := time.Date(forDate.Year(), forDate.Month(), 1, 23, 59, 59, 999_999_999, ms.tz).AddDate(0, 0, -1)
		thisMonth := ms.NextFirstTradingDayOfMonth(lastMonth)
		nextMonth := ms.NextFirstTradingDayOfMonth(forDate)
		if nextDay.Equal(thisMonth) || nextDay.Equal(nextMonth) {
			return forDate
		}

		// same time of day on the first trading day of next month
		firstTradingDay := time.Date(nextMonth.Year(), nextMonth.Month(), nextMonth.Day(), next.Hour(), next.Minute(), next.Second(), next.Nanosecond(), next.Location())
		if next.After(firstTradingDay) {
			return ms.NextFirstTradingDayOfMonth(next)
		}
		return nextMonth

	case AtMonthEnd:
		following := time.Date(next.Year(), next.Month(), 1, 0, 0, 0, 0, ms.tz).AddDate(0, 1, 0)
		return pick(ms.LastTradingDayOfMonth(next), ms.LastTradingDayOfMonth(following))
	}

	return forDate
}

func (tc *TradeCron) dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tc.marketStatus.tz)
}
