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
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/rs/zerolog/log"
)

// Calendar is the set of exchange holidays and shortened sessions. A nil Calendar
// has no holidays; only weekends are closed.
type Calendar struct {
	mu sync.RWMutex

	// midnight unix time -> early close time (e.g. 1400), 0 when closed all day
	days map[int64]int
}

type calendarFile struct {
	Closed     []string       `toml:"closed"`
	EarlyClose map[string]int `toml:"early_close"`
}

func NewCalendar() *Calendar {
	return &Calendar{days: make(map[int64]int)}
}

// ParseCalendar reads a TOML calendar:
//
//	closed = ["2022-06-13", "2022-11-04"]
//
//	[early_close]
//	"2022-11-03" = 1400
func ParseCalendar(data []byte) (*Calendar, error) {
	var raw calendarFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}

	cal := NewCalendar()
	for _, s := range raw.Closed {
		dt, err := common.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrInvalidCalendar, s)
		}
		cal.AddHoliday(dt)
	}

	for s, closeTime := range raw.EarlyClose {
		dt, err := common.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrInvalidCalendar, s)
		}
		if closeTime <= 0 || closeTime > 2359 || closeTime%100 > 59 {
			return nil, fmt.Errorf("%w: bad close time %d on %s", ErrInvalidCalendar, closeTime, s)
		}
		cal.AddEarlyClose(dt, closeTime)
	}

	return cal, nil
}

// LoadCalendar reads a calendar file from disk
func LoadCalendar(fn string) (*Calendar, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not read exchange calendar")
		return nil, err
	}
	return ParseCalendar(data)
}

// AddHoliday marks the date of t as closed
func (c *Calendar) AddHoliday(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[midnight(t).Unix()] = 0
}

// AddEarlyClose marks the date of t as a shortened session ending at closeTime (e.g. 1400)
func (c *Calendar) AddEarlyClose(t time.Time, closeTime int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[midnight(t).Unix()] = closeTime
}

// Len returns the number of special days
func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.days)
}

func (c *Calendar) lookup(t time.Time) (int, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	closeTime, ok := c.days[midnight(t).Unix()]
	return closeTime, ok
}

func midnight(t time.Time) time.Time {
	tz := common.GetTimezone()
	t = t.In(tz)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz)
}
