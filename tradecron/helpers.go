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
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// expandBriefFormat pads a timespec with wildcards up to five cron fields plus one
// field per @ modifier
func expandBriefFormat(spec string) string {
	fields := strings.Fields(spec)

	want := 5
	for _, field := range fields {
		if strings.HasPrefix(field, "@") {
			want++
		}
	}

	for len(fields) < want {
		fields = append(fields, "*")
	}
	return strings.Join(fields, " ")
}

// offsetField parses a minute or hour field of a relative timespec; "*" is no offset
func offsetField(field, name string) (int, error) {
	if field == "*" {
		return 0, nil
	}
	val, err := strconv.Atoi(field)
	if err != nil {
		log.Error().Str("Field", name).Str("Value", field).Msg("relative time fields must be integers")
		return 0, ErrMalformedTimeSpec
	}
	return val, nil
}

// parseTimeRelativeTo treats the minute and hour fields as an offset from hours:minutes
// and returns the resulting absolute timespec. The result must fall on the same day.
func parseTimeRelativeTo(fields []string, hours int, minutes int) (string, error) {
	if len(fields) != 5 {
		return "", ErrMalformedTimeSpec
	}

	offMin, err := offsetField(fields[0], "minute")
	if err != nil {
		return "", err
	}
	offHrs, err := offsetField(fields[1], "hour")
	if err != nil {
		return "", err
	}

	at := hours*60 + minutes + offHrs*60 + offMin
	if at < 0 || at >= 24*60 {
		return "", ErrFieldOutOfBounds
	}

	return fmt.Sprintf("%d %d %s %s %s", at%60, at/60, fields[2], fields[3], fields[4]), nil
}

// hourIsWildcard reports whether the hour field of a 5 field timespec repeats during the day
func hourIsWildcard(timeSpec string) bool {
	fields := strings.Fields(timeSpec)
	if len(fields) < 2 {
		return true
	}
	return strings.ContainsAny(fields[1], "*/")
}
