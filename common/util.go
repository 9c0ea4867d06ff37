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

package common

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/viper"
)

const (
	DateLayout      = "2006-01-02"
	DefaultTimezone = "Europe/Moscow"
)

var (
	tzOnce sync.Once
	tz     *time.Location
)

// ArrToUpper uppercase every string in array
func ArrToUpper(arr []string) {
	for ii := range arr {
		arr[ii] = strings.ToUpper(strings.TrimSpace(arr[ii]))
	}
}

// UniqueStrings returns the unique set of strings in arr preserving first-seen order
func UniqueStrings(arr []string) []string {
	seen := make(map[string]bool, len(arr))
	res := make([]string, 0, len(arr))
	for _, s := range arr {
		if seen[s] {
			continue
		}
		seen[s] = true
		res = append(res, s)
	}
	return res
}

// MaxTime returns the later of a and b
func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// MinTime returns the earlier of a and b
func MinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// SetupLogging configures the global zerolog logger from viper settings
func SetupLogging() {
	level := strings.ToLower(viper.GetString("log.level"))

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "warning", "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	if viper.GetBool("log.report_caller") {
		log.Logger = log.With().Caller().Logger()
	}

	output := viper.GetString("log.output")
	switch output {
	case "stdout", "":
		if viper.GetBool("log.pretty") {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
		} else {
			log.Logger = log.Output(os.Stdout)
		}
	case "stderr":
		if viper.GetBool("log.pretty") {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		} else {
			log.Logger = log.Output(os.Stderr)
		}
	default:
		// the file handle stays open for the life of the process
		fh, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			panic(err)
		}
		if viper.GetBool("log.pretty") {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: fh, NoColor: true})
		} else {
			log.Logger = log.Output(fh)
		}
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Debug().Str("Level", zerolog.GlobalLevel().String()).Str("Output", output).Msg("logging configured")
}

// GetTimezone returns the exchange reference timezone; trading dates are interpreted in it
func GetTimezone() *time.Location {
	tzOnce.Do(func() {
		name := viper.GetString("timezone")
		if name == "" {
			name = DefaultTimezone
		}
		var err error
		tz, err = time.LoadLocation(name)
		if err != nil {
			log.Panic().Err(err).Str("Timezone", name).Msg("could not load timezone")
		}
	})
	return tz
}

// ParseDate parses a YYYY-MM-DD string in the reference timezone
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, GetTimezone())
}

// Today returns midnight of the current day in the reference timezone
func Today() time.Time {
	now := time.Now().In(GetTimezone())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, GetTimezone())
}

// InitialTradeDate is the earliest date price downloads start from
func InitialTradeDate() time.Time {
	return time.Date(1995, 1, 1, 0, 0, 0, 0, GetTimezone())
}
