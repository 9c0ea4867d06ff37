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

package pgxmockhelper

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

// CSVRows turns a CSV fixture into pgxmock rows. The first line is the header and
// the file must end with a newline.
type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

// NewCSVRows reads csvFn converting columns listed in typeMap ("date" or "float64")
func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]any, 0),
	}
	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	lines := strings.Split(string(rawData), "\n")
	if len(lines) < 2 {
		subLog.Panic().Int("NumLines", len(lines)).Msg("input file does not have enough lines, need at least 2 (header + trailing new line)")
	}
	if lines[len(lines)-1] != "" {
		subLog.Panic().Msg("input file is missing a trailing new line")
	}

	rows.header = strings.Split(lines[0], ",")
	for _, ll := range lines[1 : len(lines)-1] {
		cols := make([]any, len(rows.header))
		for idx, val := range strings.Split(ll, ",") {
			colName := rows.header[idx]
			switch typeMap[colName] {
			case "date":
				parsed, err := time.Parse("2006-01-02", val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
				}
				cols[idx] = parsed
				rows.dateCol = idx
			case "float64":
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
				}
				cols[idx] = parsed
			default:
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

// Between keeps rows whose date column is in [a, b]
func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found")
	}

	newRows := make([][]any, 0, len(csvRows.rows))
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if !t.Before(a) && !t.After(b) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

// In keeps rows whose column col is one of vals
func (csvRows *CSVRows) In(col string, vals ...string) *CSVRows {
	colIdx := -1
	for idx, name := range csvRows.header {
		if name == col {
			colIdx = idx
		}
	}
	if colIdx == -1 {
		log.Panic().Str("Column", col).Msg("column not found")
	}

	keep := make(map[string]bool, len(vals))
	for _, v := range vals {
		keep[v] = true
	}

	newRows := make([][]any, 0, len(csvRows.rows))
	for _, row := range csvRows.rows {
		if keep[row[colIdx].(string)] {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

// Rows returns the pgxmock rows
func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// MockClosePrices expects a single closing price query against table and answers it
// with the rows of fn for ids between begin and end
func MockClosePrices(db pgxmock.PgxConnIface, fn, table, idCol string, begin, end time.Time, ids ...string) {
	db.ExpectBegin()
	db.ExpectQuery(`(?i)select .+ from "?` + table + `"?`).WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"tradedate": "date",
			"close":     "float64",
		}).In(idCol, ids...).Between(begin, end).Rows())
	db.ExpectCommit()
}

// MockAssetList expects the asset reference query and answers it with the rows of fn
func MockAssetList(db pgxmock.PgxConnIface, fn string) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT ticker, .+ FROM asset_classes").WillReturnRows(
		NewCSVRows(fn, map[string]string{}).Rows())
	db.ExpectCommit()
}
