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
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS stock_values (tradedate DATE NOT NULL, ticker TEXT NOT NULL, close REAL, PRIMARY KEY (tradedate, ticker))`,
	`CREATE TABLE IF NOT EXISTS index_values (tradedate DATE NOT NULL, secid TEXT NOT NULL, close REAL, PRIMARY KEY (tradedate, secid))`,
	`CREATE TABLE IF NOT EXISTS currency_values (tradedate DATE NOT NULL, secid TEXT NOT NULL, close REAL, PRIMARY KEY (tradedate, secid))`,
	`CREATE TABLE IF NOT EXISTS asset_classes (id INTEGER PRIMARY KEY AUTOINCREMENT, asset_ru TEXT, asset_en TEXT, name_ru TEXT, ticker TEXT UNIQUE)`,
}

// SqliteDb reads and writes prices in the sqlite file produced by the ingestion job.
// Trade dates are stored as YYYY-MM-DD text.
type SqliteDb struct {
	db *sql.DB
}

// NewSqliteDb wraps an open sqlite handle
func NewSqliteDb(db *sql.DB) *SqliteDb {
	return &SqliteDb{db: db}
}

// EnsureSchema creates the price and reference tables if they are missing
func (s *SqliteDb) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			log.Error().Stack().Err(err).Str("SQL", stmt).Msg("could not create sqlite schema")
			return err
		}
	}
	return nil
}

// FetchClose returns closing prices of ids from the class table between begin and end
func (s *SqliteDb) FetchClose(ctx context.Context, class AssetClass, ids []string, begin, end time.Time) ([]*AssetSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "sqlite.FetchClose")
	defer span.End()

	span.SetAttributes(
		attribute.String("AssetClass", string(class)),
		attribute.StringSlice("Ids", ids),
	)

	tbl, err := tableFor(class)
	if err != nil {
		return nil, err
	}

	tz := common.GetTimezone()
	subLog := log.With().Str("AssetClass", string(class)).Time("Begin", begin).Time("End", end).Logger()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	// dates may be stored with a time component so the upper bound is exclusive
	query := fmt.Sprintf(`SELECT %[1]s, tradedate, close FROM %[2]s
		WHERE %[1]s IN (%[3]s) AND tradedate >= ? AND tradedate < ? AND close IS NOT NULL
		ORDER BY %[1]s, tradedate`, tbl.idCol, tbl.name, placeholders)

	args := make([]interface{}, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, begin.Format(common.DateLayout), end.AddDate(0, 0, 1).Format(common.DateLayout))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		subLog.Warn().Stack().Err(err).Msg("failed to load closing prices -- db query failed")
		return nil, err
	}
	defer rows.Close()

	builder := newSeriesBuilder(class)
	for rows.Next() {
		var (
			id       string
			rawDate  string
			closeVal float64
		)
		if err := rows.Scan(&id, &rawDate, &closeVal); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			subLog.Error().Stack().Err(err).Msg("failed to load closing prices -- db query scan failed")
			return nil, err
		}
		tradeDate, err := parseSqliteDate(rawDate, tz)
		if err != nil {
			subLog.Warn().Err(err).Str("TradeDate", rawDate).Str("Id", id).Msg("skipping row with unparsable trade date")
			continue
		}
		builder.add(id, tradeDate, closeVal)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "row iteration failed")
		return nil, err
	}

	return builder.result(), nil
}

// ListAssets returns the asset reference list
func (s *SqliteDb) ListAssets(ctx context.Context) ([]*Asset, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "sqlite.ListAssets")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "SELECT ticker, coalesce(asset_ru, '') FROM asset_classes ORDER BY id")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		log.Warn().Stack().Err(err).Msg("failed to list assets -- db query failed")
		return nil, err
	}
	defer rows.Close()

	assets := make([]*Asset, 0, 64)
	for rows.Next() {
		asset := &Asset{}
		if err := rows.Scan(&asset.Ticker, &asset.AssetRu); err != nil {
			log.Error().Stack().Err(err).Msg("failed to list assets -- db query scan failed")
			return nil, err
		}
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

// LastTradeDate returns the most recent trade date stored for id
func (s *SqliteDb) LastTradeDate(ctx context.Context, class AssetClass, id string) (time.Time, bool, error) {
	tbl, err := tableFor(class)
	if err != nil {
		return time.Time{}, false, err
	}

	var last sql.NullString
	query := fmt.Sprintf("SELECT max(tradedate) FROM %s WHERE %s = ?", tbl.name, tbl.idCol)
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&last); err != nil {
		log.Warn().Stack().Err(err).Str("Id", id).Msg("could not query last trade date")
		return time.Time{}, false, err
	}

	if !last.Valid {
		return time.Time{}, false, nil
	}

	dt, err := parseSqliteDate(last.String, common.GetTimezone())
	if err != nil {
		return time.Time{}, false, err
	}
	return dt, true, nil
}

// SaveObservations upserts obs for id into the class table and returns the number of rows written
func (s *SqliteDb) SaveObservations(ctx context.Context, class AssetClass, id string, obs []Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	tbl, err := tableFor(class)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (tradedate, %s, close) VALUES (?, ?, ?)", tbl.name, tbl.idCol)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		if err := tx.Rollback(); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return 0, err
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.Date.Format(common.DateLayout), id, o.Close); err != nil {
			log.Error().Stack().Err(err).Str("Id", id).Time("TradeDate", o.Date).Msg("could not save observation")
			if err := tx.Rollback(); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(obs), nil
}

// SaveAsset inserts or updates an asset reference entry
func (s *SqliteDb) SaveAsset(ctx context.Context, asset *Asset) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO asset_classes (ticker, asset_ru) VALUES (?, ?) ON CONFLICT(ticker) DO UPDATE SET asset_ru = excluded.asset_ru",
		asset.Ticker, asset.AssetRu)
	return err
}

func parseSqliteDate(raw string, tz *time.Location) (time.Time, error) {
	if len(raw) > len(common.DateLayout) {
		raw = raw[:len(common.DateLayout)]
	}
	return time.ParseInLocation(common.DateLayout, raw, tz)
}
