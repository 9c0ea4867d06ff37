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
	"time"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data/database"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PvDb reads and writes prices in PostgreSQL through the database package pool
type PvDb struct {
}

// NewPvDb creates a new PostgreSQL price store
func NewPvDb() *PvDb {
	return &PvDb{}
}

// closeQuery builds the closing price query for a class table
func closeQuery(tbl classTable, ids []string, begin, end time.Time) (string, []interface{}) {
	idCol := pgx.Identifier{tbl.idCol}.Sanitize()

	stmt := &pgsql.SelectStatement{}
	stmt.Select(idCol)
	stmt.Select("tradedate")
	stmt.Select("close")
	stmt.From(pgx.Identifier{tbl.name}.Sanitize())
	stmt.Where(idCol+" = any(?)", ids)
	stmt.Where("tradedate >= ?", begin)
	stmt.Where("tradedate <= ?", end)
	stmt.Where("close IS NOT NULL")
	stmt.Order(idCol + ", tradedate")

	return pgsql.Build(stmt)
}

// FetchClose returns closing prices of ids from the class table between begin and end
func (p *PvDb) FetchClose(ctx context.Context, class AssetClass, ids []string, begin, end time.Time) ([]*AssetSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.FetchClose")
	defer span.End()

	span.SetAttributes(
		attribute.String("AssetClass", string(class)),
		attribute.StringSlice("Ids", ids),
	)

	tz := common.GetTimezone()
	subLog := log.With().Str("AssetClass", string(class)).Time("Begin", begin).Time("End", end).Logger()

	tbl, err := tableFor(class)
	if err != nil {
		return nil, err
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		msg := "failed to load closing prices -- could not get a database transaction"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Msg(msg)
		return nil, err
	}

	sql, args := closeQuery(tbl, ids, begin, end)
	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		msg := "failed to load closing prices -- db query failed"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Str("SQL", sql).Msg(msg)
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	builder := newSeriesBuilder(class)
	for rows.Next() {
		var (
			id        string
			tradeDate time.Time
			closeVal  float64
		)
		if err := rows.Scan(&id, &tradeDate, &closeVal); err != nil {
			rows.Close()
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			subLog.Error().Stack().Err(err).Msg("failed to load closing prices -- db query scan failed")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		builder.add(id, toDate(tradeDate, tz), closeVal)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "row iteration failed")
		subLog.Error().Stack().Err(err).Msg("failed to load closing prices -- row iteration failed")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("error committing transaction")
	}

	return builder.result(), nil
}

// ListAssets returns the asset reference list
func (p *PvDb) ListAssets(ctx context.Context) ([]*Asset, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.ListAssets")
	defer span.End()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get a database transaction")
		log.Warn().Stack().Err(err).Msg("failed to list assets -- could not get a database transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT ticker, coalesce(asset_ru, '') FROM asset_classes ORDER BY id")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		log.Warn().Stack().Err(err).Msg("failed to list assets -- db query failed")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	assets := make([]*Asset, 0, 64)
	for rows.Next() {
		asset := &Asset{}
		if err := rows.Scan(&asset.Ticker, &asset.AssetRu); err != nil {
			rows.Close()
			log.Error().Stack().Err(err).Msg("failed to list assets -- db query scan failed")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		assets = append(assets, asset)
	}
	rows.Close()

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("error committing transaction")
	}

	return assets, nil
}

// LastTradeDate returns the most recent trade date stored for id; ok is false when
// there are no rows
func (p *PvDb) LastTradeDate(ctx context.Context, class AssetClass, id string) (time.Time, bool, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.LastTradeDate")
	defer span.End()

	tbl, err := tableFor(class)
	if err != nil {
		return time.Time{}, false, err
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get a database transaction")
		return time.Time{}, false, err
	}

	idCol := pgx.Identifier{tbl.idCol}.Sanitize()
	stmt := &pgsql.SelectStatement{}
	stmt.Select("max(tradedate)")
	stmt.From(pgx.Identifier{tbl.name}.Sanitize())
	stmt.Where(idCol+" = ?", id)
	sql, args := pgsql.Build(stmt)

	var last *time.Time
	if err := trx.QueryRow(ctx, sql, args...).Scan(&last); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db query failed")
		log.Warn().Stack().Err(err).Str("Id", id).Str("SQL", sql).Msg("could not query last trade date")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return time.Time{}, false, err
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("error committing transaction")
	}

	if last == nil {
		return time.Time{}, false, nil
	}
	return toDate(*last, common.GetTimezone()), true, nil
}

// SaveObservations upserts obs for id into the class table and returns the number of rows written
func (p *PvDb) SaveObservations(ctx context.Context, class AssetClass, id string, obs []Observation) (int, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.SaveObservations")
	defer span.End()

	if len(obs) == 0 {
		return 0, nil
	}

	tbl, err := tableFor(class)
	if err != nil {
		return 0, err
	}

	subLog := log.With().Str("AssetClass", string(class)).Str("Id", id).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get a database transaction")
		subLog.Warn().Stack().Err(err).Msg("could not get a database transaction")
		return 0, err
	}

	idCol := pgx.Identifier{tbl.idCol}.Sanitize()
	sql := "INSERT INTO " + pgx.Identifier{tbl.name}.Sanitize() + " (tradedate, " + idCol + ", close) VALUES ($1, $2, $3) " +
		"ON CONFLICT (tradedate, " + idCol + ") DO UPDATE SET close = EXCLUDED.close"

	for _, o := range obs {
		if _, err := trx.Exec(ctx, sql, o.Date, id, o.Close); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert failed")
			subLog.Error().Stack().Err(err).Time("TradeDate", o.Date).Msg("could not save observation")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return 0, err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit observations")
		return 0, err
	}

	return len(obs), nil
}
