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

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-optimizer/analysis"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/data/database"
	"github.com/penny-vault/pv-optimizer/returns"
	"github.com/penny-vault/pv-optimizer/tradecron"
)

// priceDb is the union of the interfaces both store implementations satisfy
type priceDb interface {
	data.PriceStore
	data.PriceWriter
	data.AssetLister
}

// openStore connects to the store selected by database.driver. The returned
// function releases the connection.
func openStore(ctx context.Context, create bool) (priceDb, func(), error) {
	driver := strings.ToLower(viper.GetString("database.driver"))
	switch driver {
	case "postgres", "postgresql", "pgx":
		if err := database.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return data.NewPvDb(), func() {}, nil

	case "", "sqlite", "sqlite3":
		path := viper.GetString("database.sqlite_path")
		db, err := database.OpenSqlite(ctx, path, create)
		if err != nil {
			return nil, nil, err
		}
		store := data.NewSqliteDb(db)
		if create {
			if err := store.EnsureSchema(ctx); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return store, func() { db.Close() }, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown database driver %q", data.ErrNoStore, driver)
}

func loadClassifier() *data.Classifier {
	fn := viper.GetString("classifier.file")
	if fn == "" {
		return data.DefaultClassifier()
	}

	classifier, err := data.LoadClassifier(fn)
	if err != nil {
		log.Fatal().Stack().Err(err).Str("FileName", fn).Msg("could not load asset classifier")
	}
	return classifier
}

// loadCalendar returns the configured exchange calendar or nil when none is set
func loadCalendar() *tradecron.Calendar {
	fn := viper.GetString("market.calendar_file")
	if fn == "" {
		return nil
	}

	cal, err := tradecron.LoadCalendar(fn)
	if err != nil {
		log.Fatal().Stack().Err(err).Str("FileName", fn).Msg("could not load exchange calendar")
	}
	log.Info().Int("NumDays", cal.Len()).Msg("loaded exchange calendar")
	return cal
}

// mustOpenRepository opens the configured store and wraps it in a repository
func mustOpenRepository(ctx context.Context) (*data.Repository, priceDb, func()) {
	store, closeFn, err := openStore(ctx, false)
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("could not open price store")
	}
	return data.NewRepository(store, loadClassifier()), store, closeFn
}

// newService builds the analysis service with the configured cleaning policy. cache may
// be nil.
func newService(repo data.PriceRepository, cache analysis.ResultCache) *analysis.Service {
	name := viper.GetString("returns.cleaning_policy")
	policy, ok := returns.PolicyByName(name)
	if !ok {
		log.Fatal().Str("Policy", name).Msg("unknown cleaning policy")
	}

	svc := analysis.NewService(repo, cache)
	svc.Cleaning = policy
	return svc
}
