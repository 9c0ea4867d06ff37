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

package data_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/data/database"
)

var _ = Describe("Sqlite store", func() {
	var (
		store *data.SqliteDb
		ctx   context.Context
		tz    *time.Location
	)

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, tz)
	}

	BeforeEach(func() {
		ctx = context.Background()
		tz = common.GetTimezone()

		dir, err := os.MkdirTemp("", "pvopt-sqlite")
		Expect(err).To(BeNil())
		DeferCleanup(os.RemoveAll, dir)

		db, err := database.OpenSqlite(ctx, filepath.Join(dir, "moex_data.db"), true)
		Expect(err).To(BeNil())
		DeferCleanup(db.Close)

		store = data.NewSqliteDb(db)
		Expect(store.EnsureSchema(ctx)).To(Succeed())

		n, err := store.SaveObservations(ctx, data.Equity, "SBER", []data.Observation{
			{Date: day(2021, 1, 4), Close: 274.60},
			{Date: day(2021, 1, 5), Close: 272.00},
			{Date: day(2021, 1, 6), Close: 276.23},
		})
		Expect(err).To(BeNil())
		Expect(n).To(Equal(3))

		_, err = store.SaveObservations(ctx, data.Currency, "GLDRUB_TOM", []data.Observation{
			{Date: day(2021, 1, 4), Close: 4580.5},
		})
		Expect(err).To(BeNil())
	})

	It("fetches an inclusive date range", func() {
		series, err := store.FetchClose(ctx, data.Equity, []string{"SBER"}, day(2021, 1, 5), day(2021, 1, 6))
		Expect(err).To(BeNil())
		Expect(series).To(HaveLen(1))
		Expect(series[0].Observations).To(Equal([]data.Observation{
			{Date: day(2021, 1, 5), Close: 272.00},
			{Date: day(2021, 1, 6), Close: 276.23},
		}))
	})

	It("reads from the table of the requested class", func() {
		series, err := store.FetchClose(ctx, data.Currency, []string{"GLDRUB_TOM", "SBER"}, day(2021, 1, 1), day(2021, 1, 31))
		Expect(err).To(BeNil())
		Expect(series).To(HaveLen(1))
		Expect(series[0].ID).To(Equal("GLDRUB_TOM"))
		Expect(series[0].Class).To(Equal(data.Currency))
	})

	It("returns nothing outside the stored range", func() {
		series, err := store.FetchClose(ctx, data.Equity, []string{"SBER"}, day(2020, 1, 1), day(2020, 12, 31))
		Expect(err).To(BeNil())
		Expect(series).To(BeEmpty())
	})

	It("replaces observations on conflict", func() {
		_, err := store.SaveObservations(ctx, data.Equity, "SBER", []data.Observation{{Date: day(2021, 1, 6), Close: 300}})
		Expect(err).To(BeNil())

		series, err := store.FetchClose(ctx, data.Equity, []string{"SBER"}, day(2021, 1, 6), day(2021, 1, 6))
		Expect(err).To(BeNil())
		Expect(series[0].Observations).To(HaveLen(1))
		Expect(series[0].Observations[0].Close).To(Equal(300.0))
	})

	It("reports the last trade date", func() {
		last, ok, err := store.LastTradeDate(ctx, data.Equity, "SBER")
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(last).To(Equal(day(2021, 1, 6)))

		_, ok, err = store.LastTradeDate(ctx, data.Index, "MCFTR")
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	It("lists reference assets", func() {
		Expect(store.SaveAsset(ctx, &data.Asset{Ticker: "MCFTR", AssetRu: "Рынок акций"})).To(Succeed())
		Expect(store.SaveAsset(ctx, &data.Asset{Ticker: "MCFTR", AssetRu: "Акции"})).To(Succeed())

		assets, err := store.ListAssets(ctx)
		Expect(err).To(BeNil())
		Expect(assets).To(Equal([]*data.Asset{{Ticker: "MCFTR", AssetRu: "Акции"}}))
	})
})
