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

package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/data/database"
	"github.com/penny-vault/pv-optimizer/ingest"
	"github.com/penny-vault/pv-optimizer/tradecron"
)

type fetchCall struct {
	Class data.AssetClass
	ID    string
	Begin time.Time
	End   time.Time
}

type fakeFetcher struct {
	rows  map[string][]data.Observation
	fail  map[string]bool
	calls []fetchCall
}

func (f *fakeFetcher) Fetch(_ context.Context, class data.AssetClass, id string, begin, end time.Time) ([]data.Observation, error) {
	f.calls = append(f.calls, fetchCall{Class: class, ID: id, Begin: begin, End: end})
	if f.fail[id] {
		return nil, ingest.ErrUnexpectedStatus
	}
	return f.rows[id], nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var _ = Describe("Updater", func() {
	var (
		ctx     context.Context
		tz      *time.Location
		store   *data.SqliteDb
		fetcher *fakeFetcher
		updater *ingest.Updater
	)

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, tz)
	}

	BeforeEach(func() {
		ctx = context.Background()
		tz = common.GetTimezone()

		dir, err := os.MkdirTemp("", "pvopt-ingest")
		Expect(err).To(BeNil())
		DeferCleanup(os.RemoveAll, dir)

		db, err := database.OpenSqlite(ctx, filepath.Join(dir, "moex_data.db"), true)
		Expect(err).To(BeNil())
		DeferCleanup(db.Close)

		store = data.NewSqliteDb(db)
		Expect(store.EnsureSchema(ctx)).To(Succeed())

		_, err = store.SaveObservations(ctx, data.Equity, "SBER", []data.Observation{
			{Date: day(2021, 1, 5), Close: 272.00},
			{Date: day(2021, 1, 6), Close: 276.23},
		})
		Expect(err).To(BeNil())

		fetcher = &fakeFetcher{
			rows: map[string][]data.Observation{
				"SBER":  {{Date: day(2021, 1, 7), Close: 280.1}},
				"MCFTR": {{Date: day(2021, 1, 5), Close: 5432.1}, {Date: day(2021, 1, 6), Close: 5500.25}},
			},
			fail: map[string]bool{"GAZP": true},
		}
		updater = ingest.NewUpdater(fetcher, store).WithClock(fixedClock{now: time.Date(2021, 1, 8, 10, 30, 0, 0, tz)})
	})

	It("continues from the day after the last stored trade", func() {
		report, err := updater.Update(ctx, data.Equity, []string{"SBER"})
		Expect(err).To(BeNil())
		Expect(report.Saved).To(Equal(1))
		Expect(fetcher.calls).To(Equal([]fetchCall{
			{Class: data.Equity, ID: "SBER", Begin: day(2021, 1, 7), End: day(2021, 1, 7)},
		}))

		last, ok, err := store.LastTradeDate(ctx, data.Equity, "SBER")
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(last).To(Equal(day(2021, 1, 7)))
	})

	It("stops at the last trading day of the exchange calendar", func() {
		cal := tradecron.NewCalendar()
		cal.AddHoliday(day(2021, 1, 8))
		updater.WithCalendar(cal).WithClock(fixedClock{now: time.Date(2021, 1, 11, 9, 0, 0, 0, tz)})

		_, err := updater.Update(ctx, data.Equity, []string{"SBER"})
		Expect(err).To(BeNil())
		Expect(fetcher.calls).To(Equal([]fetchCall{
			{Class: data.Equity, ID: "SBER", Begin: day(2021, 1, 7), End: day(2021, 1, 7)},
		}))
	})

	It("downloads the full history of a new identifier", func() {
		report, err := updater.Update(ctx, data.Index, []string{"MCFTR"})
		Expect(err).To(BeNil())
		Expect(report.Saved).To(Equal(2))
		Expect(report.Updated).To(Equal([]string{"MCFTR"}))
		Expect(fetcher.calls[0].Begin).To(Equal(day(1995, 1, 1)))
	})

	It("skips identifiers that are already current", func() {
		_, err := store.SaveObservations(ctx, data.Equity, "SBER", []data.Observation{{Date: day(2021, 1, 7), Close: 280.1}})
		Expect(err).To(BeNil())

		report, err := updater.Update(ctx, data.Equity, []string{"SBER"})
		Expect(err).To(BeNil())
		Expect(report.Saved).To(Equal(0))
		Expect(fetcher.calls).To(BeEmpty())
	})

	It("logs failures and moves on", func() {
		report, err := updater.Update(ctx, data.Equity, []string{"GAZP", "SBER"})
		Expect(err).To(BeNil())
		Expect(report.Failed).To(Equal([]string{"GAZP"}))
		Expect(report.Updated).To(Equal([]string{"SBER"}))
	})

	It("rejects unknown classes", func() {
		_, err := updater.Update(ctx, data.AssetClass("bond"), []string{"SU26238"})
		Expect(errors.Is(err, data.ErrUnknownAssetClass)).To(BeTrue())
	})

	It("routes identifiers through the classifier", func() {
		classifier := data.NewClassifier(map[string]data.AssetClass{"MCFTR": data.Index}, data.Currency)
		report, err := updater.UpdateAll(ctx, classifier, []string{"MCFTR", "GLDRUB_TOM"})
		Expect(err).To(BeNil())
		Expect(report.Updated).To(ConsistOf("MCFTR", "GLDRUB_TOM"))
		Expect(fetcher.calls).To(ConsistOf(
			fetchCall{Class: data.Index, ID: "MCFTR", Begin: day(1995, 1, 1), End: day(2021, 1, 7)},
			fetchCall{Class: data.Currency, ID: "GLDRUB_TOM", Begin: day(1995, 1, 1), End: day(2021, 1, 7)},
		))
	})

	Describe("Scheduler", func() {
		It("runs an update over the source identifiers", func() {
			sched := ingest.NewScheduler(updater, data.NewClassifier(map[string]data.AssetClass{"MCFTR": data.Index}, data.Currency),
				ingest.StaticSource([]string{"MCFTR"}))
			report := sched.Run(ctx)
			Expect(report).ToNot(BeNil())
			Expect(report.Saved).To(Equal(2))
		})

		It("rejects invalid cron expressions", func() {
			sched := ingest.NewScheduler(updater, nil, ingest.StaticSource(nil))
			Expect(sched.Schedule("every tuesday")).ToNot(Succeed())
			Expect(sched.Schedule("0 19 * * 1-5")).To(Succeed())
			Expect(sched.Schedule("@close 30")).To(Succeed())
		})

		It("reads identifiers from the asset list", func() {
			Expect(store.SaveAsset(ctx, &data.Asset{Ticker: "MCFTR", AssetRu: "Акции"})).To(Succeed())
			ids, err := ingest.AssetListSource(store)(ctx)
			Expect(err).To(BeNil())
			Expect(ids).To(Equal([]string{"MCFTR"}))
		})
	})
})
