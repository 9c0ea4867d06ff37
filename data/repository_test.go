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
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-optimizer/data"
)

type fetchCall struct {
	class data.AssetClass
	ids   []string
}

type fakeStore struct {
	calls []fetchCall
	err   error
}

func (f *fakeStore) FetchClose(ctx context.Context, class data.AssetClass, ids []string, begin, end time.Time) ([]*data.AssetSeries, error) {
	f.calls = append(f.calls, fetchCall{class: class, ids: ids})
	if f.err != nil {
		return nil, f.err
	}
	res := make([]*data.AssetSeries, 0, len(ids))
	for _, id := range ids {
		res = append(res, &data.AssetSeries{
			ID:           id,
			Class:        class,
			Observations: []data.Observation{{Date: begin, Close: 1}},
		})
	}
	return res, nil
}

var _ = Describe("Repository", func() {
	var (
		store *fakeStore
		repo  *data.Repository
		ctx   context.Context
		begin time.Time
		end   time.Time
	)

	BeforeEach(func() {
		store = &fakeStore{}
		repo = data.NewRepository(store, nil)
		ctx = context.Background()
		begin = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	Context("with invalid arguments", func() {
		It("requires identifiers", func() {
			_, err := repo.Fetch(ctx, []string{}, data.Equity, begin, end)
			Expect(err).To(MatchError(data.ErrNoIdentifiers))

			_, err = repo.FetchMode(ctx, []string{" "}, data.ModeAssets, begin, end)
			Expect(err).To(MatchError(data.ErrNoIdentifiers))
		})

		It("requires begin before end", func() {
			_, err := repo.Fetch(ctx, []string{"SBER"}, data.Equity, end, begin)
			Expect(err).To(MatchError(data.ErrInvalidTimeRange))
		})

		It("accepts a single day range", func() {
			_, err := repo.Fetch(ctx, []string{"SBER"}, data.Equity, begin, begin)
			Expect(err).To(BeNil())
		})

		It("requires a known asset class", func() {
			_, err := repo.Fetch(ctx, []string{"SBER"}, data.AssetClass("bond"), begin, end)
			Expect(err).To(MatchError(data.ErrUnknownAssetClass))
		})

		It("does not call the store", func() {
			_, _ = repo.Fetch(ctx, nil, data.Equity, begin, end)
			Expect(store.calls).To(BeEmpty())
		})
	})

	It("normalizes identifiers", func() {
		_, err := repo.Fetch(ctx, []string{"sber", " sber ", "SBER", " gazp", "  "}, data.Equity, begin, end)
		Expect(err).To(BeNil())
		Expect(store.calls).To(Equal([]fetchCall{{class: data.Equity, ids: []string{"SBER", "GAZP"}}}))
	})

	It("issues one read per asset class in assets mode", func() {
		series, err := repo.FetchMode(ctx, []string{"RGBITR", "GLDRUB_TOM", "MCFTR"}, data.ModeAssets, begin, end)
		Expect(err).To(BeNil())
		Expect(store.calls).To(Equal([]fetchCall{
			{class: data.Index, ids: []string{"RGBITR", "MCFTR"}},
			{class: data.Currency, ids: []string{"GLDRUB_TOM"}},
		}))

		ids := make([]string, len(series))
		for idx, s := range series {
			ids[idx] = s.ID
		}
		Expect(ids).To(Equal([]string{"GLDRUB_TOM", "MCFTR", "RGBITR"}))
	})

	It("surfaces store errors without retrying", func() {
		store.err = errors.New("store unreachable")
		_, err := repo.FetchMode(ctx, []string{"SBER"}, data.ModeTickers, begin, end)
		Expect(err).To(MatchError("store unreachable"))
		Expect(store.calls).To(HaveLen(1))
	})
})
