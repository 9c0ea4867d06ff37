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

package returns_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/returns"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func series(id string, start time.Time, closes ...float64) *data.AssetSeries {
	s := &data.AssetSeries{ID: id, Class: data.Equity}
	for idx, c := range closes {
		s.Observations = append(s.Observations, data.Observation{Date: start.AddDate(0, 0, idx), Close: c})
	}
	return s
}

var _ = Describe("ReturnsEngine", func() {
	DescribeTable("frequency validation",
		func(freq returns.Frequency, valid bool) {
			err := freq.Validate()
			if valid {
				Expect(err).To(BeNil())
			} else {
				Expect(errors.Is(err, returns.ErrInvalidFrequency)).To(BeTrue())
			}
		},
		Entry("daily", returns.Daily, true),
		Entry("monthly", returns.Monthly, true),
		Entry("weekly", returns.Frequency(52), false),
		Entry("zero", returns.Frequency(0), false),
	)

	Context("with two complete daily series", func() {
		var res *returns.Result

		BeforeEach(func() {
			var err error
			res, err = returns.Build([]*data.AssetSeries{
				series("A", day(2021, 1, 1), 100, 110, 99, 108.9),
				series("B", day(2021, 1, 1), 50, 51, 52, 53),
			}, returns.Daily)
			Expect(err).To(BeNil())
		})

		It("keeps the asset order", func() {
			Expect(res.Assets).To(Equal([]string{"A", "B"}))
		})

		It("drops the first row of returns", func() {
			Expect(res.Prices.Len()).To(Equal(4))
			Expect(res.Returns.Len()).To(Equal(3))
		})

		It("annualizes the mean log return", func() {
			expected := (math.Log(1.1) + math.Log(0.9) + math.Log(1.1)) / 3 * 252
			Expect(res.Mu[0]).To(BeNumerically("~", expected, 1e-10))
			Expect(res.Mu[1]).To(BeNumerically("~", math.Log(53.0/50.0)/3*252, 1e-10))
		})

		It("produces a symmetric annualized covariance", func() {
			r, c := res.Cov.Dims()
			Expect(r).To(Equal(2))
			Expect(c).To(Equal(2))
			Expect(res.Cov.At(0, 1)).To(Equal(res.Cov.At(1, 0)))
			Expect(res.Cov.At(0, 0)).To(BeNumerically(">", 0))
		})
	})

	Context("with gaps and zero closes", func() {
		It("fills zeros instead of dividing by them", func() {
			res, err := returns.Build([]*data.AssetSeries{
				series("A", day(2021, 1, 1), 100, 0, 102, 103),
				series("B", day(2021, 1, 1), 10, 11, 12, 13),
			}, returns.Daily)
			Expect(err).To(BeNil())
			Expect(res.Prices.Vals[0]).To(Equal([]float64{100, 100, 102, 103}))
			for _, v := range res.Returns.Vals[0] {
				Expect(math.IsInf(v, 0)).To(BeFalse())
			}
		})

		It("keeps only the dates every asset trades on", func() {
			res, err := returns.Build([]*data.AssetSeries{
				series("A", day(2021, 1, 1), 100, 101, 102, 103, 104),
				series("B", day(2021, 1, 2), 20, 21, 22),
			}, returns.Daily)
			Expect(err).To(BeNil())
			Expect(res.Prices.Dates).To(Equal([]time.Time{day(2021, 1, 2), day(2021, 1, 3), day(2021, 1, 4)}))
			Expect(res.Prices.Vals[0]).To(Equal([]float64{101, 102, 103}))
			Expect(res.Prices.Vals[1]).To(Equal([]float64{20, 21, 22}))
			Expect(res.Returns.Len()).To(Equal(2))
		})

		It("fills a leading zero from the next close", func() {
			res, err := returns.Build([]*data.AssetSeries{
				series("A", day(2021, 1, 1), 0, 101, 102),
				series("B", day(2021, 1, 1), 10, 11, 12),
			}, returns.Daily)
			Expect(err).To(BeNil())
			Expect(res.Prices.Vals[0]).To(Equal([]float64{101, 101, 102}))
		})

		It("drops incomplete rows with the DropMissing policy", func() {
			res, err := returns.Build([]*data.AssetSeries{
				series("A", day(2021, 1, 1), 100, 101, 102, 103),
				series("B", day(2021, 1, 2), 20, 21, 22),
			}, returns.Daily, returns.WithCleaningPolicy(returns.DropMissing{}))
			Expect(err).To(BeNil())
			Expect(res.Prices.Dates).To(Equal([]time.Time{day(2021, 1, 2), day(2021, 1, 3), day(2021, 1, 4)}))
		})
	})

	It("resamples to month end for monthly frequency", func() {
		s := &data.AssetSeries{ID: "A", Observations: []data.Observation{
			{Date: day(2021, 1, 15), Close: 10},
			{Date: day(2021, 1, 29), Close: 11},
			{Date: day(2021, 2, 26), Close: 12},
			{Date: day(2021, 3, 10), Close: 12.5},
			{Date: day(2021, 3, 31), Close: 13},
		}}
		res, err := returns.Build([]*data.AssetSeries{s}, returns.Monthly)
		Expect(err).To(BeNil())
		Expect(res.Prices.Vals[0]).To(Equal([]float64{11, 12, 13}))
		Expect(res.Mu[0]).To(BeNumerically("~", math.Log(13.0/11.0)/2*12, 1e-10))
	})

	It("ignores series without observations", func() {
		res, err := returns.Build([]*data.AssetSeries{
			series("A", day(2021, 1, 1), 1, 2, 3),
			{ID: "EMPTY"},
		}, returns.Daily)
		Expect(err).To(BeNil())
		Expect(res.Assets).To(Equal([]string{"A"}))
	})

	DescribeTable("insufficient data",
		func(in []*data.AssetSeries) {
			_, err := returns.Build(in, returns.Daily)
			Expect(errors.Is(err, returns.ErrInsufficientData)).To(BeTrue())
		},
		Entry("no series", []*data.AssetSeries{}),
		Entry("a single price", []*data.AssetSeries{series("A", day(2021, 1, 1), 100)}),
		Entry("a single return", []*data.AssetSeries{series("A", day(2021, 1, 1), 100, 101)}),
		Entry("only zero prices", []*data.AssetSeries{series("A", day(2021, 1, 1), 0, 0, 0)}),
	)

	It("rejects an invalid frequency", func() {
		_, err := returns.Build([]*data.AssetSeries{series("A", day(2021, 1, 1), 1, 2, 3)}, returns.Frequency(7))
		Expect(errors.Is(err, returns.ErrInvalidFrequency)).To(BeTrue())
	})

	It("looks up policies by name", func() {
		p, ok := returns.PolicyByName("drop-missing")
		Expect(ok).To(BeTrue())
		Expect(p).To(Equal(returns.DropMissing{}))
		_, ok = returns.PolicyByName("interpolate")
		Expect(ok).To(BeFalse())
	})
})
