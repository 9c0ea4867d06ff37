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

package dataframe_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/dataframe"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var df *dataframe.DataFrame

		BeforeEach(func() {
			df = &dataframe.DataFrame{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
			Expect(df.ColCount()).To(Equal(0))
		})

		It("has zero start and end dates", func() {
			Expect(df.Start().IsZero()).To(BeTrue())
			Expect(df.End().IsZero()).To(BeTrue())
		})

		It("renders a placeholder table", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})

		It("resamples to an empty frame", func() {
			Expect(df.MonthEnd().Len()).To(Equal(0))
		})

		It("has no returns", func() {
			Expect(df.LogReturns().Len()).To(Equal(0))
		})
	})

	Context("when aligning series", func() {
		var df *dataframe.DataFrame

		BeforeEach(func() {
			s1, err := dataframe.NewSeries("SBER", []time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6)}, []float64{10, 11, 12})
			Expect(err).To(BeNil())
			s2, err := dataframe.NewSeries("MCFTR", []time.Time{day(2021, 1, 5), day(2021, 1, 7)}, []float64{100, 101})
			Expect(err).To(BeNil())
			df = dataframe.Align(s1, s2)
		})

		It("indexes rows by the union of dates", func() {
			Expect(df.Dates).To(Equal([]time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6), day(2021, 1, 7)}))
		})

		It("keeps columns in argument order", func() {
			Expect(df.ColNames).To(Equal([]string{"SBER", "MCFTR"}))
		})

		It("fills gaps with NaN", func() {
			Expect(df.Vals[0][:3]).To(Equal([]float64{10, 11, 12}))
			Expect(math.IsNaN(df.Vals[0][3])).To(BeTrue())
			Expect(math.IsNaN(df.Vals[1][0])).To(BeTrue())
			Expect(df.Vals[1][1]).To(Equal(100.0))
			Expect(math.IsNaN(df.Vals[1][2])).To(BeTrue())
			Expect(df.Vals[1][3]).To(Equal(101.0))
		})

		It("inner joins with Drop(NaN)", func() {
			inner := df.Copy().Drop(math.NaN())
			Expect(inner.Dates).To(Equal([]time.Time{day(2021, 1, 5)}))
			Expect(inner.Vals).To(Equal([][]float64{{11}, {100}}))
		})

		It("fills a value from its neighbours but never fills alignment gaps", func() {
			withZeros, err := dataframe.NewSeries("GAZP", []time.Time{day(2021, 1, 4), day(2021, 1, 5), day(2021, 1, 6), day(2021, 1, 7)}, []float64{0, 20, 0, 21})
			Expect(err).To(BeNil())
			index, err := dataframe.NewSeries("MCFTR", []time.Time{day(2021, 1, 5), day(2021, 1, 7)}, []float64{100, 101})
			Expect(err).To(BeNil())
			frame := dataframe.Align(withZeros, index)

			frame.FillValue(0)
			Expect(frame.Vals[0]).To(Equal([]float64{20, 20, 20, 21}))
			Expect(math.IsNaN(frame.Vals[1][0])).To(BeTrue())
			Expect(math.IsNaN(frame.Vals[1][2])).To(BeTrue())
		})

		It("leaves NaN when a column has nothing to fill from", func() {
			zeros, err := dataframe.NewSeries("GAZP", []time.Time{day(2021, 1, 4), day(2021, 1, 5)}, []float64{0, 0})
			Expect(err).To(BeNil())
			frame := dataframe.Align(zeros).FillValue(0)
			Expect(math.IsNaN(frame.Vals[0][0])).To(BeTrue())
			Expect(math.IsNaN(frame.Vals[0][1])).To(BeTrue())
		})

		It("does not modify the original when copied", func() {
			df.Copy().FillValue(11)
			Expect(df.Vals[0][1]).To(Equal(11.0))
		})

		It("trims inclusively", func() {
			trimmed := df.Trim(day(2021, 1, 5), day(2021, 1, 6))
			Expect(trimmed.Dates).To(Equal([]time.Time{day(2021, 1, 5), day(2021, 1, 6)}))
			Expect(trimmed.Vals[0]).To(Equal([]float64{11, 12}))
		})

		It("returns an empty frame when trimmed outside its range", func() {
			Expect(df.Trim(day(2022, 1, 1), day(2022, 2, 1)).Len()).To(Equal(0))
		})

		It("selects columns", func() {
			sel, err := df.Select("MCFTR")
			Expect(err).To(BeNil())
			Expect(sel.ColNames).To(Equal([]string{"MCFTR"}))

			_, err = df.Select("GAZP")
			Expect(errors.Is(err, dataframe.ErrColumnNotFound)).To(BeTrue())
		})

		It("renders a table", func() {
			Expect(df.Table()).To(ContainSubstring("SBER"))
			Expect(df.Table()).To(ContainSubstring("2021-01-07"))
		})
	})

	It("rejects series with mismatched lengths", func() {
		_, err := dataframe.NewSeries("X", []time.Time{day(2021, 1, 1)}, []float64{1, 2})
		Expect(errors.Is(err, dataframe.ErrLengthMismatch)).To(BeTrue())
	})

	It("replaces values", func() {
		df := &dataframe.DataFrame{
			Dates:    []time.Time{day(2021, 1, 1), day(2021, 1, 2)},
			ColNames: []string{"A"},
			Vals:     [][]float64{{0, 5}},
		}
		df.ReplaceValue(0, math.NaN())
		Expect(math.IsNaN(df.Vals[0][0])).To(BeTrue())
		Expect(df.Vals[0][1]).To(Equal(5.0))
	})

	Context("when resampling to month end", func() {
		It("keeps the last observed value per month", func() {
			df := &dataframe.DataFrame{
				Dates:    []time.Time{day(2021, 1, 28), day(2021, 1, 29), day(2021, 2, 1), day(2021, 2, 26), day(2021, 3, 31)},
				ColNames: []string{"A", "B"},
				Vals: [][]float64{
					{1, 2, 3, 4, 5},
					{10, math.NaN(), 30, math.NaN(), math.NaN()},
				},
			}
			res := df.MonthEnd()
			Expect(res.Dates).To(Equal([]time.Time{day(2021, 1, 29), day(2021, 2, 26), day(2021, 3, 31)}))
			Expect(res.Vals[0]).To(Equal([]float64{2, 4, 5}))
			Expect(res.Vals[1][:2]).To(Equal([]float64{10, 30}))
			Expect(math.IsNaN(res.Vals[1][2])).To(BeTrue())
		})
	})
})
