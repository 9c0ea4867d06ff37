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
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/dataframe"
)

var _ = Describe("DataFrame math", func() {
	var df *dataframe.DataFrame

	BeforeEach(func() {
		df = &dataframe.DataFrame{
			Dates:    []time.Time{day(2021, 1, 1), day(2021, 1, 2), day(2021, 1, 3), day(2021, 1, 4)},
			ColNames: []string{"A", "B"},
			Vals: [][]float64{
				{100, 110, 99, 99},
				{50, 50, 55, 60.5},
			},
		}
	})

	It("computes log returns and drops the first row", func() {
		lr := df.LogReturns()
		Expect(lr.Dates).To(Equal(df.Dates[1:]))
		Expect(lr.Vals[0][0]).To(BeNumerically("~", math.Log(1.1), 1e-12))
		Expect(lr.Vals[0][1]).To(BeNumerically("~", math.Log(0.9), 1e-12))
		Expect(lr.Vals[0][2]).To(Equal(0.0))
		Expect(lr.Vals[1][2]).To(BeNumerically("~", math.Log(1.1), 1e-12))
	})

	It("computes percent change", func() {
		pct := df.PctChange()
		Expect(pct.Len()).To(Equal(3))
		Expect(pct.Vals[0][0]).To(BeNumerically("~", 0.1, 1e-12))
		Expect(pct.Vals[0][1]).To(BeNumerically("~", -0.1, 1e-12))
		Expect(pct.Vals[1][1]).To(BeNumerically("~", 0.1, 1e-12))
	})

	It("computes column means", func() {
		means := df.ColMeans()
		Expect(means[0]).To(BeNumerically("~", 102.0, 1e-12))
		Expect(means[1]).To(BeNumerically("~", 53.875, 1e-12))
	})

	It("computes the sample covariance", func() {
		two := &dataframe.DataFrame{
			Dates:    df.Dates[:3],
			ColNames: []string{"X", "Y"},
			Vals:     [][]float64{{1, 2, 3}, {2, 4, 6}},
		}
		cov, err := two.Covariance()
		Expect(err).To(BeNil())
		Expect(cov.At(0, 0)).To(BeNumerically("~", 1.0, 1e-12))
		Expect(cov.At(1, 1)).To(BeNumerically("~", 4.0, 1e-12))
		Expect(cov.At(0, 1)).To(BeNumerically("~", 2.0, 1e-12))
	})

	It("refuses covariance of a single row", func() {
		_, err := df.Trim(day(2021, 1, 1), day(2021, 1, 1)).Covariance()
		Expect(err).To(HaveOccurred())
	})

	It("computes weighted sums", func() {
		ws := df.WeightedSum("portfolio", map[string]float64{"A": 0.5, "B": 0.5, "C": 1})
		Expect(ws.ColNames).To(Equal([]string{"portfolio"}))
		Expect(ws.Vals[0]).To(Equal([]float64{75, 80, 77, 79.75}))
	})

	It("computes cumulative sums", func() {
		cs := df.CumSum()
		Expect(cs.Vals[1]).To(Equal([]float64{50, 100, 155, 215.5}))
		Expect(df.Vals[1][1]).To(Equal(50.0))
	})

	It("scales by a constant", func() {
		Expect(df.MulScalar(2).Vals[0]).To(Equal([]float64{200, 220, 198, 198}))
	})
})
