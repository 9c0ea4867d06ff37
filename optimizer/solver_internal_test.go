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

package optimizer

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
)

var _ = Describe("project", func() {
	DescribeTable("lands on the bounded simplex",
		func(v []float64, lb, ub float64) {
			w := project(v, lb, ub)
			Expect(floats.Sum(w)).To(BeNumerically("~", 1.0, 1e-12))
			for _, x := range w {
				Expect(x).To(BeNumerically(">=", lb-1e-12))
				Expect(x).To(BeNumerically("<=", ub+1e-12))
			}
		},
		Entry("already feasible", []float64{0.2, 0.3, 0.5}, 0.0, 1.0),
		Entry("large values", []float64{5, 7, -3}, 0.0, 1.0),
		Entry("negative values", []float64{-1, -2, -3, -4}, 0.0, 1.0),
		Entry("short bounds", []float64{4, -6, 1}, -2.0, 1.0),
	)

	It("leaves feasible points in place", func() {
		Expect(project([]float64{0.2, 0.3, 0.5}, 0, 1)).To(HaveLen(3))
		w := project([]float64{0.2, 0.3, 0.5}, 0, 1)
		Expect(w[0]).To(BeNumerically("~", 0.2, 1e-12))
		Expect(w[2]).To(BeNumerically("~", 0.5, 1e-12))
	})
})

var _ = Describe("linearMin", func() {
	It("fills the cheapest coordinate first", func() {
		Expect(linearMin([]float64{0.3, -0.5, 0.1}, 0, 1)).To(Equal([]float64{0, 1, 0}))
	})

	It("uses the short bound", func() {
		Expect(linearMin([]float64{0.3, -0.5, 0.1}, -2, 1)).To(Equal([]float64{-1, 1, 1}))
	})
})
