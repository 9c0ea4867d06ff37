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

package common_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-optimizer/common"
)

var _ = Describe("Util", func() {
	It("uppercases and trims identifiers", func() {
		arr := []string{" sber", "gazp "}
		common.ArrToUpper(arr)
		Expect(arr).To(Equal([]string{"SBER", "GAZP"}))
	})

	It("keeps the first occurrence of duplicates", func() {
		Expect(common.UniqueStrings([]string{"A", "B", "A", "C", "B"})).To(Equal([]string{"A", "B", "C"}))
	})

	It("picks min and max times", func() {
		a := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		b := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
		Expect(common.MaxTime(a, b)).To(Equal(b))
		Expect(common.MinTime(a, b)).To(Equal(a))
	})

	It("parses dates in the reference timezone", func() {
		dt, err := common.ParseDate("2023-03-31")
		Expect(err).To(BeNil())
		Expect(dt.Location()).To(Equal(common.GetTimezone()))
		Expect(dt.Day()).To(Equal(31))

		_, err = common.ParseDate("31.03.2023")
		Expect(err).ToNot(BeNil())
	})
})
