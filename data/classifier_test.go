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
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-optimizer/data"
)

var _ = Describe("Classifier", func() {
	It("routes the gold spot price to the currency table by default", func() {
		c := data.DefaultClassifier()
		Expect(c.Classify("GLDRUB_TOM")).To(Equal(data.Currency))
		Expect(c.Classify("gldrub_tom")).To(Equal(data.Currency))
		Expect(c.Classify("MCFTR")).To(Equal(data.Index))
	})

	It("routes every identifier to equities in tickers mode", func() {
		parts, err := data.DefaultClassifier().Partition([]string{"SBER", "GLDRUB_TOM"}, data.ModeTickers)
		Expect(err).To(BeNil())
		Expect(parts).To(Equal(map[data.AssetClass][]string{
			data.Equity: {"SBER", "GLDRUB_TOM"},
		}))
	})

	It("splits identifiers by class in assets mode", func() {
		parts, err := data.DefaultClassifier().Partition([]string{"MCFTR", "GLDRUB_TOM", "RGBITR"}, data.ModeAssets)
		Expect(err).To(BeNil())
		Expect(parts).To(Equal(map[data.AssetClass][]string{
			data.Index:    {"MCFTR", "RGBITR"},
			data.Currency: {"GLDRUB_TOM"},
		}))
	})

	It("rejects unknown modes", func() {
		_, err := data.DefaultClassifier().Partition([]string{"SBER"}, data.Mode("bonds"))
		Expect(errors.Is(err, data.ErrUnknownMode)).To(BeTrue())
	})

	Context("when loaded from toml", func() {
		It("reads the fallback and table", func() {
			c, err := data.ParseClassifier([]byte(`
fallback = "index"

[assets]
GLDRUB_TOM = "currency"
USD000UTSTOM = "currency"
SBER = "stock"
`))
			Expect(err).To(BeNil())
			Expect(c.Classify("USD000UTSTOM")).To(Equal(data.Currency))
			Expect(c.Classify("SBER")).To(Equal(data.Equity))
			Expect(c.Classify("IMOEX")).To(Equal(data.Index))
		})

		It("rejects unknown classes", func() {
			_, err := data.ParseClassifier([]byte("[assets]\nSU26238 = \"bond\"\n"))
			Expect(errors.Is(err, data.ErrInvalidClassifier)).To(BeTrue())
		})

		It("rejects malformed files", func() {
			_, err := data.ParseClassifier([]byte("assets = ["))
			Expect(errors.Is(err, data.ErrInvalidClassifier)).To(BeTrue())
		})

		It("uses the default table when no file is configured", func() {
			c, err := data.LoadClassifier("")
			Expect(err).To(BeNil())
			Expect(c.Classify("GLDRUB_TOM")).To(Equal(data.Currency))
		})
	})

	DescribeTable("parses asset classes",
		func(input string, expected data.AssetClass, valid bool) {
			class, err := data.ParseAssetClass(input)
			if valid {
				Expect(err).To(BeNil())
				Expect(class).To(Equal(expected))
			} else {
				Expect(errors.Is(err, data.ErrUnknownAssetClass)).To(BeTrue())
			}
		},
		Entry("equity", "equity", data.Equity, true),
		Entry("stock alias", "Stock", data.Equity, true),
		Entry("index", "index", data.Index, true),
		Entry("currency", " currency ", data.Currency, true),
		Entry("unknown", "bond", data.AssetClass(""), false),
	)
})
