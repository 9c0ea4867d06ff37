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
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-optimizer/common"
)

var _ = Describe("Cache", func() {
	var (
		cache *common.Cache
		ctx   context.Context
		now   time.Time
	)

	BeforeEach(func() {
		var err error
		cache, err = common.NewCache(4, time.Hour, "")
		Expect(err).To(BeNil())
		now = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
		cache.Now = func() time.Time { return now }
		ctx = context.Background()
	})

	It("rejects a non-positive size", func() {
		_, err := common.NewCache(0, time.Hour, "")
		Expect(err).To(MatchError(common.ErrCacheSize))
	})

	It("returns what was stored", func() {
		payload := []byte(strings.Repeat("efficient frontier ", 100))
		Expect(cache.Set(ctx, "k1", payload)).To(Succeed())

		val, ok, err := cache.Get(ctx, "k1")
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(val).To(Equal(payload))
	})

	It("misses on unknown keys", func() {
		_, ok, err := cache.Get(ctx, "missing")
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	It("expires entries after the ttl", func() {
		Expect(cache.Set(ctx, "k1", []byte("value"))).To(Succeed())
		now = now.Add(59 * time.Minute)
		_, ok, _ := cache.Get(ctx, "k1")
		Expect(ok).To(BeTrue())

		now = now.Add(2 * time.Minute)
		_, ok, _ = cache.Get(ctx, "k1")
		Expect(ok).To(BeFalse())
		Expect(cache.Len()).To(Equal(0))
	})

	It("evicts the least recently used entry", func() {
		for _, k := range []string{"a", "b", "c", "d", "e"} {
			Expect(cache.Set(ctx, k, []byte(k))).To(Succeed())
		}
		_, ok, _ := cache.Get(ctx, "a")
		Expect(ok).To(BeFalse())
		_, ok, _ = cache.Get(ctx, "e")
		Expect(ok).To(BeTrue())
	})

	It("round trips json values", func() {
		type result struct {
			Weights map[string]float64 `json:"weights"`
		}
		in := result{Weights: map[string]float64{"SBER": 0.6, "GAZP": 0.4}}
		Expect(cache.SetJSON(ctx, "json", in)).To(Succeed())

		var out result
		ok, err := cache.GetJSON(ctx, "json", &out)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(out).To(Equal(in))
	})

	Context("when building keys", func() {
		It("is stable for equal inputs", func() {
			k1, err := common.CacheKey("optimize", map[string]any{"tickers": []string{"SBER"}, "rf": 0.02})
			Expect(err).To(BeNil())
			k2, err := common.CacheKey("optimize", map[string]any{"rf": 0.02, "tickers": []string{"SBER"}})
			Expect(err).To(BeNil())
			Expect(k1).To(Equal(k2))
			Expect(k1).To(HavePrefix("optimize:"))
			Expect(k1).To(HaveLen(len("optimize:") + 64))
		})

		It("differs for different inputs", func() {
			k1, _ := common.CacheKey("optimize", []string{"SBER"})
			k2, _ := common.CacheKey("optimize", []string{"GAZP"})
			Expect(k1).ToNot(Equal(k2))
		})
	})
})
