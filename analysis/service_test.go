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

package analysis_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-optimizer/analysis"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/optimizer"
	"github.com/penny-vault/pv-optimizer/returns"
)

var errStoreDown = errors.New("store is down")

type fetchCall struct {
	ids   []string
	mode  data.Mode
	begin time.Time
	end   time.Time
}

type fakeRepo struct {
	mu     sync.Mutex
	series map[string]*data.AssetSeries
	fail   map[string]bool
	calls  []fetchCall
}

func (f *fakeRepo) Fetch(ctx context.Context, ids []string, class data.AssetClass, begin, end time.Time) ([]*data.AssetSeries, error) {
	mode := data.ModeTickers
	if class != data.Equity {
		mode = data.ModeAssets
	}
	return f.FetchMode(ctx, ids, mode, begin, end)
}

func (f *fakeRepo) FetchMode(_ context.Context, ids []string, mode data.Mode, begin, end time.Time) ([]*data.AssetSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{ids: ids, mode: mode, begin: begin, end: end})

	res := []*data.AssetSeries{}
	for _, id := range ids {
		if f.fail[id] {
			return nil, errStoreDown
		}
		if s, ok := f.series[id]; ok {
			res = append(res, s)
		}
	}
	return res, nil
}

func (f *fakeRepo) numCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRepo) lastCall() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}

func synthetic(id string, base, drift, amp, freq float64) *data.AssetSeries {
	tz := common.GetTimezone()
	s := &data.AssetSeries{ID: id, Class: data.Equity}
	for ii := 0; ii < 60; ii++ {
		s.Observations = append(s.Observations, data.Observation{
			Date:  time.Date(2021, 1, 1, 0, 0, 0, 0, tz).AddDate(0, 0, ii),
			Close: base * math.Exp(drift*float64(ii)+amp*math.Sin(freq*float64(ii))),
		})
	}
	return s
}

func ptr[T any](v T) *T {
	return &v
}

var _ = Describe("Service", func() {
	var (
		repo  *fakeRepo
		cache *common.Cache
		svc   *analysis.Service
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &fakeRepo{
			series: map[string]*data.AssetSeries{
				"SBER":  synthetic("SBER", 100, 0.002, 0.03, 0.7),
				"GAZP":  synthetic("GAZP", 50, 0.001, 0.02, 1.3),
				"MCFTR": synthetic("MCFTR", 3000, 0.0015, 0.01, 0.4),
			},
			fail: map[string]bool{},
		}

		var err error
		cache, err = common.NewCache(16, time.Minute, "")
		Expect(err).To(BeNil())

		svc = analysis.NewService(repo, cache)
		svc.Clock = fixedClock{t: time.Date(2021, 6, 15, 12, 0, 0, 0, common.GetTimezone())}
	})

	Describe("Optimize", func() {
		It("solves for weights that sum to one", func() {
			resp, err := svc.Optimize(ctx, &analysis.OptimizeRequest{
				Tickers:   []string{"sber", "GAZP"},
				Objective: "min_volatility",
			})
			Expect(err).To(BeNil())
			Expect(resp.Weights).To(HaveKey("SBER"))
			Expect(resp.Weights).To(HaveKey("GAZP"))
			Expect(resp.Weights["SBER"] + resp.Weights["GAZP"]).To(BeNumerically("~", 1.0, 1e-3))
			Expect(resp.Performance.Volatility).To(BeNumerically(">", 0))
		})

		It("defaults to max sharpe from 2000-01-01 until today", func() {
			_, err := svc.Optimize(ctx, &analysis.OptimizeRequest{Tickers: []string{"SBER", "GAZP"}})
			Expect(err).To(BeNil())
			call := repo.lastCall()
			Expect(call.mode).To(Equal(data.ModeTickers))
			Expect(call.begin.Format(common.DateLayout)).To(Equal("2000-01-01"))
			Expect(call.end.Format(common.DateLayout)).To(Equal("2021-06-15"))
		})

		It("serves repeated requests from the cache", func() {
			req := &analysis.OptimizeRequest{Tickers: []string{"SBER", "GAZP"}, Objective: "min_volatility"}
			first, err := svc.Optimize(ctx, req)
			Expect(err).To(BeNil())
			calls := repo.numCalls()

			second, err := svc.Optimize(ctx, req)
			Expect(err).To(BeNil())
			Expect(repo.numCalls()).To(Equal(calls))
			Expect(second.Weights).To(Equal(first.Weights))
			Expect(cache.Len()).To(Equal(1))
		})

		DescribeTable("rejects bad requests",
			func(req *analysis.OptimizeRequest, target error) {
				_, err := svc.Optimize(ctx, req)
				Expect(errors.Is(err, target)).To(BeTrue(), "got %v", err)
			},
			Entry("no tickers", &analysis.OptimizeRequest{}, analysis.ErrInvalidRequest),
			Entry("bad start date", &analysis.OptimizeRequest{Tickers: []string{"SBER"}, StartDate: "01/02/2020"}, analysis.ErrInvalidRequest),
			Entry("bad mode", &analysis.OptimizeRequest{Tickers: []string{"SBER"}, Mode: "bonds"}, data.ErrUnknownMode),
			Entry("unknown objective", &analysis.OptimizeRequest{Tickers: []string{"SBER"}, Objective: "max_sortino"}, optimizer.ErrUnknownObjective),
			Entry("missing target", &analysis.OptimizeRequest{Tickers: []string{"SBER"}, Objective: "efficient_risk"}, optimizer.ErrInvalidParameter),
			Entry("negative gamma", &analysis.OptimizeRequest{Tickers: []string{"SBER"}, L2Reg: true, Gamma: ptr(-1.0)}, optimizer.ErrInvalidParameter),
			Entry("weekly frequency", &analysis.OptimizeRequest{Tickers: []string{"SBER"}, Frequency: ptr(52)}, returns.ErrInvalidFrequency),
			Entry("target return out of range", &analysis.OptimizeRequest{Tickers: []string{"SBER", "GAZP"}, Objective: "efficient_return", TargetReturn: ptr(100.0)}, optimizer.ErrOutOfRange),
			Entry("no data", &analysis.OptimizeRequest{Tickers: []string{"YNDX"}}, returns.ErrInsufficientData),
		)

		It("surfaces store errors", func() {
			repo.fail["SBER"] = true
			_, err := svc.Optimize(ctx, &analysis.OptimizeRequest{Tickers: []string{"SBER"}})
			Expect(errors.Is(err, errStoreDown)).To(BeTrue())
		})
	})

	Describe("History", func() {
		It("replays the weights from the initial value", func() {
			resp, err := svc.History(ctx, &analysis.HistoryRequest{
				Weights:   map[string]float64{"sber": 0.6, "GAZP": 0.4},
				StartDate: "2021-01-01",
				EndDate:   "2021-12-31",
			})
			Expect(err).To(BeNil())
			Expect(resp.History).To(HaveLen(60))
			Expect(resp.History[0].Date).To(Equal("2021-01-01"))
			Expect(resp.History[0].Value).To(Equal(1_000_000.0))
			Expect(resp.Message).To(ContainSubstring("2021-01-01"))
			Expect(resp.Drawdown.MaxDrawdown).To(BeNumerically(">=", 0))
			Expect(resp.Drawdown.MaxDrawdownDate).ToNot(BeNil())
			Expect(repo.lastCall().ids).To(Equal([]string{"GAZP", "SBER"}))
		})

		It("reports no data without failing", func() {
			resp, err := svc.History(ctx, &analysis.HistoryRequest{Weights: map[string]float64{"YNDX": 1}})
			Expect(err).To(BeNil())
			Expect(resp.History).To(BeEmpty())
			Expect(resp.Drawdown.RecoveryDays).To(BeNil())
		})

		It("applies the configured cleaning policy", func() {
			halted := synthetic("VTBR", 10, 0.001, 0.02, 0.9)
			halted.Observations[10].Close = 0
			repo.series["VTBR"] = halted
			req := &analysis.HistoryRequest{
				Weights:   map[string]float64{"VTBR": 1},
				StartDate: "2021-01-01",
				EndDate:   "2021-12-31",
			}

			filled, err := svc.History(ctx, req)
			Expect(err).To(BeNil())
			Expect(filled.History).To(HaveLen(60))

			svc.Cleaning = returns.DropMissing{}
			dropped, err := svc.History(ctx, req)
			Expect(err).To(BeNil())
			Expect(dropped.History).To(HaveLen(59))
		})

		It("requires weights", func() {
			_, err := svc.History(ctx, &analysis.HistoryRequest{})
			Expect(errors.Is(err, analysis.ErrInvalidRequest)).To(BeTrue())
		})

		It("requires a positive initial value", func() {
			_, err := svc.History(ctx, &analysis.HistoryRequest{Weights: map[string]float64{"SBER": 1}, InitialValue: ptr(0.0)})
			Expect(errors.Is(err, analysis.ErrInvalidRequest)).To(BeTrue())
		})
	})

	Describe("OptimizeWithHistory", func() {
		It("adds the history of the optimized weights", func() {
			resp, err := svc.OptimizeWithHistory(ctx, &analysis.OptimizeRequest{
				Tickers:   []string{"SBER", "GAZP"},
				Objective: "min_volatility",
				StartDate: "2021-01-01",
			})
			Expect(err).To(BeNil())
			Expect(resp.Weights).To(HaveLen(2))
			Expect(resp.History).To(HaveLen(60))
			Expect(resp.History[0].Value).To(Equal(1_000_000.0))
			Expect(resp.HistoryMessage).ToNot(BeEmpty())
		})
	})

	Describe("Compare", func() {
		It("reports the user, optimized and benchmark portfolios", func() {
			resp, err := svc.Compare(ctx, &analysis.CompareRequest{
				OptimizeRequest: analysis.OptimizeRequest{
					Tickers:   []string{"SBER", "GAZP"},
					Objective: "min_volatility",
				},
				Weights:   map[string]float64{"SBER": 0.5, "GAZP": 0.5},
				Benchmark: "MCFTR",
			})
			Expect(err).To(BeNil())
			Expect(resp.User).ToNot(BeNil())
			Expect(resp.User.History[0].Value).To(Equal(1_000_000.0))
			Expect(resp.Optimized).ToNot(BeNil())
			Expect(resp.Optimized.Metrics.SharpeRatio).ToNot(BeNil())
			Expect(resp.Benchmark).ToNot(BeNil())
			Expect(resp.Benchmark.Weights).To(Equal(map[string]float64{"MCFTR": 1}))
			Expect(resp.BenchmarkError).To(BeEmpty())
			Expect(repo.lastCall().mode).To(Equal(data.ModeAssets))
			Expect(repo.lastCall().begin.Format(common.DateLayout)).To(Equal("1995-01-01"))
		})

		It("omits the user portfolio without weights", func() {
			resp, err := svc.Compare(ctx, &analysis.CompareRequest{
				OptimizeRequest: analysis.OptimizeRequest{Tickers: []string{"SBER", "GAZP"}, Objective: "min_volatility"},
			})
			Expect(err).To(BeNil())
			Expect(resp.User).To(BeNil())
			Expect(resp.Benchmark).To(BeNil())
		})

		It("degrades gracefully when the benchmark fails", func() {
			repo.fail["RGBITR"] = true
			resp, err := svc.Compare(ctx, &analysis.CompareRequest{
				OptimizeRequest: analysis.OptimizeRequest{Tickers: []string{"SBER", "GAZP"}, Objective: "min_volatility"},
				Benchmark:       "RGBITR",
			})
			Expect(err).To(BeNil())
			Expect(resp.Optimized).ToNot(BeNil())
			Expect(resp.Benchmark).To(BeNil())
			Expect(resp.BenchmarkError).To(ContainSubstring("store is down"))
		})

		It("reports a benchmark without data", func() {
			resp, err := svc.Compare(ctx, &analysis.CompareRequest{
				OptimizeRequest: analysis.OptimizeRequest{Tickers: []string{"SBER", "GAZP"}, Objective: "min_volatility"},
				Benchmark:       "IMOEX",
			})
			Expect(err).To(BeNil())
			Expect(resp.BenchmarkError).To(ContainSubstring("IMOEX"))
		})
	})
})
