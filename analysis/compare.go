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

package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/penny-vault/pv-optimizer/portfolio"
)

// Compare builds reports for the user's portfolio (when weights are given), the
// optimized portfolio of the same tickers and a benchmark (when named). A benchmark
// failure does not fail the comparison; it is reported in BenchmarkError.
func (s *Service) Compare(ctx context.Context, req *CompareRequest) (*CompareResponse, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "analysis.Compare")
	defer span.End()

	params, err := req.OptimizeRequest.resolve(optimizeDefaults{rf: defaultCompareRf, start: defaultCompareStart}, s.today())
	if err != nil {
		failSpan(span, err, "invalid request")
		return nil, err
	}

	rf := defaultCompareRf
	if req.RiskFreeRate != nil {
		rf = *req.RiskFreeRate
	}

	hp := func(weights map[string]float64, mode data.Mode) *historyParams {
		return &historyParams{
			mode:    mode,
			weights: weights,
			begin:   params.Begin,
			end:     params.End,
			initial: portfolio.DefaultInitialValue,
			freq:    params.Freq,
		}
	}

	resp := &CompareResponse{}

	if userWeights := normalizeWeights(req.Weights); len(userWeights) > 0 {
		report, err := s.report(ctx, hp(userWeights, params.Mode), rf)
		if err != nil {
			failSpan(span, err, "could not build user portfolio")
			return nil, err
		}
		resp.User = report
	}

	opt, err := s.optimize(ctx, params)
	if err != nil {
		failSpan(span, err, "optimization failed")
		return nil, err
	}

	optReport, err := s.report(ctx, hp(opt.Weights, params.Mode), rf)
	if err != nil {
		failSpan(span, err, "could not build optimized portfolio")
		return nil, err
	}
	// the optimizer's own estimates describe the optimized portfolio
	optReport.Metrics.Return = opt.Performance.ExpectedReturn
	optReport.Metrics.Volatility = opt.Performance.Volatility
	sharpe := opt.Performance.SharpeRatio
	optReport.Metrics.SharpeRatio = &sharpe
	resp.Optimized = optReport

	if benchmark := strings.ToUpper(strings.TrimSpace(req.Benchmark)); benchmark != "" {
		report, err := s.report(ctx, hp(map[string]float64{benchmark: 1.0}, data.ModeAssets), rf)
		if err == nil && len(report.History) == 0 {
			err = fmt.Errorf("no data for benchmark %s", benchmark)
		}
		if err != nil {
			log.Warn().Err(err).Str("Benchmark", benchmark).Msg("benchmark comparison failed")
			resp.BenchmarkError = err.Error()
		} else {
			resp.Benchmark = report
		}
	}

	return resp, nil
}

func (s *Service) report(ctx context.Context, params *historyParams, rf float64) (*PortfolioReport, error) {
	vs, msg, err := s.replay(ctx, params)
	if err != nil {
		return nil, err
	}

	m := portfolio.Metrics(vs, params.freq, rf)
	return &PortfolioReport{
		Weights: params.weights,
		History: historyPoints(vs),
		Message: msg,
		Metrics: ReportMetrics{
			Return:      m.Return,
			Volatility:  m.Volatility,
			SharpeRatio: m.SharpeRatio,
			Drawdown:    drawdown(&m.DrawdownMetrics),
		},
	}, nil
}
