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
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Weights maps an asset identifier to its allocation
type Weights map[string]float64

// Performance is the annualized expected return, volatility and Sharpe ratio of a portfolio
type Performance struct {
	ExpectedReturn float64 `json:"return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

type Result struct {
	Weights     Weights     `json:"weights"`
	Performance Performance `json:"performance"`
}

// Optimize computes the allocation that best satisfies obj subject to c. mu and cov
// must be annualized and ordered like assets.
func Optimize(mu []float64, cov mat.Symmetric, assets []string, obj Objective, c Constraints) (*Result, error) {
	if err := validateInputs(mu, cov, assets); err != nil {
		return nil, err
	}
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	subLog := log.With().Str("Objective", obj.Kind.String()).Int("NumAssets", len(assets)).Bool("AllowShort", c.AllowShort).Float64("Gamma", c.Gamma).Logger()

	if obj.Kind == KindEfficientReturn {
		minRet, maxRet := floats.Min(mu), floats.Max(mu)
		if obj.TargetReturn < minRet || obj.TargetReturn > maxRet {
			return nil, &OutOfRangeError{
				Param: "target return",
				Value: obj.TargetReturn,
				Min:   minRet,
				Max:   maxRet,
			}
		}
	}

	prob := newProblem(mu, cov, c)

	var (
		raw []float64
		err error
	)

	switch obj.Kind {
	case KindMaxSharpe:
		raw, err = prob.maxSharpe(obj.RiskFreeRate)
	case KindMaxQuadraticUtility:
		raw = prob.quadraticUtility(obj.RiskAversion)
	case KindEfficientRisk:
		raw, err = prob.efficientRisk(obj.TargetVolatility)
	case KindEfficientReturn:
		raw, err = prob.efficientReturn(obj.TargetReturn)
	case KindMinVolatility:
		raw = prob.minVolatility()
	}

	if err != nil {
		subLog.Warn().Err(err).Msg("optimization failed")
		return nil, err
	}

	cleaned := CleanWeights(raw)

	rf := DefaultRiskFreeRate
	if obj.Kind == KindMaxSharpe {
		rf = obj.RiskFreeRate
	}
	perf := Evaluate(cleaned, mu, cov, rf)

	weights := make(Weights, len(assets))
	for idx, asset := range assets {
		weights[asset] = cleaned[idx]
	}

	subLog.Debug().Float64("Return", perf.ExpectedReturn).Float64("Volatility", perf.Volatility).Float64("Sharpe", perf.SharpeRatio).Msg("optimization complete")

	return &Result{
		Weights:     weights,
		Performance: perf,
	}, nil
}

func validateInputs(mu []float64, cov mat.Symmetric, assets []string) error {
	if len(assets) == 0 {
		return fmt.Errorf("%w: no assets to optimize", ErrInvalidParameter)
	}
	if len(mu) != len(assets) {
		return fmt.Errorf("%w: %d expected returns for %d assets", ErrInvalidParameter, len(mu), len(assets))
	}
	if cov == nil || cov.SymmetricDim() != len(assets) {
		return fmt.Errorf("%w: covariance matrix does not match %d assets", ErrInvalidParameter, len(assets))
	}
	for idx, v := range mu {
		if !isFinite(v) {
			return fmt.Errorf("%w: expected return of %s is not finite", ErrInvalidParameter, assets[idx])
		}
	}
	return nil
}

// CleanWeights snaps weights smaller than 1e-4 in magnitude to zero and rounds the rest
// to 4 decimal places
func CleanWeights(w []float64) []float64 {
	res := make([]float64, len(w))
	for idx, v := range w {
		if math.Abs(v) < 1e-4 {
			continue
		}
		res[idx] = math.Round(v*1e4) / 1e4
	}
	return res
}

// Evaluate computes the performance of weights w. The Sharpe ratio of a riskless
// portfolio is reported as 0.
func Evaluate(w, mu []float64, cov mat.Symmetric, rf float64) Performance {
	x := mat.NewVecDense(len(w), w)
	ret := floats.Dot(mu, w)
	vol := math.Sqrt(math.Max(mat.Inner(x, cov, x), 0))

	perf := Performance{
		ExpectedReturn: ret,
		Volatility:     vol,
	}
	if vol > 0 {
		perf.SharpeRatio = (ret - rf) / vol
	}
	return perf
}
