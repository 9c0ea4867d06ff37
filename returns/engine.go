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

package returns

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/dataframe"
)

// Frequency is the number of return periods per year
type Frequency int

const (
	Daily   Frequency = 252
	Monthly Frequency = 12
)

// Validate returns ErrInvalidFrequency unless f is Daily or Monthly
func (f Frequency) Validate() error {
	switch f {
	case Daily, Monthly:
		return nil
	}
	return fmt.Errorf("%w: got %d", ErrInvalidFrequency, int(f))
}

// Factor is the annualization multiplier
func (f Frequency) Factor() float64 {
	return float64(f)
}

// Result holds everything derived from a set of price series
type Result struct {
	Assets  []string
	Prices  *dataframe.DataFrame
	Returns *dataframe.DataFrame

	// Mu is the annualized mean log return of each asset in Assets order
	Mu []float64

	// Cov is the annualized sample covariance of log returns
	Cov *mat.SymDense
}

type config struct {
	policy CleaningPolicy
}

type Option func(*config)

// WithCleaningPolicy overrides DefaultCleaningPolicy
func WithCleaningPolicy(p CleaningPolicy) Option {
	return func(c *config) {
		if p != nil {
			c.policy = p
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{policy: DefaultCleaningPolicy}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PriceMatrix aligns the series on the union of their dates, resamples to month end
// when freq is Monthly and applies the cleaning policy. Series without observations
// do not become columns.
func PriceMatrix(series []*data.AssetSeries, freq Frequency, opts ...Option) (*dataframe.DataFrame, error) {
	if err := freq.Validate(); err != nil {
		return nil, err
	}
	cfg := newConfig(opts)

	cols := make([]*dataframe.Series, 0, len(series))
	for _, s := range series {
		if s == nil || s.Len() == 0 {
			continue
		}
		dates := make([]time.Time, s.Len())
		vals := make([]float64, s.Len())
		for idx, obs := range s.Observations {
			dates[idx] = obs.Date
			vals[idx] = obs.Close
		}
		col, err := dataframe.NewSeries(s.ID, dates, vals)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	df := dataframe.Align(cols...)
	if freq == Monthly {
		df = df.MonthEnd()
	}

	cleaned := cfg.policy.Clean(df)
	log.Debug().Str("Policy", cfg.policy.Name()).Int("RawRows", df.Len()).Int("Rows", cleaned.Len()).Int("Assets", cleaned.ColCount()).Msg("built price matrix")
	return cleaned, nil
}

// Build computes log returns, annualized expected returns and the annualized
// covariance matrix for the given price series
func Build(series []*data.AssetSeries, freq Frequency, opts ...Option) (*Result, error) {
	prices, err := PriceMatrix(series, freq, opts...)
	if err != nil {
		return nil, err
	}

	if prices.ColCount() == 0 {
		return nil, fmt.Errorf("%w: no asset has price history", ErrInsufficientData)
	}

	rets := prices.LogReturns()

	// a sample covariance needs at least two return observations
	if rets.Len() < 2 {
		return nil, fmt.Errorf("%w: %d return rows after cleaning", ErrInsufficientData, rets.Len())
	}

	mu := rets.ColMeans()
	for idx := range mu {
		mu[idx] *= freq.Factor()
		if math.IsNaN(mu[idx]) || math.IsInf(mu[idx], 0) {
			return nil, fmt.Errorf("%w: expected return of %s is not finite", ErrInsufficientData, prices.ColNames[idx])
		}
	}

	cov, err := rets.Covariance()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientData, err)
	}
	cov.ScaleSym(freq.Factor(), cov)

	assets := make([]string, len(prices.ColNames))
	copy(assets, prices.ColNames)

	return &Result{
		Assets:  assets,
		Prices:  prices,
		Returns: rets,
		Mu:      mu,
		Cov:     cov,
	}, nil
}
