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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/optimizer"
	"github.com/penny-vault/pv-optimizer/portfolio"
	"github.com/penny-vault/pv-optimizer/returns"
)

const (
	DefaultGamma = 1.0

	defaultOptimizeStart = "2000-01-01"
	defaultCompareStart  = "1995-01-01"
	defaultCompareRf     = 0.0
)

// OptimizeRequest asks for the optimal allocation of Tickers. Unset fields take their
// defaults: max_sharpe with rf 0.02 over 2000-01-01 until today on daily data.
type OptimizeRequest struct {
	Mode             string   `json:"mode"`
	Tickers          []string `json:"tickers"`
	RiskFreeRate     *float64 `json:"rf,omitempty"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	Objective        string   `json:"objective"`
	RiskAversion     *float64 `json:"risk_aversion,omitempty"`
	TargetVolatility *float64 `json:"target_volatility,omitempty"`
	TargetReturn     *float64 `json:"target_return,omitempty"`
	ShortPositions   bool     `json:"short_positions"`
	L2Reg            bool     `json:"l2_reg"`
	Gamma            *float64 `json:"gamma,omitempty"`
	Frequency        *int     `json:"frequency,omitempty"`
}

// HistoryRequest asks for the value history of a constant weight portfolio
type HistoryRequest struct {
	Mode         string             `json:"mode"`
	Weights      map[string]float64 `json:"weights_dict"`
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date"`
	InitialValue *float64           `json:"initial_value,omitempty"`
	Frequency    *int               `json:"frequency,omitempty"`
}

// CompareRequest compares a user portfolio, the optimized portfolio of the same
// tickers and an optional benchmark
type CompareRequest struct {
	OptimizeRequest
	Weights   map[string]float64 `json:"weights"`
	Benchmark string             `json:"benchmark"`
}

type HistoryPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"portfolio_value"`
}

type Drawdown struct {
	MaxDrawdown     float64 `json:"max_drawdown"`
	MaxDrawdownDate *string `json:"max_drawdown_date"`
	RecoveryDate    *string `json:"recovery_date"`
	RecoveryDays    *int    `json:"recovery_days"`
}

type OptimizeResponse struct {
	Weights        optimizer.Weights     `json:"weights"`
	Performance    optimizer.Performance `json:"performance"`
	History        []HistoryPoint        `json:"history,omitempty"`
	HistoryMessage string                `json:"history_message,omitempty"`
}

type HistoryResponse struct {
	History  []HistoryPoint `json:"history"`
	Message  string         `json:"message"`
	Drawdown Drawdown       `json:"drawdown"`
}

type ReportMetrics struct {
	Return      float64  `json:"return"`
	Volatility  float64  `json:"volatility"`
	SharpeRatio *float64 `json:"sharpe_ratio"`
	Drawdown
}

// PortfolioReport is one portfolio of a comparison
type PortfolioReport struct {
	Weights map[string]float64 `json:"weights_dict"`
	History []HistoryPoint     `json:"history"`
	Message string             `json:"history_message"`
	Metrics ReportMetrics      `json:"metrics"`
}

type CompareResponse struct {
	User           *PortfolioReport `json:"user,omitempty"`
	Optimized      *PortfolioReport `json:"optimized"`
	Benchmark      *PortfolioReport `json:"benchmark,omitempty"`
	BenchmarkError string           `json:"benchmark_error,omitempty"`
}

// optimizeParams is a fully resolved optimization request; it is also the cache key
type optimizeParams struct {
	Mode        data.Mode
	IDs         []string
	Begin       time.Time
	End         time.Time
	Objective   optimizer.Objective
	Constraints optimizer.Constraints
	Freq        returns.Frequency
}

type optimizeDefaults struct {
	rf    float64
	start string
}

func (r *OptimizeRequest) resolve(defaults optimizeDefaults, today time.Time) (*optimizeParams, error) {
	mode, err := data.ParseMode(r.Mode)
	if err != nil {
		return nil, err
	}

	ids := normalizeIDs(r.Tickers)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: tickers are required", ErrInvalidRequest)
	}

	begin, end, err := dateRange(r.StartDate, r.EndDate, defaults.start, today)
	if err != nil {
		return nil, err
	}

	freq, err := frequency(r.Frequency)
	if err != nil {
		return nil, err
	}

	name := r.Objective
	if name == "" {
		name = optimizer.KindMaxSharpe.String()
	}
	rf := defaults.rf
	if r.RiskFreeRate != nil {
		rf = *r.RiskFreeRate
	}
	obj, err := optimizer.ParseObjective(name, optimizer.Params{
		RiskFreeRate:     &rf,
		RiskAversion:     r.RiskAversion,
		TargetVolatility: r.TargetVolatility,
		TargetReturn:     r.TargetReturn,
	})
	if err != nil {
		return nil, err
	}

	constraints := optimizer.Constraints{AllowShort: r.ShortPositions}
	if r.L2Reg {
		constraints.Gamma = DefaultGamma
		if r.Gamma != nil {
			constraints.Gamma = *r.Gamma
		}
	}
	if err := constraints.Validate(); err != nil {
		return nil, err
	}

	return &optimizeParams{
		Mode:        mode,
		IDs:         ids,
		Begin:       begin,
		End:         end,
		Objective:   obj,
		Constraints: constraints,
		Freq:        freq,
	}, nil
}

type historyParams struct {
	mode    data.Mode
	weights map[string]float64
	begin   time.Time
	end     time.Time
	initial float64
	freq    returns.Frequency
}

func (r *HistoryRequest) resolve(today time.Time) (*historyParams, error) {
	mode, err := data.ParseMode(r.Mode)
	if err != nil {
		return nil, err
	}

	weights := normalizeWeights(r.Weights)
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: portfolio weights are required", ErrInvalidRequest)
	}

	begin, end, err := dateRange(r.StartDate, r.EndDate, defaultOptimizeStart, today)
	if err != nil {
		return nil, err
	}

	freq, err := frequency(r.Frequency)
	if err != nil {
		return nil, err
	}

	initial := portfolio.DefaultInitialValue
	if r.InitialValue != nil {
		initial = *r.InitialValue
		if initial <= 0 {
			return nil, fmt.Errorf("%w: initial value must be positive", ErrInvalidRequest)
		}
	}

	return &historyParams{
		mode:    mode,
		weights: weights,
		begin:   begin,
		end:     end,
		initial: initial,
		freq:    freq,
	}, nil
}

func dateRange(start, end, defaultStart string, today time.Time) (begin, finish time.Time, err error) {
	if start == "" {
		start = defaultStart
	}
	begin, err = common.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date %q must be YYYY-MM-DD", ErrInvalidRequest, start)
	}

	if end == "" {
		return begin, today, nil
	}
	finish, err = common.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date %q must be YYYY-MM-DD", ErrInvalidRequest, end)
	}
	return begin, finish, nil
}

func frequency(f *int) (returns.Frequency, error) {
	if f == nil {
		return returns.Daily, nil
	}
	freq := returns.Frequency(*f)
	return freq, freq.Validate()
}

func normalizeIDs(ids []string) []string {
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id != "" {
			res = append(res, id)
		}
	}
	return common.UniqueStrings(res)
}

// normalizeWeights upper cases identifiers; weights of duplicate identifiers are summed
func normalizeWeights(weights map[string]float64) map[string]float64 {
	res := make(map[string]float64, len(weights))
	for id, w := range weights {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		res[id] += w
	}
	return res
}

func weightIDs(weights map[string]float64) []string {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func historyPoints(vs *portfolio.ValueSeries) []HistoryPoint {
	pts := make([]HistoryPoint, vs.Len())
	for idx, p := range vs.Points {
		pts[idx] = HistoryPoint{
			Date:  p.Date.Format(common.DateLayout),
			Value: p.Value,
		}
	}
	return pts
}

func drawdown(m *portfolio.DrawdownMetrics) Drawdown {
	dd := Drawdown{
		MaxDrawdown:  m.MaxDrawdown,
		RecoveryDays: m.RecoveryDays,
	}
	if !m.TroughDate.IsZero() {
		trough := m.TroughDate.Format(common.DateLayout)
		dd.MaxDrawdownDate = &trough
	}
	if m.RecoveryDate != nil {
		recovery := m.RecoveryDate.Format(common.DateLayout)
		dd.RecoveryDate = &recovery
	}
	return dd
}
