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
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/penny-vault/pv-optimizer/optimizer"
	"github.com/penny-vault/pv-optimizer/portfolio"
	"github.com/penny-vault/pv-optimizer/returns"
)

// ResultCache stores serialized results; *common.Cache implements it
type ResultCache interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
}

// Service answers optimization, history and comparison requests
type Service struct {
	Repo data.PriceRepository

	// Cache may be nil, in which case optimizations are always computed
	Cache ResultCache

	// Clock supplies the default end date; nil uses the wall clock
	Clock data.Clock

	// Cleaning prepares price matrices for both optimization and replay; nil uses
	// returns.DefaultCleaningPolicy
	Cleaning returns.CleaningPolicy
}

func NewService(repo data.PriceRepository, cache ResultCache) *Service {
	return &Service{
		Repo:  repo,
		Cache: cache,
	}
}

func (s *Service) today() time.Time {
	if s.Clock == nil {
		return common.Today()
	}
	now := s.Clock.Now().In(common.GetTimezone())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, common.GetTimezone())
}

func (s *Service) cleaning() returns.CleaningPolicy {
	if s.Cleaning == nil {
		return returns.DefaultCleaningPolicy
	}
	return s.Cleaning
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// Optimize fetches prices for the requested tickers and solves for the optimal weights
func (s *Service) Optimize(ctx context.Context, req *OptimizeRequest) (*OptimizeResponse, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "analysis.Optimize")
	defer span.End()

	params, err := req.resolve(optimizeDefaults{rf: optimizer.DefaultRiskFreeRate, start: defaultOptimizeStart}, s.today())
	if err != nil {
		failSpan(span, err, "invalid request")
		return nil, err
	}

	return s.optimize(ctx, params)
}

func (s *Service) optimize(ctx context.Context, params *optimizeParams) (*OptimizeResponse, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.StringSlice("Tickers", params.IDs),
		attribute.String("Objective", params.Objective.Kind.String()),
	)

	subLog := log.With().Strs("Tickers", params.IDs).Str("Objective", params.Objective.Kind.String()).Str("Mode", string(params.Mode)).Logger()

	key, err := common.CacheKey("optimize:"+s.cleaning().Name(), params)
	if err != nil {
		subLog.Warn().Err(err).Msg("could not compute cache key")
	}

	if s.Cache != nil && key != "" {
		cached := &OptimizeResponse{}
		if ok, err := s.Cache.GetJSON(ctx, key, cached); err != nil {
			subLog.Warn().Err(err).Msg("result cache lookup failed")
		} else if ok {
			subLog.Debug().Msg("serving optimization from cache")
			return cached, nil
		}
	}

	series, err := s.Repo.FetchMode(ctx, params.IDs, params.Mode, params.Begin, params.End)
	if err != nil {
		failSpan(span, err, "could not fetch prices")
		return nil, err
	}

	rets, err := returns.Build(series, params.Freq, returns.WithCleaningPolicy(s.cleaning()))
	if err != nil {
		failSpan(span, err, "could not compute returns")
		return nil, err
	}

	res, err := optimizer.Optimize(rets.Mu, rets.Cov, rets.Assets, params.Objective, params.Constraints)
	if err != nil {
		failSpan(span, err, "optimization failed")
		return nil, err
	}

	resp := &OptimizeResponse{
		Weights:     res.Weights,
		Performance: res.Performance,
	}

	if s.Cache != nil && key != "" {
		if err := s.Cache.SetJSON(ctx, key, resp); err != nil {
			subLog.Warn().Err(err).Msg("could not store optimization in cache")
		}
	}

	return resp, nil
}

// History replays a constant weight portfolio and analyzes its drawdown
func (s *Service) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "analysis.History")
	defer span.End()

	params, err := req.resolve(s.today())
	if err != nil {
		failSpan(span, err, "invalid request")
		return nil, err
	}

	vs, msg, err := s.replay(ctx, params)
	if err != nil {
		failSpan(span, err, "could not replay portfolio")
		return nil, err
	}

	return &HistoryResponse{
		History:  historyPoints(vs),
		Message:  msg,
		Drawdown: drawdown(portfolio.Analyze(vs)),
	}, nil
}

func (s *Service) replay(ctx context.Context, params *historyParams) (*portfolio.ValueSeries, string, error) {
	series, err := s.Repo.FetchMode(ctx, weightIDs(params.weights), params.mode, params.begin, params.end)
	if err != nil {
		return nil, "", err
	}
	vs, msg := portfolio.Replay(params.weights, series, params.begin, params.end, params.initial, params.freq, returns.WithCleaningPolicy(s.cleaning()))
	return vs, msg, nil
}

// OptimizeWithHistory optimizes and then replays the optimized weights over the same period
func (s *Service) OptimizeWithHistory(ctx context.Context, req *OptimizeRequest) (*OptimizeResponse, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "analysis.OptimizeWithHistory")
	defer span.End()

	params, err := req.resolve(optimizeDefaults{rf: optimizer.DefaultRiskFreeRate, start: defaultOptimizeStart}, s.today())
	if err != nil {
		failSpan(span, err, "invalid request")
		return nil, err
	}

	resp, err := s.optimize(ctx, params)
	if err != nil {
		return nil, err
	}

	vs, msg, err := s.replay(ctx, &historyParams{
		mode:    params.Mode,
		weights: resp.Weights,
		begin:   params.Begin,
		end:     params.End,
		initial: portfolio.DefaultInitialValue,
		freq:    returns.Daily,
	})
	if err != nil {
		failSpan(span, err, "could not replay portfolio")
		return nil, err
	}

	// copy so the cached response is not modified
	combined := *resp
	combined.History = historyPoints(vs)
	combined.HistoryMessage = msg
	return &combined, nil
}
