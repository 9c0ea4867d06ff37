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

package handler

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-optimizer/analysis"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
)

// Analyzer is implemented by *analysis.Service
type Analyzer interface {
	Optimize(ctx context.Context, req *analysis.OptimizeRequest) (*analysis.OptimizeResponse, error)
	History(ctx context.Context, req *analysis.HistoryRequest) (*analysis.HistoryResponse, error)
	OptimizeWithHistory(ctx context.Context, req *analysis.OptimizeRequest) (*analysis.OptimizeResponse, error)
	Compare(ctx context.Context, req *analysis.CompareRequest) (*analysis.CompareResponse, error)
}

// AssetSource is implemented by *data.AssetCache
type AssetSource interface {
	Get(ctx context.Context) ([]*data.Asset, error)
}

// API holds the dependencies of the HTTP handlers
type API struct {
	Analysis Analyzer
	Assets   AssetSource
}

type helloResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// Hello reports the service name and version
func (a *API) Hello(c *fiber.Ctx) error {
	return c.JSON(helloResponse{
		Name:    common.ProgramName,
		Version: common.CurrentVersion.String(),
		Status:  "ok",
	})
}

// AssetList returns the asset reference list
func (a *API) AssetList(c *fiber.Ctx) error {
	assets, err := a.Assets.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(assets)
}

// Optimize computes optimal portfolio weights
func (a *API) Optimize(c *fiber.Ctx) error {
	req := &analysis.OptimizeRequest{}
	if err := parseBody(c, req); err != nil {
		return err
	}
	resp, err := a.Analysis.Optimize(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// PortfolioHistory replays a portfolio with fixed weights
func (a *API) PortfolioHistory(c *fiber.Ctx) error {
	req := &analysis.HistoryRequest{}
	if err := parseBody(c, req); err != nil {
		return err
	}
	resp, err := a.Analysis.History(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// OptimizeWithHistory optimizes and replays the result
func (a *API) OptimizeWithHistory(c *fiber.Ctx) error {
	req := &analysis.OptimizeRequest{}
	if err := parseBody(c, req); err != nil {
		return err
	}
	resp, err := a.Analysis.OptimizeWithHistory(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// ComparePortfolios compares user, optimized and benchmark portfolios
func (a *API) ComparePortfolios(c *fiber.Ctx) error {
	req := &analysis.CompareRequest{}
	if err := parseBody(c, req); err != nil {
		return err
	}
	resp, err := a.Analysis.Compare(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := json.Unmarshal(c.Body(), v); err != nil {
		log.Warn().Err(err).Str("Path", c.Path()).Msg("bad request body")
		return ErrMalformedBody
	}
	return nil
}
