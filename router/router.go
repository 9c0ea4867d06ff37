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

package router

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/handler"
	"github.com/penny-vault/pv-optimizer/middleware"
)

// Config controls the HTTP server
type Config struct {
	// Timeout bounds the processing time of a single request; 0 disables it
	Timeout time.Duration

	// AllowOrigins is the CORS origin list; empty allows every origin
	AllowOrigins string
}

// New creates the fiber application with middleware and routes installed
func New(api *handler.API, cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               common.ProgramName,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          handler.ErrorHandler,
		DisableStartupMessage: true,
	})

	allowOrigins := cfg.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "*",
		AllowMethods: "GET,POST,HEAD,OPTIONS",
	}))
	app.Use(middleware.NewLogger())
	app.Use(middleware.NewDeadline(cfg.Timeout))

	SetupRoutes(app, api)
	return app
}

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App, api *handler.API) {
	app.Get("/", api.Hello)

	v := app.Group("/api")
	v.Get("/asset_list", api.AssetList)
	v.Post("/optimize", api.Optimize)
	v.Post("/portfolio_history", api.PortfolioHistory)
	v.Post("/optimize_with_history", api.OptimizeWithHistory)
	v.Post("/compare_portfolios", api.ComparePortfolios)
}
