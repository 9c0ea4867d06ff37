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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"runtime/pprof"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/data/database"
	"github.com/penny-vault/pv-optimizer/handler"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/penny-vault/pv-optimizer/router"
)

var (
	serveProfile bool
	serveTrace   bool
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 8000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	viper.BindEnv("server.timeout", "PVOPT_SERVER_TIMEOUT")
	serveCmd.Flags().Duration("timeout", 60*time.Second, "Maximum processing time of a single request")
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))

	viper.BindEnv("server.allow_origins", "PVOPT_ALLOW_ORIGINS")
	serveCmd.Flags().String("allow-origins", "*", "Comma separated list of CORS origins")
	viper.BindPFlag("server.allow_origins", serveCmd.Flags().Lookup("allow-origins"))

	viper.BindEnv("asset_cache.ttl", "PVOPT_ASSET_CACHE_TTL")
	serveCmd.Flags().Duration("asset-cache-ttl", data.DefaultAssetCacheTTL, "How long the asset list is served before it is reloaded")
	viper.BindPFlag("asset_cache.ttl", serveCmd.Flags().Lookup("asset-cache-ttl"))

	serveCmd.Flags().BoolVar(&serveProfile, "cpu-profile", false, "Run pprof and save in profile.out")
	serveCmd.Flags().BoolVar(&serveTrace, "trace", false, "Trace program execution and save in trace.out")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the optimizer HTTP API",
	Long:  `Run HTTP server that exposes portfolio optimization, history and comparison endpoints`,
	Run: func(cmd *cobra.Command, args []string) {
		if serveProfile {
			f, err := os.Create("profile.out")
			if err != nil {
				log.Fatal().Err(err).Msg("could not create cpu profile")
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				log.Fatal().Err(err).Msg("could not start cpu profile")
			}
			defer pprof.StopCPUProfile()
		}

		if serveTrace {
			f, err := os.Create("trace.out")
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create trace output file")
			}
			defer func() {
				if err := f.Close(); err != nil {
					log.Fatal().Err(err).Msg("failed to close trace file")
				}
			}()

			if err := trace.Start(f); err != nil {
				log.Fatal().Err(err).Msg("failed to start trace")
			}
			defer trace.Stop()
		}

		ctx := context.Background()

		shutdownTracing, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("could not initialize tracing")
		}
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not flush traces")
			}
		}()

		repo, store, closeStore := mustOpenRepository(ctx)
		defer closeStore()
		log.Info().Str("Driver", viper.GetString("database.driver")).Msg("opened price store")

		cache, err := common.SetupCache()
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("could not initialize result cache")
		}

		assets := data.NewAssetCache(store, data.SystemClock{}, viper.GetDuration("asset_cache.ttl"))

		api := &handler.API{
			Analysis: newService(repo, cache),
			Assets:   assets,
		}

		app := router.New(api, router.Config{
			Timeout:      viper.GetDuration("server.timeout"),
			AllowOrigins: viper.GetString("server.allow_origins"),
		})

		// refresh the asset list once a day regardless of traffic
		scheduler := gocron.NewScheduler(common.GetTimezone())
		if _, err := scheduler.Every(1).Day().At("00:05").Do(func() {
			if err := assets.Refresh(context.Background()); err != nil {
				log.Error().Stack().Err(err).Msg("scheduled asset list refresh failed")
			}
		}); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not schedule asset list refresh")
		}
		scheduler.StartAsync()
		defer scheduler.Stop()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-c
			log.Info().Str("Signal", sig.String()).Msg("shutting down")
			if err := app.Shutdown(); err != nil {
				log.Error().Stack().Err(err).Msg("server shutdown failed")
			}
		}()

		port := viper.GetString("server.port")
		log.Info().Str("Port", port).Msg("starting server")
		if err := app.Listen(":" + port); err != nil {
			log.Fatal().Stack().Err(err).Msg("server stopped")
		}

		// in-flight requests are done; anything still open leaked
		database.LogOpenTransactions()
	},
}
