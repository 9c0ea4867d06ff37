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
	"fmt"
	"os"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/returns"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Database
	viper.BindEnv("database.driver", "PVOPT_DATABASE_DRIVER")
	rootCmd.PersistentFlags().String("database-driver", "sqlite", "Price store driver, one of: postgres, sqlite")
	viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("database-driver"))

	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	viper.BindEnv("database.sqlite_path", "PVOPT_SQLITE_PATH")
	rootCmd.PersistentFlags().String("sqlite-path", "moex_data.db", "Path of the SQLite price database")
	viper.BindPFlag("database.sqlite_path", rootCmd.PersistentFlags().Lookup("sqlite-path"))

	// Logging configuration
	viper.BindEnv("log.level", "PVOPT_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PVOPT_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PVOPT_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PVOPT_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Format logs for humans instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Result cache
	viper.BindEnv("cache.local_size", "PVOPT_CACHE_LOCAL_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", common.DefaultCacheSize, "Number of results kept in the in-process cache")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	viper.BindEnv("cache.ttl", "PVOPT_CACHE_TTL")
	rootCmd.PersistentFlags().Int("cache-ttl", int(common.DefaultCacheTTL.Seconds()), "Seconds a cached result stays valid")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	viper.BindEnv("cache.redis", "PVOPT_CACHE_REDIS")
	rootCmd.PersistentFlags().Bool("cache-redis", false, "Share cached results through redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("cache-redis"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("cache-redis-url", "redis://localhost:6379/0", "Redis connection string")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("cache-redis-url"))

	// Asset classification
	viper.BindEnv("classifier.file", "PVOPT_CLASSIFIER_FILE")
	rootCmd.PersistentFlags().String("classifier-file", "", "TOML file mapping identifiers to asset classes")
	viper.BindPFlag("classifier.file", rootCmd.PersistentFlags().Lookup("classifier-file"))

	viper.BindEnv("returns.cleaning_policy", "PVOPT_CLEANING_POLICY")
	rootCmd.PersistentFlags().String("cleaning-policy", returns.DefaultCleaningPolicy.Name(), "How zero and missing closes are handled, one of: zero-fill-then-drop, drop-missing")
	viper.BindPFlag("returns.cleaning_policy", rootCmd.PersistentFlags().Lookup("cleaning-policy"))

	viper.BindEnv("market.calendar_file", "PVOPT_MARKET_CALENDAR")
	rootCmd.PersistentFlags().String("market-calendar", "", "TOML file listing exchange holidays and shortened sessions")
	viper.BindPFlag("market.calendar_file", rootCmd.PersistentFlags().Lookup("market-calendar"))

	viper.BindEnv("timezone", "PVOPT_TIMEZONE")
	rootCmd.PersistentFlags().String("timezone", common.DefaultTimezone, "Reference timezone of trading dates")
	viper.BindPFlag("timezone", rootCmd.PersistentFlags().Lookup("timezone"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OpenTelemetry collector endpoint; tracing is disabled when blank")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	viper.BindEnv("otlp.http", "PVOPT_OTLP_HTTP")
	rootCmd.PersistentFlags().Bool("otlp-http", false, "Export traces over HTTP instead of gRPC")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))

	// Market data source
	viper.BindEnv("iss.url", "PVOPT_ISS_URL")
	rootCmd.PersistentFlags().String("iss-url", "https://iss.moex.com", "Base URL of the MOEX ISS API")
	viper.BindPFlag("iss.url", rootCmd.PersistentFlags().Lookup("iss-url"))
}

var rootCmd = &cobra.Command{
	Use:     "pvopt",
	Version: common.CurrentVersion.String(),
	Short:   "Portfolio optimizer for Moscow Exchange securities",
	Long: `Mean-variance portfolio optimization, historical portfolio reconstruction and
drawdown analysis over daily closing prices of MOEX equities, indices and currencies.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
