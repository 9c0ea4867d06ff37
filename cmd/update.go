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
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/ingest"
)

var (
	updateSchedule string
	updateCreate   bool
)

func init() {
	updateCmd.Flags().StringVar(&updateSchedule, "schedule", "", "Market aware cron expression, e.g. \"@close 30\"; when set the command keeps running and updates on schedule")
	updateCmd.Flags().BoolVar(&updateCreate, "create", true, "Create the SQLite database and tables if they do not exist")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update [flags] [ID...]",
	Short: "Download new daily closes from the Moscow Exchange",
	Long: `Download closing prices published since the last stored trade date. Identifiers
are read from the asset list when none are given on the command line.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, closeStore, err := openStore(ctx, updateCreate)
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("could not open price store")
		}
		defer closeStore()

		source := ingest.AssetListSource(store)
		if len(args) > 0 {
			common.ArrToUpper(args)
			source = ingest.StaticSource(common.UniqueStrings(args))
		}

		updater := ingest.NewUpdater(ingest.NewClient(viper.GetString("iss.url")), store).WithCalendar(loadCalendar())
		scheduler := ingest.NewScheduler(updater, loadClassifier(), source)

		if updateSchedule == "" {
			report := scheduler.Run(ctx)
			if report == nil || (len(report.Failed) > 0 && len(report.Updated) == 0) {
				os.Exit(1)
			}
			return
		}

		if err := scheduler.Schedule(updateSchedule); err != nil {
			log.Fatal().Err(err).Msg("could not schedule updates")
		}
		scheduler.Start()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		sig := <-c
		log.Info().Str("Signal", sig.String()).Msg("shutting down")

		stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	},
}
