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
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-optimizer/analysis"
	"github.com/penny-vault/pv-optimizer/optimizer"
)

var (
	optimizeMode      string
	optimizeStart     string
	optimizeEnd       string
	optimizeObjective string
	optimizeRf        float64
	optimizeDelta     float64
	optimizeTargetVol float64
	optimizeTargetRet float64
	optimizeShorts    bool
	optimizeL2        bool
	optimizeGamma     float64
	optimizeMonthly   bool
	optimizeHistory   bool
)

func init() {
	optimizeCmd.Flags().StringVar(&optimizeMode, "mode", "tickers", "How identifiers are resolved, one of: tickers, assets")
	optimizeCmd.Flags().StringVar(&optimizeStart, "start", "2000-01-01", "First date of the estimation window (YYYY-MM-DD)")
	optimizeCmd.Flags().StringVar(&optimizeEnd, "end", "", "Last date of the estimation window (YYYY-MM-DD); defaults to today")
	optimizeCmd.Flags().StringVarP(&optimizeObjective, "objective", "o", "max_sharpe", "Objective, one of: max_sharpe, max_quadratic_utility, efficient_risk, efficient_return, min_volatility")
	optimizeCmd.Flags().Float64Var(&optimizeRf, "rf", optimizer.DefaultRiskFreeRate, "Annual risk-free rate")
	optimizeCmd.Flags().Float64Var(&optimizeDelta, "risk-aversion", optimizer.DefaultRiskAversion, "Risk aversion of max_quadratic_utility")
	optimizeCmd.Flags().Float64Var(&optimizeTargetVol, "target-volatility", 0, "Target volatility of efficient_risk")
	optimizeCmd.Flags().Float64Var(&optimizeTargetRet, "target-return", 0, "Target return of efficient_return")
	optimizeCmd.Flags().BoolVar(&optimizeShorts, "shorts", false, "Allow short positions")
	optimizeCmd.Flags().BoolVar(&optimizeL2, "l2-reg", false, "Add an L2 penalty on the weights")
	optimizeCmd.Flags().Float64Var(&optimizeGamma, "gamma", 1, "L2 penalty coefficient")
	optimizeCmd.Flags().BoolVar(&optimizeMonthly, "monthly", false, "Estimate from month-end prices instead of daily closes")
	optimizeCmd.Flags().BoolVar(&optimizeHistory, "history", false, "Also print the value history of the optimized portfolio")

	rootCmd.AddCommand(optimizeCmd)
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize [flags] TICKER...",
	Short: "Compute optimal weights for a set of securities",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		repo, _, closeStore := mustOpenRepository(ctx)
		defer closeStore()

		svc := newService(repo, nil)
		req := &analysis.OptimizeRequest{
			Mode:           optimizeMode,
			Tickers:        args,
			RiskFreeRate:   &optimizeRf,
			StartDate:      optimizeStart,
			EndDate:        optimizeEnd,
			Objective:      optimizeObjective,
			RiskAversion:   &optimizeDelta,
			ShortPositions: optimizeShorts,
			L2Reg:          optimizeL2,
			Gamma:          &optimizeGamma,
		}
		if cmd.Flags().Changed("target-volatility") {
			req.TargetVolatility = &optimizeTargetVol
		}
		if cmd.Flags().Changed("target-return") {
			req.TargetReturn = &optimizeTargetRet
		}
		if optimizeMonthly {
			freq := 12
			req.Frequency = &freq
		}

		var resp *analysis.OptimizeResponse
		var err error
		if optimizeHistory {
			resp, err = svc.OptimizeWithHistory(ctx, req)
		} else {
			resp, err = svc.Optimize(ctx, req)
		}
		if err != nil {
			log.Error().Stack().Err(err).Strs("Tickers", args).Msg("optimization failed")
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Println(weightsTable(resp.Weights))
		fmt.Println(performanceTable(resp.Performance))

		if optimizeHistory {
			if resp.HistoryMessage != "" {
				fmt.Println(resp.HistoryMessage)
			}
			fmt.Println(historyTable(resp.History, 0))
		}
	},
}

func weightsTable(weights optimizer.Weights) string {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Asset", "Weight"})
	table.SetBorder(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, id := range ids {
		table.Append([]string{id, fmt.Sprintf("%.2f%%", weights[id]*100)})
	}
	table.Render()
	return s.String()
}

func performanceTable(perf optimizer.Performance) string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Expected Return", "Volatility", "Sharpe Ratio"})
	table.SetBorder(false)
	table.Append([]string{
		fmt.Sprintf("%.2f%%", perf.ExpectedReturn*100),
		fmt.Sprintf("%.2f%%", perf.Volatility*100),
		fmt.Sprintf("%.3f", perf.SharpeRatio),
	})
	table.Render()
	return s.String()
}

// historyTable renders the last n points of a history; n <= 0 renders everything
func historyTable(history []analysis.HistoryPoint, n int) string {
	if len(history) == 0 {
		return "<NO DATA>"
	}
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Date", "Portfolio Value"})
	table.SetBorder(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, pt := range history {
		table.Append([]string{pt.Date, fmt.Sprintf("%.2f", pt.Value)})
	}
	table.SetFooter([]string{"Num Rows", fmt.Sprintf("%d", len(history))})
	table.Render()
	return s.String()
}
