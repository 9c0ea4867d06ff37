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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-optimizer/analysis"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/portfolio"
)

var errBadWeight = errors.New("weights must be given as ID=WEIGHT")

var (
	historyMode    string
	historyStart   string
	historyEnd     string
	historyInitial float64
	historyMonthly bool
	historyRows    int
	historyTop     int
)

func init() {
	historyCmd.Flags().StringVar(&historyMode, "mode", "tickers", "How identifiers are resolved, one of: tickers, assets")
	historyCmd.Flags().StringVar(&historyStart, "start", "", "First date of the history (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyEnd, "end", "", "Last date of the history (YYYY-MM-DD); defaults to today")
	historyCmd.Flags().Float64Var(&historyInitial, "initial-value", portfolio.DefaultInitialValue, "Portfolio value on the first date")
	historyCmd.Flags().BoolVar(&historyMonthly, "monthly", false, "Replay month-end prices instead of daily closes")
	historyCmd.Flags().IntVarP(&historyRows, "rows", "n", 20, "Number of trailing history rows to print; 0 prints all")
	historyCmd.Flags().IntVar(&historyTop, "top", 5, "Number of deepest draw downs to list")

	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [flags] ID=WEIGHT...",
	Short: "Reconstruct the value history and draw downs of a fixed weight portfolio",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		weights, err := parseWeights(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		ctx := context.Background()
		repo, _, closeStore := mustOpenRepository(ctx)
		defer closeStore()

		svc := newService(repo, nil)
		req := &analysis.HistoryRequest{
			Mode:         historyMode,
			Weights:      weights,
			StartDate:    historyStart,
			EndDate:      historyEnd,
			InitialValue: &historyInitial,
		}
		if historyMonthly {
			freq := 12
			req.Frequency = &freq
		}

		resp, err := svc.History(ctx, req)
		if err != nil {
			log.Error().Stack().Err(err).Msg("history reconstruction failed")
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if resp.Message != "" {
			fmt.Println(resp.Message)
		}
		fmt.Println(historyTable(resp.History, historyRows))
		fmt.Println(drawdownSummary(resp.Drawdown))

		series, err := valueSeries(resp.History)
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("could not parse history dates")
		}
		fmt.Println(drawDownTable(portfolio.TopDrawDowns(series, historyTop)))
	},
}

// parseWeights converts ID=WEIGHT arguments into a weight map
func parseWeights(args []string) (map[string]float64, error) {
	weights := make(map[string]float64, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", errBadWeight, arg)
		}
		w, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errBadWeight, arg)
		}
		weights[parts[0]] += w
	}
	return weights, nil
}

func valueSeries(history []analysis.HistoryPoint) (*portfolio.ValueSeries, error) {
	series := &portfolio.ValueSeries{Points: make([]portfolio.ValuePoint, 0, len(history))}
	for _, pt := range history {
		dt, err := common.ParseDate(pt.Date)
		if err != nil {
			return nil, err
		}
		series.Points = append(series.Points, portfolio.ValuePoint{Date: dt, Value: pt.Value})
	}
	return series, nil
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func drawdownSummary(dd analysis.Drawdown) string {
	days := "-"
	if dd.RecoveryDays != nil {
		days = strconv.Itoa(*dd.RecoveryDays)
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Max Drawdown", "Trough", "Recovered", "Recovery Days"})
	table.SetBorder(false)
	table.Append([]string{
		fmt.Sprintf("%.2f%%", dd.MaxDrawdown*100),
		optional(dd.MaxDrawdownDate),
		optional(dd.RecoveryDate),
		days,
	})
	table.Render()
	return s.String()
}

func drawDownTable(drawDowns []*portfolio.DrawDown) string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Begin", "Trough", "Recovery", "Loss"})
	table.SetBorder(false)
	for _, dd := range drawDowns {
		recovery := "-"
		if !dd.Recovery.IsZero() {
			recovery = dd.Recovery.Format(common.DateLayout)
		}
		table.Append([]string{
			dd.Begin.Format(common.DateLayout),
			dd.End.Format(common.DateLayout),
			recovery,
			fmt.Sprintf("%.2f%%", dd.LossPercent*100),
		})
	}
	table.Render()
	return s.String()
}
