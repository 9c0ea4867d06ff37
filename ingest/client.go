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

package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://iss.moex.com"

	candlePageSize  = 500
	historyPageSize = 100
	requestTimeout  = 15 * time.Second
)

// Client downloads daily closing prices from the Moscow Exchange ISS API
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an ISS client; an empty baseURL uses iss.url from the configuration
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = viper.GetString("iss.url")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// candles.json with iss.json=extended is an array of blocks; the second one holds the rows
type candleBlock struct {
	Candles []*candle `json:"candles"`
}

type candle struct {
	Begin string   `json:"begin"`
	Close *float64 `json:"close"`
}

type historyResponse struct {
	History struct {
		Columns []string        `json:"columns"`
		Data    [][]interface{} `json:"data"`
	} `json:"history"`
}

// Fetch returns the closing prices of id between begin and end inclusive, ordered by date
func (c *Client) Fetch(ctx context.Context, class data.AssetClass, id string, begin, end time.Time) ([]data.Observation, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "iss.Fetch")
	defer span.End()

	span.SetAttributes(
		attribute.String("AssetClass", string(class)),
		attribute.String("Id", id),
		attribute.String("Begin", begin.Format(common.DateLayout)),
		attribute.String("End", end.Format(common.DateLayout)),
	)

	var obs []data.Observation
	var err error

	switch class {
	case data.Equity:
		obs, err = c.fetchCandles(ctx, id, begin, end)
	case data.Index:
		obs, err = c.fetchHistory(ctx, fmt.Sprintf("/iss/history/engines/stock/markets/index/securities/%s.json", url.PathEscape(id)), begin, end)
	case data.Currency:
		obs, err = c.fetchHistory(ctx, fmt.Sprintf("/iss/history/engines/currency/markets/selt/boards/CETS/securities/%s.json", url.PathEscape(id)), begin, end)
	default:
		err = fmt.Errorf("%w: %q", data.ErrUnknownAssetClass, class)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "iss fetch failed")
		return nil, err
	}

	return normalize(obs), nil
}

func (c *Client) fetchCandles(ctx context.Context, id string, begin, end time.Time) ([]data.Observation, error) {
	path := fmt.Sprintf("/iss/engines/stock/markets/shares/boards/TQBR/securities/%s/candles.json", url.PathEscape(id))
	params := url.Values{}
	params.Set("from", begin.Format(common.DateLayout))
	params.Set("till", end.Format(common.DateLayout))
	params.Set("interval", "24")
	params.Set("iss.meta", "off")
	params.Set("iss.json", "extended")
	params.Set("candles.columns", "begin,close")

	var obs []data.Observation
	for start := 0; ; start += candlePageSize {
		params.Set("start", fmt.Sprintf("%d", start))

		var blocks []*candleBlock
		if err := c.get(ctx, path, params, &blocks); err != nil {
			return nil, err
		}

		var rows []*candle
		for _, block := range blocks {
			if block != nil && len(block.Candles) > 0 {
				rows = block.Candles
			}
		}

		for _, row := range rows {
			if row.Close == nil {
				continue
			}
			dt, err := parseTradeDate(row.Begin)
			if err != nil {
				return nil, err
			}
			obs = append(obs, data.Observation{Date: dt, Close: *row.Close})
		}

		if len(rows) < candlePageSize {
			return obs, nil
		}
	}
}

func (c *Client) fetchHistory(ctx context.Context, path string, begin, end time.Time) ([]data.Observation, error) {
	params := url.Values{}
	params.Set("from", begin.Format(common.DateLayout))
	params.Set("till", end.Format(common.DateLayout))
	params.Set("iss.meta", "off")
	params.Set("history.columns", "TRADEDATE,CLOSE")
	params.Set("limit", fmt.Sprintf("%d", historyPageSize))

	var obs []data.Observation
	for start := 0; ; start += historyPageSize {
		params.Set("start", fmt.Sprintf("%d", start))

		var resp historyResponse
		if err := c.get(ctx, path, params, &resp); err != nil {
			return nil, err
		}

		dateIdx, closeIdx := -1, -1
		for idx, col := range resp.History.Columns {
			switch strings.ToUpper(col) {
			case "TRADEDATE":
				dateIdx = idx
			case "CLOSE":
				closeIdx = idx
			}
		}

		rows := resp.History.Data
		if len(rows) > 0 && (dateIdx < 0 || closeIdx < 0) {
			return nil, fmt.Errorf("%w: history block has no TRADEDATE/CLOSE columns", ErrMalformedResponse)
		}

		for _, row := range rows {
			if len(row) <= dateIdx || len(row) <= closeIdx {
				return nil, fmt.Errorf("%w: short history row", ErrMalformedResponse)
			}
			raw, ok := row[dateIdx].(string)
			if !ok {
				return nil, fmt.Errorf("%w: trade date is not a string", ErrMalformedResponse)
			}
			// a day without trades has a null close
			val, ok := row[closeIdx].(float64)
			if !ok {
				continue
			}
			dt, err := parseTradeDate(raw)
			if err != nil {
				return nil, err
			}
			obs = append(obs, data.Observation{Date: dt, Close: val})
		}

		if len(rows) < historyPageSize {
			return obs, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Stack().Err(err).Str("Url", endpoint).Msg("iss request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("StatusCode", resp.StatusCode).Str("Url", endpoint).Msg("iss returned an error")
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		log.Error().Stack().Err(err).Str("Url", endpoint).Msg("could not decode iss response")
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// parseTradeDate accepts both "2006-01-02" and "2006-01-02 15:04:05"
func parseTradeDate(raw string) (time.Time, error) {
	if len(raw) < len(common.DateLayout) {
		return time.Time{}, fmt.Errorf("%w: bad trade date %q", ErrMalformedResponse, raw)
	}
	dt, err := common.ParseDate(raw[:len(common.DateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad trade date %q", ErrMalformedResponse, raw)
	}
	return dt, nil
}

// normalize sorts observations by date; for duplicate dates the last row wins
func normalize(obs []data.Observation) []data.Observation {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Date.Before(obs[j].Date)
	})

	res := obs[:0]
	for _, o := range obs {
		if n := len(res); n > 0 && res[n-1].Date.Equal(o.Date) {
			res[n-1] = o
			continue
		}
		res = append(res, o)
	}
	return res
}
