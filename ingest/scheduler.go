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
	"sync"

	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/tradecron"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// IDSource supplies the identifiers refreshed on every scheduled run
type IDSource func(ctx context.Context) ([]string, error)

// Scheduler runs an Updater on a cron schedule
type Scheduler struct {
	cron       *cron.Cron
	updater    *Updater
	classifier *data.Classifier
	source     IDSource

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler; ids returned by source are classified before each run
func NewScheduler(updater *Updater, classifier *data.Classifier, source IDSource) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		updater:    updater,
		classifier: classifier,
		source:     source,
	}
}

// Schedule registers an update run. spec is a market aware cron expression, e.g.
// "@close 30" runs half an hour after the closing auction on every trading day.
func (s *Scheduler) Schedule(spec string) error {
	schedule, err := tradecron.New(spec, tradecron.RegularHours, s.updater.calendar)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.Run(context.Background())
	}))
	log.Info().Str("Schedule", spec).Str("TimeSpec", schedule.TimeSpec).Msg("price update scheduled")
	return nil
}

// Run performs a single update; overlapping runs are skipped
func (s *Scheduler) Run(ctx context.Context) *Report {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn().Msg("previous price update still running; skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ids, err := s.source(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not load identifiers for price update")
		return nil
	}

	report, err := s.updater.UpdateAll(ctx, s.classifier, ids)
	if err != nil {
		log.Error().Stack().Err(err).Msg("price update aborted")
	}
	if report != nil {
		log.Info().Int("Saved", report.Saved).Int("NumUpdated", len(report.Updated)).Strs("Failed", report.Failed).Msg("price update finished")
	}
	return report
}

// Start begins executing scheduled runs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running update to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("price update did not finish before shutdown")
	}
}

// AssetListSource returns an IDSource over the tickers of the asset reference list
func AssetListSource(lister data.AssetLister) IDSource {
	return func(ctx context.Context) ([]string, error) {
		assets, err := lister.ListAssets(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(assets))
		for _, asset := range assets {
			ids = append(ids, asset.Ticker)
		}
		return ids, nil
	}
}

// StaticSource returns an IDSource that always yields ids
func StaticSource(ids []string) IDSource {
	return func(context.Context) ([]string, error) {
		return ids, nil
	}
}
