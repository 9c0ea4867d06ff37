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

package data

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// DefaultClassifierTable routes the gold spot price to the currency table; every
// other non-equity identifier is an index
var DefaultClassifierTable = map[string]AssetClass{
	"GLDRUB_TOM": Currency,
}

// Classifier is the fixed lookup table that assigns non-equity identifiers to an
// asset class. Identifiers missing from the table get the fallback class.
type Classifier struct {
	table    map[string]AssetClass
	fallback AssetClass
}

type classifierFile struct {
	Fallback string            `toml:"fallback"`
	Assets   map[string]string `toml:"assets"`
}

func NewClassifier(table map[string]AssetClass, fallback AssetClass) *Classifier {
	c := &Classifier{
		table:    make(map[string]AssetClass, len(table)),
		fallback: fallback,
	}
	for k, v := range table {
		c.table[strings.ToUpper(k)] = v
	}
	return c
}

// DefaultClassifier returns the built-in table with an index fallback
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultClassifierTable, Index)
}

// ParseClassifier reads a TOML classifier table of the form
//
//	fallback = "index"
//	[assets]
//	GLDRUB_TOM = "currency"
func ParseClassifier(data []byte) (*Classifier, error) {
	var raw classifierFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClassifier, err)
	}

	fallback := Index
	if raw.Fallback != "" {
		var err error
		if fallback, err = ParseAssetClass(raw.Fallback); err != nil {
			return nil, fmt.Errorf("%w: fallback: %v", ErrInvalidClassifier, err)
		}
	}

	table := make(map[string]AssetClass, len(raw.Assets))
	for id, class := range raw.Assets {
		parsed, err := ParseAssetClass(class)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidClassifier, id, err)
		}
		table[id] = parsed
	}

	return NewClassifier(table, fallback), nil
}

// LoadClassifier reads the classifier table from fn. An empty fn returns the default table.
func LoadClassifier(fn string) (*Classifier, error) {
	if fn == "" {
		return DefaultClassifier(), nil
	}

	data, err := os.ReadFile(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not read classifier table")
		return nil, err
	}

	return ParseClassifier(data)
}

// Classify returns the asset class for a non-equity identifier
func (c *Classifier) Classify(id string) AssetClass {
	if class, ok := c.table[strings.ToUpper(id)]; ok {
		return class
	}
	return c.fallback
}

// Partition splits ids by asset class according to mode. Order within each class
// follows the input.
func (c *Classifier) Partition(ids []string, mode Mode) (map[AssetClass][]string, error) {
	res := make(map[AssetClass][]string)
	switch mode {
	case ModeTickers:
		res[Equity] = append(res[Equity], ids...)
	case ModeAssets:
		for _, id := range ids {
			class := c.Classify(id)
			res[class] = append(res[class], id)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return res, nil
}
