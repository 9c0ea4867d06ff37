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

import "errors"

var (
	ErrInvalidTimeRange  = errors.New("start must be before end")
	ErrNoIdentifiers     = errors.New("at least one asset identifier is required")
	ErrUnknownAssetClass = errors.New("unknown asset class")
	ErrUnknownMode       = errors.New("unknown asset mode; expected tickers or assets")
	ErrInvalidClassifier = errors.New("invalid asset classifier table")
	ErrNoStore           = errors.New("no price store configured")
)
