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

package optimizer

import "fmt"

const (
	longLowerBound  = 0.0
	shortLowerBound = -2.0
	upperBound      = 1.0
)

// Constraints restrict the feasible weights. Weights always sum to 1.
type Constraints struct {
	// AllowShort widens the per-asset bounds from [0, 1] to [-2, 1]
	AllowShort bool

	// Gamma is the L2 regularization strength; 0 disables it
	Gamma float64
}

// Bounds returns the per-asset weight bounds
func (c Constraints) Bounds() (lb, ub float64) {
	if c.AllowShort {
		return shortLowerBound, upperBound
	}
	return longLowerBound, upperBound
}

func (c Constraints) Validate() error {
	if !isFinite(c.Gamma) || c.Gamma < 0 {
		return fmt.Errorf("%w: gamma must be >= 0, got %v", ErrInvalidParameter, c.Gamma)
	}
	return nil
}
