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

import (
	"fmt"
	"math"
)

// Kind identifies an optimization objective
type Kind int

const (
	KindMaxSharpe Kind = iota + 1
	KindMaxQuadraticUtility
	KindEfficientRisk
	KindEfficientReturn
	KindMinVolatility
)

const (
	DefaultRiskFreeRate = 0.02
	DefaultRiskAversion = 1.0
)

var kindNames = map[Kind]string{
	KindMaxSharpe:           "max_sharpe",
	KindMaxQuadraticUtility: "max_quadratic_utility",
	KindEfficientRisk:       "efficient_risk",
	KindEfficientReturn:     "efficient_return",
	KindMinVolatility:       "min_volatility",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Objective is what the optimizer maximizes or minimizes. Only the parameter that
// belongs to Kind is meaningful; construct values with the helper functions.
type Objective struct {
	Kind             Kind
	RiskFreeRate     float64
	RiskAversion     float64
	TargetVolatility float64
	TargetReturn     float64
}

// MaxSharpe maximizes (return - rf) / volatility
func MaxSharpe(riskFreeRate float64) Objective {
	return Objective{Kind: KindMaxSharpe, RiskFreeRate: riskFreeRate}
}

// MaxQuadraticUtility maximizes return - 0.5 * delta * variance
func MaxQuadraticUtility(riskAversion float64) Objective {
	return Objective{Kind: KindMaxQuadraticUtility, RiskAversion: riskAversion}
}

// EfficientRisk maximizes return with volatility at most target
func EfficientRisk(targetVolatility float64) Objective {
	return Objective{Kind: KindEfficientRisk, TargetVolatility: targetVolatility}
}

// EfficientReturn minimizes volatility with return at least target
func EfficientReturn(targetReturn float64) Objective {
	return Objective{Kind: KindEfficientReturn, TargetReturn: targetReturn}
}

// MinVolatility minimizes variance
func MinVolatility() Objective {
	return Objective{Kind: KindMinVolatility}
}

// Params are the optional objective parameters as they arrive from a request
type Params struct {
	RiskFreeRate     *float64 `json:"rf,omitempty"`
	RiskAversion     *float64 `json:"risk_aversion,omitempty"`
	TargetVolatility *float64 `json:"target_volatility,omitempty"`
	TargetReturn     *float64 `json:"target_return,omitempty"`
}

// ParseObjective maps an objective name onto an Objective. Missing risk free rate and
// risk aversion take their defaults; a missing target is an error.
func ParseObjective(name string, p Params) (Objective, error) {
	var obj Objective
	switch name {
	case "max_sharpe":
		rf := DefaultRiskFreeRate
		if p.RiskFreeRate != nil {
			rf = *p.RiskFreeRate
		}
		obj = MaxSharpe(rf)
	case "max_quadratic_utility":
		delta := DefaultRiskAversion
		if p.RiskAversion != nil {
			delta = *p.RiskAversion
		}
		obj = MaxQuadraticUtility(delta)
	case "efficient_risk":
		if p.TargetVolatility == nil {
			return Objective{}, fmt.Errorf("%w: efficient_risk requires target_volatility", ErrInvalidParameter)
		}
		obj = EfficientRisk(*p.TargetVolatility)
	case "efficient_return":
		if p.TargetReturn == nil {
			return Objective{}, fmt.Errorf("%w: efficient_return requires target_return", ErrInvalidParameter)
		}
		obj = EfficientReturn(*p.TargetReturn)
	case "min_volatility":
		obj = MinVolatility()
	default:
		return Objective{}, fmt.Errorf("%w: %q", ErrUnknownObjective, name)
	}

	return obj, obj.Validate()
}

// Validate checks the parameter that belongs to the objective kind
func (o Objective) Validate() error {
	switch o.Kind {
	case KindMaxSharpe:
		if !isFinite(o.RiskFreeRate) {
			return fmt.Errorf("%w: risk free rate must be finite", ErrInvalidParameter)
		}
	case KindMaxQuadraticUtility:
		if !isFinite(o.RiskAversion) || o.RiskAversion <= 0 {
			return fmt.Errorf("%w: risk aversion must be positive", ErrInvalidParameter)
		}
	case KindEfficientRisk:
		if !isFinite(o.TargetVolatility) || o.TargetVolatility <= 0 {
			return fmt.Errorf("%w: target volatility must be positive", ErrInvalidParameter)
		}
	case KindEfficientReturn:
		if !isFinite(o.TargetReturn) {
			return fmt.Errorf("%w: target return must be finite", ErrInvalidParameter)
		}
	case KindMinVolatility:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownObjective, o.Kind)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
