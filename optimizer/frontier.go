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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	maxMultiplier     = 1e12
	multiplierBisects = 80
	goldenIterations  = 60
	returnTolerance   = 1e-8
	varianceTolerance = 1e-8
)

// problem holds the inputs shared by every objective
type problem struct {
	n      int
	mu     []float64
	cov    *mat.SymDense
	gamma  float64
	lb, ub float64
}

func newProblem(mu []float64, cov mat.Symmetric, c Constraints) *problem {
	n := len(mu)
	p := &problem{
		n:     n,
		mu:    mu,
		cov:   mat.NewSymDense(n, nil),
		gamma: c.Gamma,
	}
	p.cov.CopySym(cov)
	p.lb, p.ub = c.Bounds()
	return p
}

// riskMatrix returns a*cov + b*I
func (p *problem) riskMatrix(a, b float64) *mat.SymDense {
	m := mat.NewSymDense(p.n, nil)
	m.ScaleSym(a, p.cov)
	for ii := 0; ii < p.n; ii++ {
		m.SetSym(ii, ii, m.At(ii, ii)+b)
	}
	return m
}

func (p *problem) ret(w []float64) float64 {
	return floats.Dot(p.mu, w)
}

func (p *problem) variance(w []float64) float64 {
	x := mat.NewVecDense(len(w), w)
	return mat.Inner(x, p.cov, x)
}

// minVolatility minimizes w'Σw + γ||w||²
func (p *problem) minVolatility() []float64 {
	qp := &quadratic{P: p.riskMatrix(2, 2*p.gamma), q: make([]float64, p.n), lb: p.lb, ub: p.ub}
	return qp.solve(nil)
}

// quadraticUtility minimizes 0.5δ w'Σw - μ'w + γ||w||²
func (p *problem) quadraticUtility(delta float64) []float64 {
	q := make([]float64, p.n)
	floats.ScaleTo(q, -1, p.mu)
	qp := &quadratic{P: p.riskMatrix(delta, 2*p.gamma), q: q, lb: p.lb, ub: p.ub}
	return qp.solve(nil)
}

// returnTradeoff minimizes w'Σw + γ||w||² - λ μ'w
func (p *problem) returnTradeoff(lambda float64, start []float64) []float64 {
	q := make([]float64, p.n)
	floats.ScaleTo(q, -lambda, p.mu)
	qp := &quadratic{P: p.riskMatrix(2, 2*p.gamma), q: q, lb: p.lb, ub: p.ub}
	return qp.solve(start)
}

// riskTradeoff minimizes -μ'w + γ||w||² + ν w'Σw
func (p *problem) riskTradeoff(nu float64, start []float64) []float64 {
	q := make([]float64, p.n)
	floats.ScaleTo(q, -1, p.mu)
	qp := &quadratic{P: p.riskMatrix(2*nu, 2*p.gamma), q: q, lb: p.lb, ub: p.ub}
	return qp.solve(start)
}

// efficientReturn finds the smallest multiplier λ whose solution earns at least target
func (p *problem) efficientReturn(target float64) ([]float64, error) {
	meets := func(w []float64) bool {
		return p.ret(w) >= target-returnTolerance
	}

	best := p.returnTradeoff(0, nil)
	if meets(best) {
		return best, nil
	}

	lo, hi := 0.0, 1.0
	for {
		cand := p.returnTradeoff(hi, best)
		if meets(cand) {
			best = cand
			break
		}
		lo = hi
		hi *= 2
		if hi > maxMultiplier {
			return nil, fmt.Errorf("%w: target return %.6f cannot be reached", ErrInfeasibleProblem, target)
		}
	}

	for iter := 0; iter < multiplierBisects && hi-lo > 1e-10*hi; iter++ {
		mid := (lo + hi) / 2
		cand := p.returnTradeoff(mid, best)
		if meets(cand) {
			hi, best = mid, cand
		} else {
			lo = mid
		}
	}

	return best, nil
}

// efficientRisk finds the smallest multiplier ν whose solution has variance at most target²
func (p *problem) efficientRisk(targetVol float64) ([]float64, error) {
	target := targetVol * targetVol
	fits := func(w []float64) bool {
		return p.variance(w) <= target*(1+varianceTolerance)
	}

	// the least risky portfolio ignores the regularization term
	unregularized := &problem{n: p.n, mu: p.mu, cov: p.cov, lb: p.lb, ub: p.ub}
	floor := unregularized.minVolatility()
	if !fits(floor) {
		return nil, fmt.Errorf("%w: minimum achievable volatility is %.6f, target is %.6f",
			ErrInfeasibleProblem, math.Sqrt(p.variance(floor)), targetVol)
	}

	best := p.riskTradeoff(0, nil)
	if fits(best) {
		return best, nil
	}

	lo, hi := 0.0, 1.0
	for {
		cand := p.riskTradeoff(hi, best)
		if fits(cand) {
			best = cand
			break
		}
		lo = hi
		hi *= 2
		if hi > maxMultiplier {
			// the target sits on the minimum variance portfolio
			return floor, nil
		}
	}

	for iter := 0; iter < multiplierBisects && hi-lo > 1e-10*hi; iter++ {
		mid := (lo + hi) / 2
		cand := p.riskTradeoff(mid, best)
		if fits(cand) {
			hi, best = mid, cand
		} else {
			lo = mid
		}
	}

	return best, nil
}

func (p *problem) sharpe(w []float64, rf float64) float64 {
	vol := math.Sqrt(math.Max(p.variance(w), 0))
	excess := p.ret(w) - rf
	if vol < 1e-12 {
		if excess > 0 {
			return math.Inf(1)
		}
		return math.Inf(-1)
	}
	return excess / vol
}

// maxReturn is the portfolio with the highest return the bounds allow
func (p *problem) maxReturn() []float64 {
	q := make([]float64, p.n)
	floats.ScaleTo(q, -1, p.mu)
	return linearMin(q, p.lb, p.ub)
}

// maxSharpe runs a golden-section search over target returns along the efficient
// frontier between the minimum volatility portfolio and the highest return the
// bounds allow. With shorts that can lie above every single asset's return.
func (p *problem) maxSharpe(rf float64) ([]float64, error) {
	topW := p.maxReturn()
	hi := p.ret(topW)
	if hi <= rf {
		return nil, fmt.Errorf("%w: no portfolio has an expected return above the risk free rate %.4f", ErrInfeasibleProblem, rf)
	}

	bestW := p.returnTradeoff(0, nil)
	bestS := p.sharpe(bestW, rf)

	lo := p.ret(bestW)
	if hi-lo <= returnTolerance {
		return bestW, nil
	}

	type point struct {
		w []float64
		s float64
	}
	// a target the solver cannot reach narrows the search instead of failing it
	eval := func(target float64) point {
		w, err := p.efficientReturn(target)
		if err != nil {
			return point{s: math.Inf(-1)}
		}
		return point{w: w, s: p.sharpe(w, rf)}
	}

	invPhi := (math.Sqrt(5) - 1) / 2
	c := hi - invPhi*(hi-lo)
	d := lo + invPhi*(hi-lo)
	pc, pd := eval(c), eval(d)

	for iter := 0; iter < goldenIterations && hi-lo > returnTolerance; iter++ {
		if pc.s > pd.s {
			hi, d, pd = d, c, pc
			c = hi - invPhi*(hi-lo)
			pc = eval(c)
		} else {
			lo, c, pc = c, d, pd
			d = lo + invPhi*(hi-lo)
			pd = eval(d)
		}
	}

	for _, pt := range []point{pc, pd} {
		if pt.w != nil && pt.s > bestS {
			bestW, bestS = pt.w, pt.s
		}
	}

	// the top of the frontier is a candidate as well
	if s := p.sharpe(topW, rf); s > bestS {
		bestW = topW
	}

	return bestW, nil
}
