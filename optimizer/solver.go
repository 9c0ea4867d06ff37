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
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	maxIterations     = 20000
	convergenceTol    = 1e-11
	projectionBisects = 200
)

// quadratic is f(w) = 0.5 w'Pw + q'w over {sum(w) = 1, lb <= w <= ub}
type quadratic struct {
	P      *mat.SymDense
	q      []float64
	lb, ub float64
}

func (qp *quadratic) value(w []float64) float64 {
	x := mat.NewVecDense(len(w), w)
	return 0.5*mat.Inner(x, qp.P, x) + floats.Dot(qp.q, w)
}

func (qp *quadratic) gradient(dst, w []float64) {
	d := mat.NewVecDense(len(dst), dst)
	d.MulVec(qp.P, mat.NewVecDense(len(w), w))
	floats.Add(dst, qp.q)
}

// lipschitz returns the largest eigenvalue of P
func lipschitz(p *mat.SymDense) float64 {
	var es mat.EigenSym
	if ok := es.Factorize(p, false); !ok {
		// fall back to the Frobenius norm, an upper bound of the spectral norm
		return mat.Norm(p, 2)
	}
	return floats.Max(es.Values(nil))
}

// solve minimizes the quadratic with accelerated projected gradient (FISTA with
// function value restart). start may be nil.
func (qp *quadratic) solve(start []float64) []float64 {
	n := len(qp.q)
	lip := lipschitz(qp.P)
	if lip <= 1e-14 {
		return linearMin(qp.q, qp.lb, qp.ub)
	}
	step := 1.0 / lip

	x := make([]float64, n)
	if start != nil {
		copy(x, start)
	} else {
		for idx := range x {
			x[idx] = 1.0 / float64(n)
		}
	}
	x = project(x, qp.lb, qp.ub)

	y := make([]float64, n)
	copy(y, x)
	grad := make([]float64, n)
	next := make([]float64, n)
	t := 1.0
	fx := qp.value(x)
	restarted := false

	for iter := 0; iter < maxIterations; iter++ {
		qp.gradient(grad, y)
		for idx := range next {
			next[idx] = y[idx] - step*grad[idx]
		}
		next = project(next, qp.lb, qp.ub)

		fNext := qp.value(next)
		if fNext > fx+1e-15*math.Max(1, math.Abs(fx)) {
			if restarted {
				// a plain gradient step no longer descends
				break
			}
			// momentum overshoot: restart from the last iterate
			t = 1.0
			copy(y, x)
			restarted = true
			continue
		}
		restarted = false

		delta := 0.0
		for idx := range next {
			delta = math.Max(delta, math.Abs(next[idx]-x[idx]))
		}

		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		beta := (t - 1) / tNext
		for idx := range y {
			y[idx] = next[idx] + beta*(next[idx]-x[idx])
		}

		copy(x, next)
		fx = fNext
		t = tNext

		if delta < convergenceTol {
			break
		}
	}

	return x
}

// project returns the Euclidean projection of v onto {sum(w) = 1, lb <= w <= ub}.
// The projection is clip(v - tau, lb, ub) with tau chosen so the weights sum to 1.
func project(v []float64, lb, ub float64) []float64 {
	n := float64(len(v))
	res := make([]float64, len(v))
	if len(v) == 0 {
		return res
	}

	sumAt := func(tau float64) float64 {
		s := 0.0
		for _, x := range v {
			s += math.Min(ub, math.Max(lb, x-tau))
		}
		return s
	}

	// at tauLo every weight is at ub, at tauHi every weight is at lb
	tauLo := floats.Min(v) - ub
	tauHi := floats.Max(v) - lb
	if n*ub < 1 || n*lb > 1 {
		// empty feasible set; callers check bounds before solving
		return res
	}

	for iter := 0; iter < projectionBisects && tauHi-tauLo > 1e-15; iter++ {
		mid := (tauLo + tauHi) / 2
		if sumAt(mid) > 1 {
			tauLo = mid
		} else {
			tauHi = mid
		}
	}
	tau := (tauLo + tauHi) / 2

	for idx, x := range v {
		res[idx] = math.Min(ub, math.Max(lb, x-tau))
	}

	// spread the rounding residual over the weights strictly inside the bounds
	residual := 1 - floats.Sum(res)
	free := 0
	for _, w := range res {
		if w > lb && w < ub {
			free++
		}
	}
	if free > 0 {
		for idx, w := range res {
			if w > lb && w < ub {
				res[idx] += residual / float64(free)
			}
		}
	}

	return res
}

// linearMin minimizes q'w over {sum(w) = 1, lb <= w <= ub} by filling the cheapest
// coordinates first
func linearMin(q []float64, lb, ub float64) []float64 {
	n := len(q)
	w := make([]float64, n)
	for idx := range w {
		w[idx] = lb
	}

	order := make([]int, n)
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(i, j int) bool { return q[order[i]] < q[order[j]] })

	remaining := 1 - float64(n)*lb
	for _, idx := range order {
		if remaining <= 0 {
			break
		}
		add := math.Min(ub-lb, remaining)
		w[idx] += add
		remaining -= add
	}

	return w
}
