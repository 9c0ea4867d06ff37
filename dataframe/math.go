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

package dataframe

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LogReturns computes ln(p[t] / p[t-1]) for every column and returns a new dataframe.
// The first row has no predecessor and is dropped.
func (df *DataFrame) LogReturns() *DataFrame {
	return df.periodChange(func(prev, cur float64) float64 {
		return math.Log(cur / prev)
	})
}

// PctChange computes p[t] / p[t-1] - 1 for every column and returns a new dataframe.
// The first row has no predecessor and is dropped.
func (df *DataFrame) PctChange() *DataFrame {
	return df.periodChange(func(prev, cur float64) float64 {
		return cur/prev - 1
	})
}

func (df *DataFrame) periodChange(fn func(prev, cur float64) float64) *DataFrame {
	res := &DataFrame{
		ColNames: df.ColNames,
		Vals:     make([][]float64, df.ColCount()),
	}

	if df.Len() < 2 {
		res.Dates = []time.Time{}
		for colIdx := range res.Vals {
			res.Vals[colIdx] = []float64{}
		}
		return res
	}

	res.Dates = df.Dates[1:]
	for colIdx, col := range df.Vals {
		out := make([]float64, len(col)-1)
		for rowIdx := 1; rowIdx < len(col); rowIdx++ {
			out[rowIdx-1] = fn(col[rowIdx-1], col[rowIdx])
		}
		res.Vals[colIdx] = out
	}

	return res
}

// MulScalar multiplies all columns in dataframe df by the scalar and returns a new dataframe
func (df *DataFrame) MulScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for _, col := range df.Vals {
		floats.Scale(scalar, col)
	}
	return df
}

// CumSum computes the running sum of every column and returns a new dataframe
func (df *DataFrame) CumSum() *DataFrame {
	df2 := df.Copy()
	for idx, col := range df.Vals {
		floats.CumSum(df2.Vals[idx], col)
	}
	return df2
}

// ColMeans returns the arithmetic mean of every column
func (df *DataFrame) ColMeans() []float64 {
	res := make([]float64, df.ColCount())
	for idx, col := range df.Vals {
		res[idx] = stat.Mean(col, nil)
	}
	return res
}

// Matrix returns the values as a rows x columns dense matrix
func (df *DataFrame) Matrix() *mat.Dense {
	if df.Len() == 0 || df.ColCount() == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(df.Len(), df.ColCount(), nil)
	for colIdx, col := range df.Vals {
		m.SetCol(colIdx, col)
	}
	return m
}

// Covariance returns the sample (n-1) covariance matrix of the columns. At least two
// rows are required.
func (df *DataFrame) Covariance() (*mat.SymDense, error) {
	if df.Len() < 2 {
		return nil, fmt.Errorf("%w: covariance needs at least 2 rows, have %d", ErrLengthMismatch, df.Len())
	}
	cov := mat.NewSymDense(df.ColCount(), nil)
	stat.CovarianceMatrix(cov, df.Matrix(), nil)
	return cov, nil
}

// WeightedSum collapses the dataframe into a single column `name` holding
// ∑ weights[col] * df[col] per row. Columns without a weight are ignored.
func (df *DataFrame) WeightedSum(name string, weights map[string]float64) *DataFrame {
	sum := make([]float64, df.Len())
	for colIdx, colName := range df.ColNames {
		w, ok := weights[colName]
		if !ok || w == 0 {
			continue
		}
		floats.AddScaled(sum, w, df.Vals[colIdx])
	}
	return &DataFrame{
		Dates:    df.Dates,
		ColNames: []string{name},
		Vals:     [][]float64{sum},
	}
}
