/*
Copyright © 2026 the suntans authors.
This file is part of suntans.

suntans is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

suntans is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with suntans.  If not, see <http://www.gnu.org/licenses/>.
*/

package suntans

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// linearSystem is a symmetric positive-definite operator on a packed
// vector of the unknowns owned by one rank.
type linearSystem interface {
	size() int

	// apply sets y = A x. It may exchange ghost values.
	apply(x, y []float64) error
}

// Preconditioner approximately solves M z = r for a packed residual r.
type Preconditioner interface {
	Precondition(r, z []float64)
}

// Identity is the Preconditioner that does nothing.
type Identity struct{}

// Precondition implements Preconditioner.
func (Identity) Precondition(r, z []float64) { copy(z, r) }

// Jacobi preconditions with the inverse of a diagonal.
type Jacobi []float64

// Precondition implements Preconditioner.
func (j Jacobi) Precondition(r, z []float64) {
	for i, d := range j {
		z[i] = r[i] / d
	}
}

// PCGResult summarizes a conjugate-gradient solve.
type PCGResult struct {
	Iterations int
	Residual   float64 // final residual norm, relative if ResNorm is set
	Converged  bool
	ZeroSource bool // the right-hand side was zero
}

// pcgSolver holds the parameters and scratch space of a preconditioned
// conjugate-gradient solver distributed across ranks.
type pcgSolver struct {
	comm     Communicator
	eps      float64
	maxIters int
	resNorm  bool

	r, z, p, rtmp []float64
}

func (s *pcgSolver) dot(x, y []float64) (float64, error) {
	return s.comm.AllReduceSum(floats.Dot(x, y))
}

func grow(v []float64, n int) []float64 {
	if cap(v) < n {
		return make([]float64, n)
	}
	return v[:n]
}

// solve solves A x = b starting from x = 0. It stops when the residual
// norm falls below the tolerance or after the iteration cap; hitting the
// cap is reported in the result rather than as an error.
func (s *pcgSolver) solve(a linearSystem, m Preconditioner, b, x []float64) (PCGResult, error) {
	n := a.size()
	s.r, s.z, s.p, s.rtmp = grow(s.r, n), grow(s.z, n), grow(s.p, n), grow(s.rtmp, n)
	r, z, p, rtmp := s.r, s.z, s.p, s.rtmp
	for i := range x[:n] {
		x[i] = 0
	}
	copy(r, b[:n])
	m.Precondition(r, rtmp)
	copy(p, rtmp)

	alpha, err := s.dot(r, rtmp)
	if err != nil {
		return PCGResult{}, err
	}
	eps, err := s.dot(r, r)
	if err != nil {
		return PCGResult{}, err
	}
	if eps == 0 {
		return PCGResult{Converged: true, ZeroSource: true}, nil
	}
	eps0 := 1.
	if s.resNorm {
		eps0 = eps
	}
	res := PCGResult{Residual: math.Sqrt(eps / eps0)}
	for it := 0; it < s.maxIters; it++ {
		if err := a.apply(p, z); err != nil {
			return res, err
		}
		pz, err := s.dot(p, z)
		if err != nil {
			return res, err
		}
		if pz == 0 {
			break
		}
		nu := alpha / pz
		floats.AddScaled(x[:n], nu, p)
		floats.AddScaled(r, -nu, z)
		m.Precondition(r, rtmp)
		alphaNew, err := s.dot(r, rtmp)
		if err != nil {
			return res, err
		}
		floats.Scale(alphaNew/alpha, p)
		floats.Add(p, rtmp)
		alpha = alphaNew
		if eps, err = s.dot(r, r); err != nil {
			return res, err
		}
		res.Iterations = it + 1
		res.Residual = math.Sqrt(eps / eps0)
		if res.Residual < s.eps || alpha == 0 {
			res.Converged = true
			return res, nil
		}
	}
	return res, nil
}
