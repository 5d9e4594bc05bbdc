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
	"fmt"
)

// TriSolve solves the tridiagonal system with sub-diagonal a, diagonal
// b and super-diagonal c for right-hand side d, writing the solution to
// x. a[0] and c[n-1] are ignored. gamma is scratch space of length n; it
// is allocated if nil. The system is expected to be diagonally dominant
// with a positive diagonal, so no pivoting is done.
func TriSolve(a, b, c, d, x, gamma []float64) error {
	n := len(b)
	if len(a) < n || len(c) < n || len(d) < n || len(x) < n {
		return fmt.Errorf("suntans: %w: mismatched lengths", ErrTridiagonal)
	}
	if n == 0 {
		return nil
	}
	if len(gamma) < n {
		gamma = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if !(b[i] > 0) || !finite(b[i]) {
			return fmt.Errorf("suntans: %w: diagonal %d is %g", ErrTridiagonal, i, b[i])
		}
	}
	beta := b[0]
	x[0] = d[0] / beta
	for i := 1; i < n; i++ {
		gamma[i] = c[i-1] / beta
		beta = b[i] - a[i]*gamma[i]
		if !(beta > 0) || !finite(beta) {
			return fmt.Errorf("suntans: %w: pivot %d is %g", ErrTridiagonal, i, beta)
		}
		x[i] = (d[i] - a[i]*x[i-1]) / beta
	}
	for i := n - 2; i >= 0; i-- {
		x[i] -= gamma[i+1] * x[i+1]
	}
	for i := 0; i < n; i++ {
		if !finite(x[i]) {
			return fmt.Errorf("suntans: %w: solution %d is %g", ErrTridiagonal, i, x[i])
		}
	}
	return nil
}
