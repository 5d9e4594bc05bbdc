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
	"math/rand"
	"testing"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"
)

// denseSystem is a linearSystem backed by a dense matrix.
type denseSystem struct{ a *mat.Dense }

func (s denseSystem) size() int {
	r, _ := s.a.Dims()
	return r
}

func (s denseSystem) apply(x, y []float64) error {
	n := s.size()
	yv := mat.NewVecDense(n, y)
	yv.MulVec(s.a, mat.NewVecDense(n, x))
	return nil
}

func randomSPD(rng *rand.Rand, n int) *mat.Dense {
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, rng.NormFloat64())
		}
	}
	a := mat.NewDense(n, n, nil)
	a.Mul(b.T(), b)
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)+float64(n))
	}
	return a
}

func TestPCG(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	const n = 20
	a := randomSPD(rng, n)
	b := make([]float64, n)
	for i := range b {
		b[i] = rng.NormFloat64()
	}
	var want mat.VecDense
	if err := want.SolveVec(a, mat.NewVecDense(n, b)); err != nil {
		t.Fatal(err)
	}
	diag := make(Jacobi, n)
	for i := range diag {
		diag[i] = a.At(i, i)
	}
	for name, pre := range map[string]Preconditioner{"identity": Identity{}, "jacobi": diag} {
		t.Run(name, func(t *testing.T) {
			s := pcgSolver{comm: Serial{}, eps: 1e-13, maxIters: 200, resNorm: true}
			x := make([]float64, n)
			res, err := s.solve(denseSystem{a}, pre, b, x)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Converged {
				t.Fatalf("did not converge: %+v", res)
			}
			if res.Iterations > n+5 {
				t.Errorf("took %d iterations", res.Iterations)
			}
			for i := range x {
				if absDifferent(x[i], want.AtVec(i), 1e-9) {
					t.Errorf("x[%d]: have %g, want %g", i, x[i], want.AtVec(i))
				}
			}
		})
	}
}

func TestPCGIterationCap(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const n = 30
	a := randomSPD(rng, n)
	b := make([]float64, n)
	for i := range b {
		b[i] = rng.NormFloat64()
	}
	s := pcgSolver{comm: Serial{}, eps: 1e-14, maxIters: 2, resNorm: true}
	res, err := s.solve(denseSystem{a}, Identity{}, b, make([]float64, n))
	if err != nil {
		t.Fatal(err)
	}
	if res.Converged || res.Iterations != 2 {
		t.Errorf("have %+v, want 2 iterations without convergence", res)
	}
}

func TestPCGZeroSource(t *testing.T) {
	s := pcgSolver{comm: Serial{}, eps: 1e-10, maxIters: 10}
	x := []float64{3, 4}
	res, err := s.solve(denseSystem{mat.NewDense(2, 2, []float64{2, 0, 0, 2})}, Identity{}, []float64{0, 0}, x)
	if err != nil {
		t.Fatal(err)
	}
	if !res.ZeroSource || !res.Converged || res.Iterations != 0 {
		t.Errorf("result: %+v", res)
	}
	if x[0] != 0 || x[1] != 0 {
		t.Errorf("solution: %v", x)
	}
}

// A computational cell whose faces carry no free-surface conductance
// is solved in one iteration and keeps its right-hand side.
func TestFreeSurfaceUncoupled(t *testing.T) {
	m, err := Grid{Nx: 3, Ny: 3, Dx: 10, Dy: 10, DZ: []float64{1}, Depth: flatDepth(1),
		Cells: func(i int, c geom.Point) CellClass {
			if i == 4 {
				return ComputationalCell
			}
			return ElevationCell
		}}.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	c := DefaultConfig()
	c.Theta = 1
	d, err := New(m, c)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	st := d.State
	for _, i := range m.Cells(ElevationCell) {
		st.BoundaryH[i] = 0.3
	}
	d.theta = d.thetaAt(0)
	d.fac = c.Implicit.coefficients(d.theta)
	d.setFluxHeight()

	const center = 4
	var want float64
	for nf, j := range m.Faces[center] {
		v := 0.01 * float64((nf+1)*(nf+1))
		d.work.utmp.Set(v, j, 0)
		want -= c.Dt * m.Normal[center][nf] * m.Df[j] * v * st.DZF.At(j, 0)
	}
	want /= m.Area[center]
	if want == 0 {
		t.Fatal("the face velocities should give a net flux")
	}

	if err := d.solveFreeSurface(); err != nil {
		t.Fatal(err)
	}
	if d.lastH.Iterations != 1 || !d.lastH.Converged {
		t.Errorf("solve: %+v", d.lastH)
	}
	if absDifferent(st.H[center], want, 1e-14) {
		t.Errorf("elevation: have %g, want %g", st.H[center], want)
	}
	for _, i := range m.Cells(ElevationCell) {
		if st.H[i] != 0.3 {
			t.Errorf("elevation cell %d: have %g, want 0.3", i, st.H[i])
		}
	}
}

func TestFreeSurfaceSymmetric(t *testing.T) {
	m, err := Grid{Nx: 4, Ny: 3, Dx: 10, Dy: 15, DZ: UniformLayers(3, 3), Depth: flatDepth(3)}.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(m, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(4))
	for _, j := range m.Edges(Computational) {
		d.State.D[j] = 1 + rng.Float64()
	}
	d.fac = d.Config.Implicit.coefficients(0.6)
	d.freeSurfaceCoefficients()

	s := &freeSurfaceSystem{d: d, unknowns: d.part.Cells(ComputationalCell)}
	n := s.size()
	a := mat.NewDense(n, n, nil)
	x, y := make([]float64, n), make([]float64, n)
	for col := 0; col < n; col++ {
		for i := range x {
			x[i] = 0
		}
		x[col] = 1
		if err := s.apply(x, y); err != nil {
			t.Fatal(err)
		}
		a.SetCol(col, y)
	}
	for r := 0; r < n; r++ {
		var rowSum float64
		for col := 0; col < n; col++ {
			rowSum += a.At(r, col)
			if absDifferent(a.At(r, col), a.At(col, r), 1e-12) {
				t.Errorf("A[%d][%d]=%g but A[%d][%d]=%g", r, col, a.At(r, col), col, r, a.At(col, r))
			}
		}
		// Rows sum to the cell area in a closed domain.
		cell := s.unknowns[r]
		if different(rowSum, m.Area[cell], 1e-10) {
			t.Errorf("row %d sums to %g, want %g", r, rowSum, m.Area[cell])
		}
	}
}
