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

	"github.com/GaryBoone/GoStats/stats"
)

// freeSurfaceSystem is the symmetric positive-definite free-surface
// system over the owned computational cells:
//
//	coef_i h_i - Σ_faces fcoef_i,f h_nb = rhs_i
//
// with coef_i = A_i + Σ_faces fcoef_i,f.
type freeSurfaceSystem struct {
	d        *Model
	unknowns []int
}

func (s *freeSurfaceSystem) size() int { return len(s.unknowns) }

func (s *freeSurfaceSystem) apply(x, y []float64) error {
	w, m := &s.d.work, s.d.Mesh
	for idx, i := range s.unknowns {
		w.hfull[i] = x[idx]
	}
	if err := s.d.exchangeCells(w.hfull); err != nil {
		return err
	}
	for idx, i := range s.unknowns {
		v := w.hcoef[i] * w.hfull[i]
		for nf, nb := range m.Neigh[i] {
			if c, ok := nb.Cell(); ok && m.CellClass[c] == ComputationalCell {
				v -= w.hfcoef[i][nf] * w.hfull[c]
			}
		}
		y[idx] = v
	}
	return nil
}

// freeSurfaceRHS sets the right-hand side of the free-surface system
// for each owned computational cell: the current volume less the
// flux divergence of the provisional and old velocities.
func (d *Model) freeSurfaceRHS() {
	m, st, w := d.Mesh, d.State, &d.work
	fac, dt := d.fac, d.Config.Dt
	for _, i := range d.part.Cells(ComputationalCell) {
		sum := 0.
		for nf, j := range m.Faces[i] {
			u, uold, uold2 := w.utmp.Row(j), st.UOld.Row(j), st.UOld2.Row(j)
			dzf := st.DZF.Row(j)
			var flux float64
			for k := st.Etop[j]; k < m.Nke[j]; k++ {
				flux += (fac[0]*u[k] + fac[1]*uold[k] + fac[2]*uold2[k]) * dzf[k]
			}
			sum += m.Normal[i][nf] * m.Df[j] * flux
		}
		w.htmp[i] = m.Area[i]*st.H[i] - dt*sum
	}
}

// freeSurfaceCoefficients sets the face and diagonal coefficients of
// the free-surface system.
func (d *Model) freeSurfaceCoefficients() {
	m, st, w, c := d.Mesh, d.State, &d.work, d.Config
	f := c.Gravity * (d.fac[0] * c.Dt) * (d.fac[0] * c.Dt)
	for _, i := range d.part.Cells(ComputationalCell) {
		w.hcoef[i] = m.Area[i]
		for nf, j := range m.Faces[i] {
			w.hfcoef[i][nf] = 0
			if m.EdgeClass[j] == Computational {
				w.hfcoef[i][nf] = f * st.D[j] * m.Df[j] / m.Dg[j]
				w.hcoef[i] += w.hfcoef[i][nf]
			}
		}
	}
}

// solveFreeSurface solves for the new free surface. Specified-elevation
// cells take their prescribed values and enter the system as known
// boundary values.
func (d *Model) solveFreeSurface() error {
	m, st, w := d.Mesh, d.State, &d.work
	d.freeSurfaceRHS()
	copy(st.HOld, st.H)
	for _, i := range d.part.Cells(ElevationCell) {
		st.H[i] = st.BoundaryH[i]
	}
	if err := d.exchangeCells(st.H); err != nil {
		return err
	}
	d.freeSurfaceCoefficients()

	unknowns := d.part.Cells(ComputationalCell)
	b := make([]float64, len(unknowns))
	for idx, i := range unknowns {
		b[idx] = w.htmp[i]
		for nf, nb := range m.Neigh[i] {
			if c, ok := nb.Cell(); ok && m.CellClass[c] == ElevationCell {
				b[idx] += w.hfcoef[i][nf] * st.H[c]
			}
		}
	}
	var pre Preconditioner = Identity{}
	if d.Config.HPrecond {
		diag := make(Jacobi, len(unknowns))
		for idx, i := range unknowns {
			diag[idx] = w.hcoef[i]
		}
		pre = diag
	}
	x := make([]float64, len(unknowns))
	res, err := d.hSolver.solve(&freeSurfaceSystem{d: d, unknowns: unknowns}, pre, b, x)
	if err != nil {
		return fmt.Errorf("suntans: free-surface solve: %w", err)
	}
	d.recordSolve(&d.HStats, &d.lastH, res, "free-surface")
	for idx, i := range unknowns {
		st.H[i] = x[idx]
	}
	return d.exchangeCells(st.H)
}

// recordSolve logs the outcome of a solve and accumulates its
// iteration count.
func (d *Model) recordSolve(s *stats.Stats, last *PCGResult, res PCGResult, name string) {
	*last = res
	s.Update(float64(res.Iterations))
	switch {
	case res.ZeroSource:
		d.Logger.Debugf("step %d: %s solve has a zero source", d.State.N, name)
	case !res.Converged && d.comm.Rank() == 0:
		d.Logger.Warnf("step %d: %s solve did not converge after %d iterations (residual %.3g)",
			d.State.N, name, res.Iterations, res.Residual)
	}
}
