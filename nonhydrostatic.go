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
	"math"
)

// predictVerticalVelocity computes the provisional vertical velocity of
// the owned computational cells from the old non-hydrostatic pressure,
// the Adams-Bashforth extrapolated advection and lateral diffusion, and
// implicit vertical diffusion. The result replaces W.
func (d *Model) predictVerticalVelocity() error {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	fab, dt := d.fab, c.Dt
	cells := d.part.Cells(ComputationalCell)

	if st.N == 1 || c.WetDry {
		st.CnW.Zero()
		st.CnW2.Zero()
	}
	for _, i := range cells {
		wt, wi := w.wtmp.Row(i), st.W.Row(i)
		cn, cn2 := st.CnW.Row(i), st.CnW2.Row(i)
		q, dzz := st.Q.Row(i), st.DZZ.Row(i)
		ctop, nk := st.Ctop[i], m.Nk[i]
		for k := ctop; k < nk; k++ {
			wt[k] = wi[k] + fab[1]*cn[k] + fab[2]*cn2[k]
			cn2[k] = cn[k]
			cn[k] = 0
		}
		for k := ctop + 1; k < nk; k++ {
			wt[k] -= 2 * dt / (dzz[k-1] + dzz[k]) * (q[k-1] - q[k])
		}
		wt[ctop] += 2 * dt / dzz[ctop] * q[ctop]
	}

	// Cell-centered vertical velocity for the horizontal fluxes.
	for _, cl := range [][]int{cells, d.part.Cells(ElevationCell)} {
		for _, i := range cl {
			wi, wc := st.W.Row(i), w.wc.Row(i)
			for k := range wc {
				wc[k] = 0.5 * (wi[k] + wi[k+1])
			}
		}
	}
	if err := d.exchangeCellFields(w.wc); err != nil {
		return err
	}

	w.stmp.Zero()
	if c.Nonlinear {
		for _, i := range cells {
			for _, j := range m.Faces[i] {
				ut := w.ut.Row(j)
				for k := st.Etop[j]; k < m.Nke[j]; k++ {
					ut[k] = d.faceValue(w.wc, j, k)
				}
			}
		}
		d.advectCellField(w.stmp)
		for _, i := range cells {
			wi, s, dzz := st.W.Row(i), w.stmp.Row(i), st.DZZ.Row(i)
			for k := st.Ctop[i]; k < m.Nk[i]; k++ {
				if dzz[k] > c.DryCellHeight {
					s[k] += (wi[k]*wi[k] - wi[k+1]*wi[k+1]) / dzz[k]
				}
			}
		}
	}
	for _, i := range cells {
		wi, s := st.W.Row(i), w.stmp.Row(i)
		ctop, nk := st.Ctop[i], m.Nk[i]
		for nf, j := range m.Faces[i] {
			f := m.Df[j] / m.Area[i]
			switch m.EdgeClass[j] {
			case Computational:
				nb, _ := m.Neigh[i][nf].Cell()
				wb := st.W.Row(nb)
				if c.NuH > 0 {
					for k := maxInt(ctop, st.Ctop[nb]); k < m.Nke[j]; k++ {
						s[k] -= 0.5 * c.NuH * (wb[k] - wi[k] + wb[k+1] - wi[k+1]) / m.Dg[j] * f
					}
				}
				if c.CdW > 0 {
					for k := maxInt(m.Nke[j], ctop); k < nk; k++ {
						wm := wi[k] + wi[k+1]
						s[k] += 0.25 * c.CdW * math.Abs(wm) * wm * f
					}
				}
			case NoSlipWall:
				for k := ctop; k < nk; k++ {
					s[k] += c.NuH * (wi[k] + wi[k+1]) / m.Dg[j] * f
				}
			}
		}
	}

	for _, i := range cells {
		wt, cn, s, dzz := w.wtmp.Row(i), st.CnW.Row(i), w.stmp.Row(i), st.DZZ.Row(i)
		ctop, nk := st.Ctop[i], m.Nk[i]
		for k := ctop + 1; k < nk; k++ {
			cn[k] -= dt * (dzz[k-1]*s[k-1] + dzz[k]*s[k]) / (dzz[k-1] + dzz[k])
		}
		cn[ctop] -= dt * s[ctop]
		for k := ctop; k < nk; k++ {
			wt[k] += fab[0] * cn[k]
		}
	}

	scratch := newColumnScratch(m.Nkmax)
	for _, i := range cells {
		if err := d.verticalDiffusionW(i, scratch); err != nil {
			return err
		}
	}
	return nil
}

// verticalDiffusionW solves the vertical diffusion of the provisional
// vertical velocity in cell i, with the viscosity split between time
// levels with the implicit weights, and stores the result in W.
func (d *Model) verticalDiffusionW(i int, s *columnScratch) error {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	ctop, nk := st.Ctop[i], m.Nk[i]
	wt, wi := w.wtmp.Row(i), st.W.Row(i)
	wold, wold2 := st.WOld.Row(i), st.WOld2.Row(i)
	dzz, nut := st.DZZ.Row(i), st.NuT.Row(i)
	n := nk - ctop
	if n == 1 {
		wi[ctop] = wt[ctop]
		return nil
	}
	dt, fac := c.Dt, d.fac
	a, b, cc, rhs := s.a[:n], s.b[:n], s.c[:n], s.rhs[:n]

	// ka couples w[k] to w[k-1] and kb couples it to w[k+1]. There is
	// no diffusive flux through the free surface and w vanishes at the
	// bottom.
	ka := func(k int) float64 {
		if k == ctop {
			return 0
		}
		return 2 * (c.Nu + nut[k-1]) / dzz[k-1] / (dzz[k] + dzz[k-1])
	}
	kb := func(k int) float64 {
		if k == ctop {
			return (c.Nu + nut[k]) / (dzz[k] * dzz[k])
		}
		return 2 * (c.Nu + nut[k]) / dzz[k] / (dzz[k] + dzz[k-1])
	}
	explicit := func(v []float64, k int) float64 {
		var up, down float64
		if k > ctop {
			up = v[k-1]
		}
		if k < nk-1 {
			down = v[k+1]
		}
		return ka(k)*(up-v[k]) + kb(k)*(down-v[k])
	}
	for r := 0; r < n; r++ {
		k := ctop + r
		rhs[r] = wt[k] + dt*(fac[1]*explicit(wold, k)+fac[2]*explicit(wold2, k))
		ak, bk := ka(k), kb(k)
		b[r] = 1 + dt*fac[0]*(ak+bk)
		a[r] = -dt * fac[0] * ak
		cc[r] = -dt * fac[0] * bk
	}
	cc[n-1] = 0
	if err := TriSolve(a, b, cc, rhs, s.x[:n], s.gamma); err != nil {
		return fmt.Errorf("cell %d: %w", i, err)
	}
	copy(wi[ctop:nk], s.x[:n])
	return nil
}

// nonhydrostaticSource sets the source of the pressure-correction
// equation in each owned computational cell layer: the divergence of
// the provisional velocity divided by the time step.
func (d *Model) nonhydrostaticSource() {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	dt := c.Dt
	for _, i := range d.part.Cells(ComputationalCell) {
		src, wi := w.qsrc.Row(i), st.W.Row(i)
		ctop, nk := st.Ctop[i], m.Nk[i]
		for k := range src {
			src[k] = 0
		}
		for k := ctop; k < nk; k++ {
			src[k] = m.Area[i] * (wi[k] - wi[k+1]) / dt
		}
		for nf, j := range m.Faces[i] {
			u, dzf := st.U.Row(j), st.DZF.Row(j)
			f := m.Df[j] * m.Normal[i][nf] / dt
			for k := maxInt(ctop, st.Etop[j]); k < m.Nke[j]; k++ {
				src[k] += u[k] * dzf[k] * f
			}
		}
	}
}

// pressureSystem is the symmetric positive-definite pressure-correction
// operator over the owned computational cell layers, packed cell by cell
// from the top layer down. The free surface is a zero-pressure boundary,
// the bottom and walls are zero-gradient boundaries, and specified-
// elevation cells hold zero pressure.
type pressureSystem struct {
	d        *Model
	cells    []int
	colStart []int // packed index of the top layer of each cell
	n        int
}

func newPressureSystem(d *Model) *pressureSystem {
	m, st := d.Mesh, d.State
	s := &pressureSystem{d: d, cells: d.part.Cells(ComputationalCell)}
	s.colStart = make([]int, len(s.cells)+1)
	for ci, i := range s.cells {
		s.colStart[ci] = s.n
		s.n += m.Nk[i] - st.Ctop[i]
	}
	s.colStart[len(s.cells)] = s.n
	return s
}

func (s *pressureSystem) size() int { return s.n }

// pack copies the layers of the owned cells from full into x.
func (s *pressureSystem) pack(full Layered, x []float64) {
	st := s.d.State
	for ci, i := range s.cells {
		row := full.Row(i)
		copy(x[s.colStart[ci]:s.colStart[ci+1]], row[st.Ctop[i]:])
	}
}

// unpack copies x into the layers of the owned cells of full and zeroes
// the layers above the top of each cell.
func (s *pressureSystem) unpack(x []float64, full Layered) {
	m, st := s.d.Mesh, s.d.State
	for ci, i := range s.cells {
		row := full.Row(i)
		for k := range row {
			row[k] = 0
		}
		copy(row[st.Ctop[i]:m.Nk[i]], x[s.colStart[ci]:s.colStart[ci+1]])
	}
}

// verticalRow returns the sub-diagonal, diagonal and super-diagonal of
// the vertical part of the operator in layer k of cell i.
func (s *pressureSystem) verticalRow(i, k int) (a, b, c float64) {
	m, st, vc := s.d.Mesh, s.d.State, s.d.work.qcoef.Row(i)
	ctop, nk := st.Ctop[i], m.Nk[i]
	switch {
	case nk-ctop == 1:
		return 0, 2 * vc[k], 0
	case k == ctop:
		return 0, 2*vc[k] + vc[k+1], -vc[k+1]
	case k == nk-1:
		return -vc[k], vc[k], 0
	}
	return -vc[k], vc[k] + vc[k+1], -vc[k+1]
}

func (s *pressureSystem) apply(x, y []float64) error {
	d := s.d
	m, st, full, qD := d.Mesh, d.State, d.work.qfull, d.work.qD
	s.unpack(x, full)
	if err := d.exchangeCellFields(full); err != nil {
		return err
	}
	for ci, i := range s.cells {
		xi := full.Row(i)
		ctop, nk := st.Ctop[i], m.Nk[i]
		yi := y[s.colStart[ci]:s.colStart[ci+1]]
		for k := ctop; k < nk; k++ {
			a, b, c := s.verticalRow(i, k)
			v := b * xi[k]
			if k > ctop {
				v += a * xi[k-1]
			}
			if k < nk-1 {
				v += c * xi[k+1]
			}
			yi[k-ctop] = v
		}
		for nf, j := range m.Faces[i] {
			if m.EdgeClass[j] != Computational || qD[j] == 0 {
				continue
			}
			nb, _ := m.Neigh[i][nf].Cell()
			xn := full.Row(nb)
			nbUnknown := m.CellClass[nb] == ComputationalCell
			dzf := st.DZF.Row(j)
			for k := maxInt(ctop, st.Etop[j]); k < m.Nke[j]; k++ {
				var xo float64
				if nbUnknown && k >= st.Ctop[nb] {
					xo = xn[k]
				}
				yi[k-ctop] += (xi[k] - xo) * dzf[k] * qD[j]
			}
		}
	}
	return nil
}

// diagonal returns the diagonal of the operator.
func (s *pressureSystem) diagonal() Jacobi {
	m, st, qD := s.d.Mesh, s.d.State, s.d.work.qD
	diag := make(Jacobi, s.n)
	for ci, i := range s.cells {
		ctop, nk := st.Ctop[i], m.Nk[i]
		di := diag[s.colStart[ci]:s.colStart[ci+1]]
		for k := ctop; k < nk; k++ {
			_, b, _ := s.verticalRow(i, k)
			di[k-ctop] = b
		}
		for _, j := range m.Faces[i] {
			if m.EdgeClass[j] != Computational || qD[j] == 0 {
				continue
			}
			dzf := st.DZF.Row(j)
			for k := maxInt(ctop, st.Etop[j]); k < m.Nke[j]; k++ {
				di[k-ctop] += dzf[k] * qD[j]
			}
		}
		for k := range di {
			if di[k] == 0 {
				di[k] = 1
			}
		}
	}
	return diag
}

// columnPreconditioner solves the vertical part of the pressure
// operator exactly in each column.
type columnPreconditioner struct {
	s       *pressureSystem
	scratch *columnScratch
}

// Precondition implements Preconditioner.
func (p columnPreconditioner) Precondition(r, z []float64) {
	s, sc := p.s, p.scratch
	m, st := s.d.Mesh, s.d.State
	for ci, i := range s.cells {
		lo, hi := s.colStart[ci], s.colStart[ci+1]
		n := hi - lo
		ctop := st.Ctop[i]
		a, b, c := sc.a[:n], sc.b[:n], sc.c[:n]
		for k := ctop; k < m.Nk[i]; k++ {
			a[k-ctop], b[k-ctop], c[k-ctop] = s.verticalRow(i, k)
		}
		if err := TriSolve(a, b, c, r[lo:hi], z[lo:hi], sc.gamma); err != nil {
			copy(z[lo:hi], r[lo:hi])
		}
	}
}

// pressureCoefficients sets the horizontal and vertical coupling of the
// pressure operator. The horizontal coupling is geometric. Edges with a
// single active layer are not corrected and do not couple.
func (d *Model) pressureCoefficients() error {
	m, st, w := d.Mesh, d.State, &d.work
	for _, j := range d.part.Edges(Computational) {
		w.qD[j] = 0
		if st.Etop[j] < m.Nke[j]-1 {
			w.qD[j] = m.Df[j] / m.Dg[j]
		}
	}
	for _, i := range d.part.Cells(ComputationalCell) {
		vc, dzz := w.qcoef.Row(i), st.DZZ.Row(i)
		ctop := st.Ctop[i]
		for k := range vc {
			vc[k] = 0
		}
		vc[ctop] = m.Area[i] / dzz[ctop]
		for k := ctop + 1; k < m.Nk[i]; k++ {
			vc[k] = 2 * m.Area[i] / (dzz[k] + dzz[k-1])
		}
	}
	return d.exchangeEdges(w.qD)
}

// solvePressure solves for the non-hydrostatic pressure correction
// and applies it to the velocities and pressure.
func (d *Model) solvePressure() error {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	d.nonhydrostaticSource()
	if err := d.pressureCoefficients(); err != nil {
		return err
	}

	s := newPressureSystem(d)
	b := make([]float64, s.n)
	s.pack(w.qsrc, b)
	for i := range b {
		b[i] = -b[i]
	}
	var pre Preconditioner
	switch c.QPrecond {
	case DiagonalPreconditioner:
		pre = s.diagonal()
	case ColumnPreconditioner:
		pre = columnPreconditioner{s: s, scratch: newColumnScratch(m.Nkmax)}
	default:
		pre = Identity{}
	}
	x := make([]float64, s.n)
	res, err := d.qSolver.solve(s, pre, b, x)
	if err != nil {
		return fmt.Errorf("suntans: pressure solve: %w", err)
	}
	d.recordSolve(&d.QStats, &d.lastQ, res, "pressure")
	s.unpack(x, w.qc)
	if err := d.exchangeCellFields(w.qc); err != nil {
		return err
	}
	d.correctNonhydrostatic()
	return d.exchangeCellFields(st.Q, st.W)
}

// correctNonhydrostatic applies the pressure correction to the
// horizontal and vertical velocities and adds it to the pressure.
func (d *Model) correctNonhydrostatic() {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	dt, qD := c.Dt, w.qD
	for _, j := range d.part.Edges(Computational) {
		if qD[j] == 0 || st.Etop[j] >= m.Nke[j]-1 {
			continue
		}
		nc1, nc2 := m.sides(j)
		u, q1, q2 := st.U.Row(j), w.qc.Row(nc1), w.qc.Row(nc2)
		for k := st.Etop[j]; k < m.Nke[j]; k++ {
			u[k] -= dt / m.Dg[j] * (q2[k] - q1[k])
		}
	}
	for _, i := range d.part.Cells(ComputationalCell) {
		wi, qc, q, dzz := st.W.Row(i), w.qc.Row(i), st.Q.Row(i), st.DZZ.Row(i)
		ctop, nk := st.Ctop[i], m.Nk[i]
		for k := ctop + 1; k < nk; k++ {
			wi[k] -= 2 * dt / (dzz[k-1] + dzz[k]) * (qc[k-1] - qc[k])
		}
		wi[ctop] += 2 * dt / dzz[ctop] * qc[ctop]
		if ctop < nk-1 {
			for k := ctop; k < nk; k++ {
				q[k] += qc[k]
			}
		}
	}
}
