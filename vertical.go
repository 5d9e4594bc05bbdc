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

// columnScratch holds the arrays for one vertical solve.
type columnScratch struct {
	a, b, c, rhs, x, ones, e, gamma, wI []float64
}

func newColumnScratch(nk int) *columnScratch {
	s := &columnScratch{
		a: make([]float64, nk), b: make([]float64, nk), c: make([]float64, nk),
		rhs: make([]float64, nk), x: make([]float64, nk), ones: make([]float64, nk),
		e: make([]float64, nk), gamma: make([]float64, nk), wI: make([]float64, nk+1),
	}
	for k := range s.ones {
		s.ones[k] = 1
	}
	return s
}

// predictVelocity completes the provisional velocity. It applies the
// prescribed boundary velocities and the explicit part of the barotropic
// pressure gradient, then solves the implicit vertical viscosity, drag
// and advection of every owned computational edge. It also computes the
// coupling E of each edge layer to the new free-surface gradient and its
// depth integral D.
func (d *Model) predictVelocity() error {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	for _, j := range d.part.Edges(SpecifiedFlux) {
		utmp, ub := w.utmp.Row(j), st.BoundaryU.Row(j)
		for k := st.Etop[j]; k < m.Nke[j]; k++ {
			utmp[k] = ub[k]
		}
	}
	for _, class := range []EdgeClass{Closed, NoSlipWall} {
		for _, j := range d.part.Edges(class) {
			utmp := w.utmp.Row(j)
			for k := range utmp {
				utmp[k] = 0
			}
		}
	}
	for ec := EdgeClass(0); ec < numEdgeClasses; ec++ {
		if ec == Computational {
			continue
		}
		for _, j := range d.part.Edges(ec) {
			st.D[j] = 0
			e := st.E.Row(j)
			for k := range e {
				e[k] = 0
			}
		}
	}

	fac := d.fac
	for _, j := range d.part.Edges(Computational) {
		nc1, nc2 := m.sides(j)
		utmp := w.utmp.Row(j)
		g := c.Gravity * c.Dt / m.Dg[j]
		dh := fac[1] * (st.H[nc2] - st.H[nc1])
		dhOld := fac[2] * (st.HOld[nc2] - st.HOld[nc1])
		for k := st.Etop[j]; k < m.Nke[j]; k++ {
			utmp[k] -= g * (dh + dhOld)
		}
	}

	edges := d.part.Edges(Computational)
	nw := d.workers()
	scratch := make([]*columnScratch, nw)
	for i := range scratch {
		scratch[i] = newColumnScratch(m.Nkmax)
	}
	err := d.concurrently(edges, func(worker, j int) error {
		return d.verticalSolve(j, scratch[worker])
	})
	if err != nil {
		return err
	}
	if err := d.exchangeEdgeFields(w.utmp, st.E); err != nil {
		return err
	}
	return d.exchangeEdges(st.D)
}

// verticalSolve solves the implicit vertical system of edge j.
func (d *Model) verticalSolve(j int, s *columnScratch) error {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	nc1, nc2 := m.sides(j)
	etop, nke := st.Etop[j], m.Nke[j]
	dzz1, dzz2 := st.DZZ.Row(nc1), st.DZZ.Row(nc2)
	utmp, u, e := w.utmp.Row(j), st.U.Row(j), st.E.Row(j)
	nu1, nu2 := st.NuT.Row(nc1), st.NuT.Row(nc2)
	dt := c.Dt

	for k := range e {
		e[k] = 0
	}
	st.D[j] = 0
	if dzz1[etop] == 0 && dzz2[etop] == 0 {
		return nil
	}

	n := nke - etop
	a, b, cc, rhs := s.a[:n], s.b[:n], s.c[:n], s.rhs[:n]
	h := func(k int) float64 { return 0.5 * (dzz1[k] + dzz2[k]) }
	if h(etop) <= 0 {
		return nil
	}

	utmp[etop] += 2 * dt * st.TauT[j] / (dzz1[etop] + dzz2[etop])

	for r := 0; r < n; r++ {
		a[r], b[r], cc[r] = 0, 1, 0
		rhs[r] = utmp[etop+r]
	}

	// Vertical viscosity, coupling interface k to the layers above and
	// below it.
	for k := etop + 1; k < nke; k++ {
		hk, hkm := h(k), h(k-1)
		if hk <= 0 || hkm <= 0 {
			return fmt.Errorf("suntans: edge %d layer %d has no thickness: %w", j, k, ErrTridiagonal)
		}
		nu := c.Nu + 0.25*(nu1[k-1]+nu2[k-1]+nu1[k]+nu2[k])
		g := 2 * nu / (hkm + hk)
		r := k - etop
		b[r] += dt * g / hk
		a[r] -= dt * g / hk
		b[r-1] += dt * g / hkm
		cc[r-1] -= dt * g / hkm
	}

	// Top and bottom stresses.
	top, bot := etop, nke-1
	if c.CdT == -1 {
		nu := c.Nu + 0.5*(nu1[top]+nu2[top])
		b[0] += dt * 2 * nu / (h(top) * h(top))
	} else {
		b[0] += dt * st.CdT[j] * math.Abs(u[top]) / h(top)
	}
	if c.CdB == -1 {
		nu := c.Nu + 0.5*(nu1[bot]+nu2[bot])
		b[n-1] += dt * 2 * nu / (h(bot) * h(bot))
	} else if hb := h(bot); hb > 0 {
		b[n-1] += dt * st.CdB[j] * math.Abs(u[bot]) / hb
	}

	if c.Nonlinear && c.ThetaM >= 0 && n > 1 {
		d.verticalMomentumAdvection(j, s, h)
	}

	if err := TriSolve(a, b, cc, rhs, s.x[:n], s.gamma); err != nil {
		return fmt.Errorf("edge %d: %w", j, err)
	}
	copy(utmp[etop:nke], s.x[:n])
	if err := TriSolve(a, b, cc, s.ones[:n], s.e[:n], s.gamma); err != nil {
		return fmt.Errorf("edge %d: %w", j, err)
	}
	copy(e[etop:nke], s.e[:n])

	dzf := st.DZF.Row(j)
	for k := etop; k < nke; k++ {
		st.D[j] += e[k] * dzf[k]
	}
	return nil
}

// verticalMomentumAdvection adds upwind vertical advection of the edge
// velocity to the vertical system of edge j, implicit with weight ThetaM
// and explicit with the remainder. There is no flux through the top and
// bottom of the edge column.
func (d *Model) verticalMomentumAdvection(j int, s *columnScratch, h func(int) float64) {
	m, st, c := d.Mesh, d.State, d.Config
	nc1, nc2 := m.sides(j)
	etop, nke := st.Etop[j], m.Nke[j]
	n := nke - etop
	w1, w2 := st.W.Row(nc1), st.W.Row(nc2)
	u := st.U.Row(j)
	wI := s.wI[:n+1]
	wI[0], wI[n] = 0, 0
	for k := etop + 1; k < nke; k++ {
		var sum, cnt float64
		if k > st.Ctop[nc1] {
			sum, cnt = sum+w1[k], cnt+1
		}
		if k > st.Ctop[nc2] {
			sum, cnt = sum+w2[k], cnt+1
		}
		wI[k-etop] = 0
		if cnt > 0 {
			wI[k-etop] = sum / cnt
		}
	}
	thetaM, dt := c.ThetaM, c.Dt
	flux := func(r int) float64 {
		if r <= 0 || r >= n {
			return 0
		}
		return math.Max(wI[r], 0)*u[etop+r] + math.Min(wI[r], 0)*u[etop+r-1]
	}
	for r := 0; r < n; r++ {
		hk := h(etop + r)
		if hk <= 0 {
			continue
		}
		wt, wb := wI[r], wI[r+1]
		f := thetaM * dt / hk
		s.b[r] += f * (math.Max(wt, 0) - math.Min(wb, 0))
		if r > 0 {
			s.a[r] += f * math.Min(wt, 0)
		}
		if r < n-1 {
			s.c[r] -= f * math.Max(wb, 0)
		}
		s.rhs[r] -= (1 - thetaM) * dt * (flux(r) - flux(r+1)) / hk
	}
}

// correctVelocity applies the implicit free-surface gradient to the
// provisional velocity and sets the boundary velocities.
func (d *Model) correctVelocity() {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	for _, j := range d.part.Edges(Computational) {
		nc1, nc2 := m.sides(j)
		u, utmp, e := st.U.Row(j), w.utmp.Row(j), st.E.Row(j)
		g := c.Gravity * d.fac[0] * c.Dt * (st.H[nc2] - st.H[nc1]) / m.Dg[j]
		for k := st.Etop[j]; k < m.Nke[j]; k++ {
			u[k] = utmp[k] - g*e[k]
		}
		etop := st.Etop[j]
		if etop == m.Nke[j]-1 && st.DZZ.At(nc1, etop) <= c.DryCellHeight && st.DZZ.At(nc2, etop) <= c.DryCellHeight {
			u[etop] = 0
		}
	}
	for _, j := range d.part.Edges(SpecifiedFlux) {
		u, ub := st.U.Row(j), st.BoundaryU.Row(j)
		for k := range u {
			u[k] = 0
		}
		for k := st.Etop[j]; k < m.Nke[j]; k++ {
			u[k] = ub[k]
		}
	}
	for _, class := range []EdgeClass{Closed, NoSlipWall} {
		for _, j := range d.part.Edges(class) {
			u := st.U.Row(j)
			for k := range u {
				u[k] = 0
			}
		}
	}
}

// elevationBoundaryVelocity sets the velocity of the outer edges of the
// owned specified-elevation cells so that their horizontal divergence
// vanishes in each layer.
func (d *Model) elevationBoundaryVelocity() {
	m, st := d.Mesh, d.State
	for _, i := range d.part.Cells(ElevationCell) {
		var outer float64
		for nf, j := range m.Faces[i] {
			if m.EdgeClass[j] == SpecifiedElevation {
				outer += m.Df[j] * m.Normal[i][nf]
			}
		}
		if outer == 0 {
			continue
		}
		for k := 0; k < m.Nk[i]; k++ {
			var sum float64
			for nf, j := range m.Faces[i] {
				if m.EdgeClass[j] != SpecifiedElevation && k < m.Nke[j] {
					sum += st.U.At(j, k) * m.Df[j] * m.Normal[i][nf]
				}
			}
			for _, j := range m.Faces[i] {
				if m.EdgeClass[j] == SpecifiedElevation && k >= st.Etop[j] && k < m.Nke[j] {
					st.U.Set(-sum/outer, j, k)
				}
			}
		}
	}
}
