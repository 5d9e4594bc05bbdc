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
)

// storeVariables shifts the velocity histories. On the first step the
// older levels are set to the current one.
func (d *Model) storeVariables() {
	st := d.State
	if st.N == 1 {
		st.UOld.CopyFrom(st.U)
		st.WOld.CopyFrom(st.W)
	}
	st.UOld2.CopyFrom(st.UOld)
	st.UOld.CopyFrom(st.U)
	st.WOld2.CopyFrom(st.WOld)
	st.WOld.CopyFrom(st.W)
}

// cellVelocity reconstructs the cell-centered horizontal velocity of the
// owned cells from the edge-normal velocities and exchanges it.
func (d *Model) cellVelocity() error {
	m, st, c := d.Mesh, d.State, d.Config
	for _, cells := range [][]int{d.part.Cells(ComputationalCell), d.part.Cells(ElevationCell)} {
		for _, i := range cells {
			uc, vc := st.Uc.Row(i), st.Vc.Row(i)
			dzz := st.DZZ.Row(i)
			for k := range uc {
				uc[k], vc[k] = 0, 0
			}
			ctop := st.Ctop[i]
			for nf, j := range m.Faces[i] {
				u, dzf := st.U.Row(j), st.DZF.Row(j)
				w := m.Def[i][nf] * m.Df[j] / m.Area[i]
				if ctop < m.Nke[j] {
					uc[ctop] += u[ctop] * m.N1[j] * w
					vc[ctop] += u[ctop] * m.N2[j] * w
				}
				for k := ctop + 1; k < m.Nke[j]; k++ {
					if dzz[k] <= c.DryCellHeight {
						continue
					}
					f := w * dzf[k] / dzz[k]
					uc[k] += u[k] * m.N1[j] * f
					vc[k] += u[k] * m.N2[j] * f
				}
			}
		}
	}
	return d.exchangeCellFields(st.Uc, st.Vc)
}

// faceValue interpolates the cell-centered field phi to layer k of
// edge j, weighting each side by the distance to the other.
func (d *Model) faceValue(phi Layered, j, k int) float64 {
	m := d.Mesh
	nc1, nc2 := m.sides(j)
	if nc1 == nc2 {
		return phi.At(nc1, k)
	}
	def1 := m.Def[nc1][m.GradF[j][0]]
	def2 := m.Def[nc2][m.GradF[j][1]]
	if def1 == 0 || def2 == 0 {
		return upwind(d.State.U.At(j, k), phi.At(nc1, k), phi.At(nc2, k), d.State.H[nc1], d.State.H[nc2])
	}
	return (phi.At(nc1, k)*def2 + phi.At(nc2, k)*def1) / (def1 + def2)
}

// horizontalSource computes the explicit part of the provisional
// velocity: the Adams-Bashforth extrapolation of the Coriolis,
// baroclinic, advective and lateral-diffusive tendencies together with
// the old non-hydrostatic pressure gradient.
func (d *Model) horizontalSource() error {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	fab, dt := d.fab, c.Dt

	if st.N == 1 || c.WetDry {
		st.CnU.Zero()
		st.CnU2.Zero()
	}
	w.utmp.CopyFrom(st.U)

	edges := d.part.Edges(Computational)
	for _, j := range edges {
		nc1, nc2 := m.sides(j)
		utmp, u := w.utmp.Row(j), st.U.Row(j)
		cn, cn2 := st.CnU.Row(j), st.CnU2.Row(j)
		q1, q2 := st.Q.Row(nc1), st.Q.Row(nc2)
		for k := st.Etop[j]; k < m.Nke[j]; k++ {
			utmp[k] = fab[1]*cn[k] + fab[2]*cn2[k] + u[k] - dt/m.Dg[j]*(q2[k]-q1[k])
			cn2[k] = cn[k]
			cn[k] = 0
		}
	}

	if c.Coriolis != 0 {
		for _, j := range edges {
			cn := st.CnU.Row(j)
			for k := st.Etop[j]; k < m.Nke[j]; k++ {
				uf, vf := d.faceValue(st.Uc, j, k), d.faceValue(st.Vc, j, k)
				cn[k] += dt * c.Coriolis * (vf*m.N1[j] - uf*m.N2[j])
			}
		}
	}

	d.baroclinic(edges)

	w.stmp.Zero()
	w.stmp2.Zero()
	if c.Nonlinear {
		d.momentumAdvection()
	}
	d.lateralMomentumDiffusion()

	if c.Nonlinear && c.ConserveMomentum && c.NuH == 0 && c.CdW == 0 && closedDomain(m) {
		if err := d.checkMomentumConservation(); err != nil {
			return err
		}
	}
	if c.Nonlinear && c.ThetaM < 0 {
		d.verticalAdvection(st.Uc, w.stmp)
		d.verticalAdvection(st.Vc, w.stmp2)
	}
	if err := d.exchangeCellFields(w.stmp, w.stmp2); err != nil {
		return err
	}

	for _, j := range edges {
		nc1, nc2 := m.sides(j)
		if m.CellClass[nc1] == ElevationCell {
			nc1 = nc2
		}
		if m.CellClass[nc2] == ElevationCell {
			nc2 = nc1
		}
		if m.CellClass[nc1] == ElevationCell {
			continue
		}
		def1 := m.Def[nc1][faceOf(m, nc1, j)]
		def2 := m.Def[nc2][faceOf(m, nc2, j)]
		dgf := def1 + def2
		n1, n2 := m.N1[j], m.N2[j]
		cn := st.CnU.Row(j)
		s11, s21 := w.stmp.Row(nc1), w.stmp2.Row(nc1)
		s12, s22 := w.stmp.Row(nc2), w.stmp2.Row(nc2)
		for k := maxInt(st.Ctop[nc1], st.Ctop[nc2]); k < m.Nke[j]; k++ {
			cn[k] -= dt / dgf * (def1*(s11[k]*n1+s21[k]*n2) + def2*(s12[k]*n1+s22[k]*n2))
		}
	}

	for _, j := range edges {
		utmp, cn := w.utmp.Row(j), st.CnU.Row(j)
		for k := st.Etop[j]; k < m.Nke[j]; k++ {
			utmp[k] += fab[0] * cn[k]
		}
	}
	return nil
}

// closedDomain reports whether m has no open boundaries.
func closedDomain(m *Mesh) bool {
	return len(m.Edges(SpecifiedFlux)) == 0 && len(m.Cells(ElevationCell)) == 0
}

// faceOf returns the face index of edge j within cell i.
func faceOf(m *Mesh, i, j int) int {
	if c, _ := m.Grad[j][0].Cell(); c == i {
		return m.GradF[j][0]
	}
	return m.GradF[j][1]
}

// baroclinic adds the baroclinic pressure gradient to the explicit
// tendency of each edge layer, integrating the density difference
// downward from the top of the shallower column.
func (d *Model) baroclinic(edges []int) {
	m, st, c := d.Mesh, d.State, d.Config
	for _, j := range edges {
		if st.Etop[j] >= m.Nke[j]-1 {
			continue
		}
		nc1, nc2 := m.sides(j)
		r1, r2 := st.Rho.Row(nc1), st.Rho.Row(nc2)
		z1, z2 := st.DZZ.Row(nc1), st.DZZ.Row(nc2)
		cn := st.CnU.Row(j)
		sum := 0.
		for k := maxInt(st.Ctop[nc1], st.Ctop[nc2]); k < m.Nke[j]; k++ {
			own := 0.25 * c.Gravity * c.Dt * (r2[k] - r1[k]) * (z1[k] + z2[k]) / m.Dg[j]
			cn[k] -= sum + own
			sum += 2 * own
		}
	}
}

// momentumAdvection accumulates the horizontal advective tendencies of
// the cell-centered velocity in stmp and stmp2 for the owned
// computational cells.
func (d *Model) momentumAdvection() {
	m, st, w := d.Mesh, d.State, &d.work

	// Face values on every face of an owned cell.
	for _, i := range d.part.Cells(ComputationalCell) {
		for _, j := range m.Faces[i] {
			ut := w.ut.Row(j)
			for k := st.Etop[j]; k < m.Nke[j]; k++ {
				ut[k] = d.faceValue(st.Uc, j, k)
			}
		}
	}
	d.advectCellField(w.stmp)

	for _, i := range d.part.Cells(ComputationalCell) {
		for _, j := range m.Faces[i] {
			ut := w.ut.Row(j)
			for k := st.Etop[j]; k < m.Nke[j]; k++ {
				ut[k] = d.faceValue(st.Vc, j, k)
			}
		}
	}
	d.advectCellField(w.stmp2)
}

// advectCellField adds the horizontal flux divergence of the face values
// in work.ut to s. With momentum conservation the fluxes are weighted by
// the flux heights and divided by the layer thickness, and layers above
// the top of the cell are lumped into the top layer.
func (d *Model) advectCellField(s Layered) {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	for _, i := range d.part.Cells(ComputationalCell) {
		si := s.Row(i)
		dzz := st.DZZ.Row(i)
		ctop := st.Ctop[i]
		for nf, j := range m.Faces[i] {
			ut, u, dzf := w.ut.Row(j), st.U.Row(j), st.DZF.Row(j)
			f := m.Df[j] * m.Normal[i][nf] / m.Area[i]
			for k := maxInt(ctop, st.Etop[j]); k < m.Nke[j]; k++ {
				if c.ConserveMomentum {
					if dzz[k] > c.DryCellHeight {
						si[k] += ut[k] * dzf[k] * u[k] * f / dzz[k]
					}
				} else {
					si[k] += ut[k] * u[k] * f
				}
			}
			if c.ConserveMomentum && dzz[ctop] > c.DryCellHeight {
				for k := st.Etop[j]; k < ctop && k < m.Nke[j]; k++ {
					si[ctop] += ut[k] * dzf[k] * u[k] * f / dzz[ctop]
				}
			}
		}
	}
}

// verticalAdvection adds the explicit upwind vertical flux divergence
// of phi to s.
func (d *Model) verticalAdvection(phi, s Layered) {
	m, st, c := d.Mesh, d.State, d.Config
	for _, i := range d.part.Cells(ComputationalCell) {
		p, w, si, dzz := phi.Row(i), st.W.Row(i), s.Row(i), st.DZZ.Row(i)
		ctop, nk := st.Ctop[i], m.Nk[i]
		flux := func(k int) float64 {
			switch {
			case k == ctop:
				return w[k] * p[k]
			case k >= nk:
				return 0
			}
			return math.Max(w[k], 0)*p[k] + math.Min(w[k], 0)*p[k-1]
		}
		for k := ctop; k < nk; k++ {
			if dzz[k] > c.DryCellHeight {
				si[k] += (flux(k) - flux(k+1)) / dzz[k]
			}
		}
	}
}

// lateralMomentumDiffusion adds lateral viscous, sidewall drag and
// no-slip wall stresses to stmp and stmp2.
func (d *Model) lateralMomentumDiffusion() {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	for _, i := range d.part.Cells(ComputationalCell) {
		uc, vc := st.Uc.Row(i), st.Vc.Row(i)
		s1, s2 := w.stmp.Row(i), w.stmp2.Row(i)
		ctop, nk := st.Ctop[i], m.Nk[i]
		for nf, j := range m.Faces[i] {
			f := m.Df[j] / m.Area[i]
			switch m.EdgeClass[j] {
			case Computational:
				nb, _ := m.Neigh[i][nf].Cell()
				if c.NuH > 0 {
					ub, vb := st.Uc.Row(nb), st.Vc.Row(nb)
					for k := maxInt(ctop, st.Ctop[nb]); k < m.Nke[j]; k++ {
						s1[k] -= c.NuH * (ub[k] - uc[k]) / m.Dg[j] * f
						s2[k] -= c.NuH * (vb[k] - vc[k]) / m.Dg[j] * f
					}
				}
				if c.CdW > 0 {
					for k := maxInt(m.Nke[j], ctop); k < nk; k++ {
						s1[k] += c.CdW * math.Abs(uc[k]) * uc[k] * f
						s2[k] += c.CdW * math.Abs(vc[k]) * vc[k] * f
					}
				}
			case NoSlipWall:
				for k := ctop; k < nk; k++ {
					s1[k] += 2 * c.NuH * uc[k] / m.Dg[j] * f
					s2[k] += 2 * c.NuH * vc[k] / m.Dg[j] * f
				}
			}
		}
	}
}

// checkMomentumConservation warns if the volume-integrated horizontal
// advective tendency, which should vanish in a closed domain without
// dissipation, exceeds the conservation tolerance. The explicit vertical
// advection is added afterwards because its surface flux does not
// vanish.
func (d *Model) checkMomentumConservation() error {
	m, st, c, w := d.Mesh, d.State, d.Config, &d.work
	var sum1, sum2 float64
	for _, i := range d.part.Cells(ComputationalCell) {
		dzz := st.DZZ.Row(i)
		s1, s2 := w.stmp.Row(i), w.stmp2.Row(i)
		for k := st.Ctop[i]; k < m.Nk[i]; k++ {
			sum1 += m.Area[i] * s1[k] * dzz[k]
			sum2 += m.Area[i] * s2[k] * dzz[k]
		}
	}
	g1, err := d.comm.AllReduceSum(sum1)
	if err != nil {
		return err
	}
	g2, err := d.comm.AllReduceSum(sum2)
	if err != nil {
		return err
	}
	if d.comm.Rank() == 0 && (math.Abs(g1) > c.Conserved || math.Abs(g2) > c.Conserved) {
		d.Logger.Warnf("step %d: momentum advection is not conservative: %.3g, %.3g", st.N, g1, g2)
	}
	return nil
}
