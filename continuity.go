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

// continuity computes the vertical velocity of the owned computational
// cells by integrating the discrete continuity equation upward from
// zero at the bottom, using the same time blending of the horizontal
// fluxes as the free-surface equation.
func (d *Model) continuity() error {
	m, st := d.Mesh, d.State
	fac := d.fac
	for _, i := range d.part.Cells(ComputationalCell) {
		w, wold, wold2 := st.W.Row(i), st.WOld.Row(i), st.WOld2.Row(i)
		nk, ctop := m.Nk[i], st.Ctop[i]
		for k := nk; k < len(w); k++ {
			w[k] = 0
		}
		for k := nk - 1; k >= ctop; k-- {
			w[k] = w[k+1] - fac[1]/fac[0]*(wold[k]-wold[k+1]) - fac[2]/fac[0]*(wold2[k]-wold2[k+1])
			for nf, j := range m.Faces[i] {
				if k < st.Etop[j] || k >= m.Nke[j] {
					continue
				}
				u := fac[0]*st.U.At(j, k) + fac[1]*st.UOld.At(j, k) + fac[2]*st.UOld2.At(j, k)
				w[k] -= u * m.Df[j] * m.Normal[i][nf] * st.DZF.At(j, k) / (m.Area[i] * fac[0])
			}
		}
		for k := 0; k < ctop; k++ {
			w[k] = 0
		}
	}
	return d.exchangeCellFields(st.W)
}
