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

import "math"

// bufferDrag is the bottom drag coefficient of single-layer edges
// thinner than the buffer height.
const bufferDrag = 100

// setDragCoefficients sets the top and bottom drag coefficients of the
// owned edges, from the log law where roughness lengths are given.
func (d *Model) setDragCoefficients() {
	m, st, c := d.Mesh, d.State, d.Config
	for ec := EdgeClass(0); ec < numEdgeClasses; ec++ {
		for _, j := range d.part.Edges(ec) {
			etop, nke := st.Etop[j], m.Nke[j]
			dzf := st.DZF.Row(j)

			st.CdT[j] = c.CdT
			if c.Z0T > 0 {
				st.CdT[j] = logLaw(0.5*dzf[etop], c.Z0T, c.Kappa)
			}

			st.CdB[j] = c.CdB
			if c.Z0B > 0 {
				zb := 0.5 * dzf[nke-1]
				if etop < nke-1 {
					st.CdB[j] = logLaw(zb, c.Z0B, c.Kappa)
				} else if 2*zb > c.Z0B {
					// A single layer spans the whole depth.
					v := (math.Log(2*zb/c.Z0B) + c.Z0B/(2*zb) - 1) / c.Kappa
					st.CdB[j] = 1 / (v * v)
				} else {
					st.CdB[j] = bufferDrag
				}
			}
			if st.CdB[j] != -1 && etop == nke-1 && dzf[nke-1] < c.BufferHeight {
				st.CdB[j] = bufferDrag
			}
		}
	}
}

// logLaw returns the drag coefficient at height z above a boundary
// with roughness z0.
func logLaw(z, z0, kappa float64) float64 {
	if z <= z0 {
		return bufferDrag
	}
	v := math.Log(z/z0) / kappa
	return 1 / (v * v)
}
