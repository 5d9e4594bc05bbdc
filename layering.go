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

// columnLayers fills dzz with the layer thicknesses of a column with
// nominal thicknesses dz, nk layers, depth dv and free surface h, and
// returns the index of the top active layer. The thicknesses of the
// active layers sum to h+dv; layers above the top are zero. The bottom
// layer absorbs the mismatch between the nominal layers and the depth.
func columnLayers(dz []float64, nk int, dv, h float64, dzz []float64) (ctop int) {
	z := 0.
	placed := false
	for k := 0; k < nk; k++ {
		z -= dz[k]
		switch {
		case h >= z && !placed:
			placed = true
			switch {
			case k == nk-1:
				dzz[k] = h + dv
				ctop = k
			case h == z:
				dzz[k] = 0
				ctop = k + 1
			default:
				dzz[k] = h - z
				ctop = k
			}
		case placed:
			if k == nk-1 {
				dzz[k] = dz[k] + dv + z
			} else {
				dzz[k] = dz[k]
			}
		case k == nk-1:
			// The free surface is below the nominal bottom layer.
			dzz[k] = dv + h
			ctop = k
		default:
			dzz[k] = 0
		}
	}
	for k := nk; k < len(dzz); k++ {
		dzz[k] = 0
	}
	return ctop
}

// updateLayering recomputes the top layer and thicknesses of every
// column from the free surface, then the top layer and flux heights of
// every edge. On the first call the old values are set to the new ones.
func (d *Model) updateLayering(initial bool) {
	m, st, c := d.Mesh, d.State, d.Config
	if !initial {
		copy(st.CtopOld, st.Ctop)
		st.DZZOld.CopyFrom(st.DZZ)
		copy(st.EtopOld, st.Etop)
	}
	for i := 0; i < m.Nc; i++ {
		st.Ctop[i] = columnLayers(m.DZ, m.Nk[i], m.Depth[i], st.H[i], st.DZZ.Row(i))
		st.Active[i] = st.H[i] > -m.Depth[i]+c.DryCellHeight
	}
	for j := 0; j < m.Ne; j++ {
		nc1, nc2 := m.sides(j)
		st.Etop[j] = minInt(st.Ctop[nc1], st.Ctop[nc2])
		if st.Etop[j] > m.Nke[j]-1 {
			st.Etop[j] = m.Nke[j] - 1
		}
	}
	if initial {
		copy(st.CtopOld, st.Ctop)
		st.DZZOld.CopyFrom(st.DZZ)
		copy(st.EtopOld, st.Etop)
	}
}

// refillEdges handles edges whose top layer moved. Newly wetted layers
// take the velocity of the old top layer and layers above the new top
// are zeroed.
func (d *Model) refillEdges() {
	m, st := d.Mesh, d.State
	for c := EdgeClass(0); c < numEdgeClasses; c++ {
		for _, j := range d.part.Edges(c) {
			u := st.U.Row(j)
			etop, old := st.Etop[j], st.EtopOld[j]
			if etop < old && old < m.Nke[j] {
				for k := etop; k < old; k++ {
					u[k] = u[old]
				}
			}
			for k := 0; k < etop; k++ {
				u[k] = 0
			}
		}
	}
}

// setFluxHeight sets the height of each edge layer from the upwind cell.
// The bottom layer of an edge takes the smaller thickness of the two
// sides unless it is also the top layer, in which case it takes the
// upwind total depth. Heights at or below DryCellHeight are zero.
func (d *Model) setFluxHeight() {
	m, st, c := d.Mesh, d.State, d.Config
	for j := 0; j < m.Ne; j++ {
		nc1, nc2 := m.sides(j)
		dzf := st.DZF.Row(j)
		u := st.U.Row(j)
		dzz1, dzz2 := st.DZZ.Row(nc1), st.DZZ.Row(nc2)
		etop, nke := st.Etop[j], m.Nke[j]
		for k := 0; k < etop; k++ {
			dzf[k] = 0
		}
		for k := etop; k < nke-1; k++ {
			dzf[k] = upwind(u[k], dzz1[k], dzz2[k], st.H[nc1], st.H[nc2])
		}
		if etop == nke-1 {
			h := upwind(u[nke-1], st.H[nc1], st.H[nc2], st.H[nc1], st.H[nc2])
			dzf[nke-1] = math.Max(0, h+math.Min(m.Depth[nc1], m.Depth[nc2]))
		} else {
			dzf[nke-1] = math.Min(dzz1[nke-1], dzz2[nke-1])
		}
		for k := etop; k < nke; k++ {
			if dzf[k] <= c.DryCellHeight {
				dzf[k] = 0
			}
		}
		for k := nke; k < len(dzf); k++ {
			dzf[k] = 0
		}
	}
}

// upwind returns the value from the side the velocity u comes from.
// With no flow it takes the side with the higher free surface.
func upwind(u, v1, v2, h1, h2 float64) float64 {
	switch {
	case u > 0:
		return v1
	case u < 0:
		return v2
	case h1 >= h2:
		return v1
	}
	return v2
}

// clipDryColumns raises the free surface of columns that fell below
// the bottom to DryCellHeight above it.
func (d *Model) clipDryColumns() {
	m, st, c := d.Mesh, d.State, d.Config
	for _, i := range d.part.Cells(ComputationalCell) {
		if floor := -m.Depth[i] + c.DryCellHeight; st.H[i] < floor {
			st.H[i] = floor
		}
	}
}

// checkBlowup returns ErrBlowup if any rank has a non-finite free
// surface, velocity, or layer thickness, or a negative layer thickness.
func (d *Model) checkBlowup() error {
	m, st := d.Mesh, d.State
	bad := 0.
	where := ""
	for _, cells := range [][]int{d.part.Cells(ComputationalCell), d.part.Cells(ElevationCell)} {
		for _, i := range cells {
			if !finite(st.H[i]) {
				bad, where = 1, fmt.Sprintf("free surface %g in cell %d", st.H[i], i)
				break
			}
			dzz := st.DZZ.Row(i)
			for k := st.Ctop[i]; k < m.Nk[i]; k++ {
				if !finite(dzz[k]) || dzz[k] < 0 {
					bad, where = 1, fmt.Sprintf("layer %d of cell %d has thickness %g", k, i, dzz[k])
					break
				}
			}
		}
	}
	for _, j := range d.part.Edges(Computational) {
		for k, u := range st.U.Row(j) {
			if !finite(u) {
				bad, where = 1, fmt.Sprintf("velocity %g in layer %d of edge %d", u, k, j)
				break
			}
		}
	}
	global, err := d.comm.AllReduceMax(bad)
	if err != nil {
		return err
	}
	if global > 0 {
		if where != "" {
			d.Logger.Errorf("step %d: %s", st.N, where)
		}
		return fmt.Errorf("suntans: step %d: %w", st.N, ErrBlowup)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
