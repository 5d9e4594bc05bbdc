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
	"testing"

	"github.com/ctessum/geom"
)

func flatDepth(depth float64) func(x, y float64) float64 {
	return func(x, y float64) float64 { return depth }
}

func TestGridMesh(t *testing.T) {
	m, err := Grid{Nx: 3, Ny: 2, Dx: 10, Dy: 20, DZ: UniformLayers(4, 8), Depth: flatDepth(8)}.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	if m.Nc != 6 {
		t.Errorf("Nc: have %d, want 6", m.Nc)
	}
	if m.Ne != 17 {
		t.Errorf("Ne: have %d, want 17", m.Ne)
	}
	if n := len(m.Edges(Computational)); n != 7 {
		t.Errorf("computational edges: have %d, want 7", n)
	}
	if n := len(m.Edges(Closed)); n != 10 {
		t.Errorf("closed edges: have %d, want 10", n)
	}
	if different(m.TotalArea(), 1200, 1e-12) {
		t.Errorf("total area: have %g, want 1200", m.TotalArea())
	}
	for i := 0; i < m.Nc; i++ {
		if m.Nk[i] != 4 {
			t.Errorf("cell %d has %d layers, want 4", i, m.Nk[i])
		}
		if different(m.Area[i], 200, 1e-12) {
			t.Errorf("cell %d area: have %g, want 200", i, m.Area[i])
		}
		// The outward normals of a closed polygon sum to zero.
		var sx, sy float64
		for nf, j := range m.Faces[i] {
			sx += m.Normal[i][nf] * m.Df[j] * m.N1[j]
			sy += m.Normal[i][nf] * m.Df[j] * m.N2[j]
		}
		if absDifferent(sx, 0, 1e-12) || absDifferent(sy, 0, 1e-12) {
			t.Errorf("cell %d: normals sum to (%g, %g)", i, sx, sy)
		}
	}
	for _, j := range m.Edges(Computational) {
		nc1, nc2 := m.sides(j)
		c1, c2 := m.Center[nc1], m.Center[nc2]
		if m.N1[j]*(c2.X-c1.X)+m.N2[j]*(c2.Y-c1.Y) <= 0 {
			t.Errorf("edge %d: normal does not point from cell %d to cell %d", j, nc1, nc2)
		}
		dist := math.Hypot(c2.X-c1.X, c2.Y-c1.Y)
		if different(m.Dg[j], dist, 1e-12) {
			t.Errorf("edge %d: Dg=%g but centers are %g apart", j, m.Dg[j], dist)
		}
	}
	for _, j := range m.Edges(Closed) {
		if !m.Grad[j][1].IsBoundary() {
			t.Errorf("closed edge %d has neighbor %v", j, m.Grad[j][1])
		}
		nc1, nc2 := m.sides(j)
		if nc1 != nc2 {
			t.Errorf("boundary edge %d sides: %d, %d", j, nc1, nc2)
		}
		out := geom.Point{X: m.EdgeMid[j].X - m.Center[nc1].X, Y: m.EdgeMid[j].Y - m.Center[nc1].Y}
		if m.N1[j]*out.X+m.N2[j]*out.Y <= 0 {
			t.Errorf("boundary edge %d: normal does not point outward", j)
		}
	}
}

func TestMeshClasses(t *testing.T) {
	m, err := Grid{
		Nx: 4, Ny: 1, Dx: 10, Dy: 10, DZ: []float64{1}, Depth: flatDepth(1),
		Boundary: func(a, b geom.Point) EdgeClass {
			if a.X == 0 && b.X == 0 {
				return SpecifiedFlux
			}
			if a.Y == b.Y {
				return NoSlipWall
			}
			return Closed
		},
		Cells: func(i int, c geom.Point) CellClass {
			if i == 3 {
				return ElevationCell
			}
			return ComputationalCell
		},
	}.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	want := map[EdgeClass]int{
		Computational:      3,
		SpecifiedFlux:      1,
		SpecifiedElevation: 3,
		NoSlipWall:         6,
		Closed:             0,
	}
	for c, n := range want {
		if have := len(m.Edges(c)); have != n {
			t.Errorf("%v edges: have %d, want %d", c, have, n)
		}
	}
	if cells := m.Cells(ElevationCell); len(cells) != 1 || cells[0] != 3 {
		t.Errorf("elevation cells: %v", cells)
	}
	if n := len(m.Cells(ComputationalCell)); n != 3 {
		t.Errorf("computational cells: have %d, want 3", n)
	}
}

func TestMeshErrors(t *testing.T) {
	tests := []struct {
		name string
		g    Grid
	}{
		{"too deep", Grid{Nx: 1, Ny: 1, Dx: 1, Dy: 1, DZ: []float64{1, 1}, Depth: flatDepth(3)}},
		{"dry", Grid{Nx: 1, Ny: 1, Dx: 1, Dy: 1, DZ: []float64{1}, Depth: flatDepth(0)}},
		{"bad layer", Grid{Nx: 1, Ny: 1, Dx: 1, Dy: 1, DZ: []float64{1, 0}, Depth: flatDepth(1)}},
		{"no depth", Grid{Nx: 1, Ny: 1, Dx: 1, Dy: 1, DZ: []float64{1}}},
		{"no computational cells", Grid{Nx: 1, Ny: 1, Dx: 1, Dy: 1, DZ: []float64{1}, Depth: flatDepth(1),
			Cells: func(int, geom.Point) CellClass { return ElevationCell }}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := test.g.Mesh(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLayerCount(t *testing.T) {
	dz := []float64{1, 2, 3}
	for _, test := range []struct {
		depth float64
		nk    int
	}{
		{0.5, 1}, {1, 1}, {1.5, 2}, {3, 2}, {3.0000001, 3}, {6, 3},
	} {
		nk, err := layerCount(dz, test.depth)
		if err != nil {
			t.Fatal(err)
		}
		if nk != test.nk {
			t.Errorf("depth %g: have %d layers, want %d", test.depth, nk, test.nk)
		}
	}
}

func TestNeighbor(t *testing.T) {
	var b Neighbor
	if !b.IsBoundary() || b.String() != "boundary" {
		t.Errorf("zero Neighbor should be the boundary: %v", b)
	}
	n := CellNeighbor(0)
	if i, ok := n.Cell(); !ok || i != 0 || n.IsBoundary() {
		t.Errorf("CellNeighbor(0) = %v", n)
	}
}
