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

	"github.com/ctessum/geom"
)

// Neighbor is the cell on one side of an edge. The zero value
// is the domain boundary.
type Neighbor struct {
	id int
	ok bool
}

// CellNeighbor returns a Neighbor referring to cell i.
func CellNeighbor(i int) Neighbor { return Neighbor{id: i, ok: true} }

// Cell returns the index of the neighboring cell and whether
// there is one.
func (n Neighbor) Cell() (int, bool) { return n.id, n.ok }

// IsBoundary reports whether n is the domain boundary.
func (n Neighbor) IsBoundary() bool { return !n.ok }

func (n Neighbor) String() string {
	if !n.ok {
		return "boundary"
	}
	return fmt.Sprintf("cell %d", n.id)
}

// EdgeClass is the boundary class of an edge.
type EdgeClass int

// Edge classes. Edges are stored in contiguous ranges in this order.
const (
	Computational      EdgeClass = iota // cells on both sides
	Closed                              // land boundary, zero normal velocity
	SpecifiedFlux                       // prescribed normal velocity
	SpecifiedElevation                  // outer edge of a specified-elevation cell
	NoSlipWall                          // land boundary with zero tangential velocity
	numEdgeClasses
)

func (c EdgeClass) String() string {
	switch c {
	case Computational:
		return "computational"
	case Closed:
		return "closed"
	case SpecifiedFlux:
		return "specified flux"
	case SpecifiedElevation:
		return "specified elevation"
	case NoSlipWall:
		return "no-slip wall"
	}
	return fmt.Sprintf("EdgeClass(%d)", int(c))
}

// CellClass is the class of a cell.
type CellClass int

// Cell classes.
const (
	ComputationalCell CellClass = iota // free-surface unknown
	ElevationCell                      // elevation prescribed by forcing
	numCellClasses
)

// Mesh holds the immutable topology and geometry of an unstructured
// mesh and its nominal vertical layering. Layer 0 is the top layer.
type Mesh struct {
	Nc, Ne int // number of cells and edges
	Nkmax  int // number of nominal layers

	DZ []float64 // nominal layer thicknesses [m]

	Polygons  []geom.Polygon
	Center    []geom.Point
	Area      []float64    // cell area [m²]
	Depth     []float64    // depth below datum, positive down [m]
	Nk        []int        // number of layers in each cell
	CellClass []CellClass  // class of each cell
	Faces     [][]int      // edge index of each face of each cell
	Neigh     [][]Neighbor // cell across each face
	Normal    [][]float64  // +1 where the edge normal points out of the cell, -1 otherwise
	Def       [][]float64  // distance from the cell center to each face [m]

	// Grad holds the two cells adjacent to each edge. The edge normal
	// points from Grad[j][0] to Grad[j][1]; at the domain boundary
	// Grad[j][1] is the boundary and the normal points outward.
	Grad      [][2]Neighbor
	GradF     [][2]int    // face index of the edge within each adjacent cell
	Df        []float64   // edge length [m]
	Dg        []float64   // distance between the centers across the edge [m]
	N1, N2    []float64   // components of the unit edge normal
	Nke       []int       // number of layers at each edge
	EdgeClass []EdgeClass // class of each edge
	EdgeMid   []geom.Point

	edgeOrder []int
	edgeDist  [numEdgeClasses + 1]int
	cellOrder []int
	cellDist  [numCellClasses + 1]int
}

// Edges returns the indices of the edges of class c. The returned
// ranges for consecutive classes are contiguous in a single ordering.
func (m *Mesh) Edges(c EdgeClass) []int {
	return m.edgeOrder[m.edgeDist[c]:m.edgeDist[c+1]]
}

// Cells returns the indices of the cells of class c.
func (m *Mesh) Cells(c CellClass) []int {
	return m.cellOrder[m.cellDist[c]:m.cellDist[c+1]]
}

// sides returns the cells on either side of edge j. At the boundary
// both values are the interior cell.
func (m *Mesh) sides(j int) (nc1, nc2 int) {
	nc1, _ = m.Grad[j][0].Cell()
	var ok bool
	if nc2, ok = m.Grad[j][1].Cell(); !ok {
		nc2 = nc1
	}
	return
}

// TotalArea returns the summed area of all cells.
func (m *Mesh) TotalArea() float64 {
	var a float64
	for _, v := range m.Area {
		a += v
	}
	return a
}

// MeshOption customizes mesh construction.
type MeshOption func(*meshBuilder)

type meshBuilder struct {
	boundary func(a, b geom.Point) EdgeClass
	cells    func(i int, center geom.Point) CellClass
}

// BoundaryClasses sets the class of each boundary edge from its end
// points. Boundary edges default to Closed. Edges of specified-elevation
// cells are always SpecifiedElevation.
func BoundaryClasses(f func(a, b geom.Point) EdgeClass) MeshOption {
	return func(b *meshBuilder) { b.boundary = f }
}

// CellClasses sets the class of each cell from its index and center.
// Cells default to ComputationalCell.
func CellClasses(f func(i int, center geom.Point) CellClass) MeshOption {
	return func(b *meshBuilder) { b.cells = f }
}

// NewMesh builds a mesh from cell polygons given as lists of indices into
// points, the depth of each cell and the nominal layer thicknesses.
func NewMesh(points []geom.Point, cells [][]int, depth, dz []float64, opts ...MeshOption) (*Mesh, error) {
	b := meshBuilder{
		boundary: func(a, b geom.Point) EdgeClass { return Closed },
		cells:    func(int, geom.Point) CellClass { return ComputationalCell },
	}
	for _, o := range opts {
		o(&b)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("suntans: mesh has no cells")
	}
	if len(depth) != len(cells) {
		return nil, fmt.Errorf("suntans: mesh has %d cells but %d depths", len(cells), len(depth))
	}
	if len(dz) == 0 {
		return nil, fmt.Errorf("suntans: no nominal layer thicknesses specified")
	}
	var totalDZ float64
	for k, v := range dz {
		if !(v > 0) {
			return nil, fmt.Errorf("suntans: nominal thickness of layer %d is %g but should be >0", k, v)
		}
		totalDZ += v
	}

	m := &Mesh{
		Nc:        len(cells),
		Nkmax:     len(dz),
		DZ:        append([]float64{}, dz...),
		Polygons:  make([]geom.Polygon, len(cells)),
		Center:    make([]geom.Point, len(cells)),
		Area:      make([]float64, len(cells)),
		Depth:     append([]float64{}, depth...),
		Nk:        make([]int, len(cells)),
		CellClass: make([]CellClass, len(cells)),
		Faces:     make([][]int, len(cells)),
		Neigh:     make([][]Neighbor, len(cells)),
		Normal:    make([][]float64, len(cells)),
		Def:       make([][]float64, len(cells)),
	}

	type pair [2]int
	edgeIndex := make(map[pair]int)
	var edgePoints []pair
	for i, c := range cells {
		if len(c) < 3 {
			return nil, fmt.Errorf("suntans: cell %d has %d vertices; at least 3 are required", i, len(c))
		}
		ring := make([]geom.Point, len(c))
		for v, p := range c {
			if p < 0 || p >= len(points) {
				return nil, fmt.Errorf("suntans: cell %d refers to point %d but there are %d points", i, p, len(points))
			}
			ring[v] = points[p]
		}
		m.Polygons[i] = geom.Polygon{ring}
		m.Area[i] = m.Polygons[i].Area()
		if !(m.Area[i] > 0) {
			return nil, fmt.Errorf("suntans: cell %d has area %g", i, m.Area[i])
		}
		m.Center[i] = m.Polygons[i].Centroid()
		m.CellClass[i] = b.cells(i, m.Center[i])

		nk, err := layerCount(dz, depth[i])
		if err != nil {
			return nil, fmt.Errorf("suntans: cell %d: %v (total nominal thickness %g)", i, err, totalDZ)
		}
		m.Nk[i] = nk

		m.Faces[i] = make([]int, len(c))
		m.Neigh[i] = make([]Neighbor, len(c))
		m.Normal[i] = make([]float64, len(c))
		m.Def[i] = make([]float64, len(c))
		for nf := range c {
			p1, p2 := c[nf], c[(nf+1)%len(c)]
			key := pair{p1, p2}
			if p2 < p1 {
				key = pair{p2, p1}
			}
			j, ok := edgeIndex[key]
			if !ok {
				j = len(edgePoints)
				edgeIndex[key] = j
				edgePoints = append(edgePoints, key)
				m.Grad = append(m.Grad, [2]Neighbor{CellNeighbor(i), {}})
				m.GradF = append(m.GradF, [2]int{nf, -1})
			} else {
				if !m.Grad[j][1].IsBoundary() {
					return nil, fmt.Errorf("suntans: edge between points %d and %d is shared by more than two cells", key[0], key[1])
				}
				m.Grad[j][1] = CellNeighbor(i)
				m.GradF[j][1] = nf
			}
			m.Faces[i][nf] = j
		}
	}

	m.Ne = len(edgePoints)
	m.Df = make([]float64, m.Ne)
	m.Dg = make([]float64, m.Ne)
	m.N1 = make([]float64, m.Ne)
	m.N2 = make([]float64, m.Ne)
	m.Nke = make([]int, m.Ne)
	m.EdgeClass = make([]EdgeClass, m.Ne)
	m.EdgeMid = make([]geom.Point, m.Ne)

	for j, e := range edgePoints {
		pa, pb := points[e[0]], points[e[1]]
		m.Df[j] = geom.LineString{pa, pb}.Length()
		if !(m.Df[j] > 0) {
			return nil, fmt.Errorf("suntans: edge %d has zero length", j)
		}
		mid := geom.Point{X: 0.5 * (pa.X + pb.X), Y: 0.5 * (pa.Y + pb.Y)}
		m.EdgeMid[j] = mid
		n1, n2 := (pb.Y-pa.Y)/m.Df[j], -(pb.X-pa.X)/m.Df[j]

		c1, _ := m.Grad[j][0].Cell()
		ref := mid
		if c2, ok := m.Grad[j][1].Cell(); ok {
			ref = m.Center[c2]
		}
		if n1*(ref.X-m.Center[c1].X)+n2*(ref.Y-m.Center[c1].Y) < 0 {
			n1, n2 = -n1, -n2
		}
		m.N1[j], m.N2[j] = n1, n2

		def1 := math.Abs(n1*(mid.X-m.Center[c1].X) + n2*(mid.Y-m.Center[c1].Y))
		m.Def[c1][m.GradF[j][0]] = def1
		m.Normal[c1][m.GradF[j][0]] = 1
		if c2, ok := m.Grad[j][1].Cell(); ok {
			def2 := math.Abs(n1*(mid.X-m.Center[c2].X) + n2*(mid.Y-m.Center[c2].Y))
			m.Def[c2][m.GradF[j][1]] = def2
			m.Normal[c2][m.GradF[j][1]] = -1
			m.Neigh[c1][m.GradF[j][0]] = CellNeighbor(c2)
			m.Neigh[c2][m.GradF[j][1]] = CellNeighbor(c1)
			m.Dg[j] = def1 + def2
			m.Nke[j] = minInt(m.Nk[c1], m.Nk[c2])
			m.EdgeClass[j] = Computational
		} else {
			m.Dg[j] = 2 * def1
			m.Nke[j] = m.Nk[c1]
			if m.CellClass[c1] == ElevationCell {
				m.EdgeClass[j] = SpecifiedElevation
			} else {
				m.EdgeClass[j] = b.boundary(pa, pb)
				if m.EdgeClass[j] == Computational || m.EdgeClass[j] == SpecifiedElevation ||
					m.EdgeClass[j] < 0 || m.EdgeClass[j] >= numEdgeClasses {
					return nil, fmt.Errorf("suntans: boundary edge %d between (%g, %g) and (%g, %g) "+
						"has invalid class %v", j, pa.X, pa.Y, pb.X, pb.Y, m.EdgeClass[j])
				}
			}
		}
		if !(m.Dg[j] > 0) {
			return nil, fmt.Errorf("suntans: edge %d has center distance %g", j, m.Dg[j])
		}
	}

	m.edgeOrder = make([]int, 0, m.Ne)
	for c := EdgeClass(0); c < numEdgeClasses; c++ {
		m.edgeDist[c] = len(m.edgeOrder)
		for j, ec := range m.EdgeClass {
			if ec == c {
				m.edgeOrder = append(m.edgeOrder, j)
			}
		}
	}
	m.edgeDist[numEdgeClasses] = len(m.edgeOrder)

	m.cellOrder = make([]int, 0, m.Nc)
	for c := CellClass(0); c < numCellClasses; c++ {
		m.cellDist[c] = len(m.cellOrder)
		for i, cc := range m.CellClass {
			if cc == c {
				m.cellOrder = append(m.cellOrder, i)
			}
		}
	}
	m.cellDist[numCellClasses] = len(m.cellOrder)
	if len(m.cellOrder) != m.Nc {
		return nil, fmt.Errorf("suntans: cell classifier returned an invalid class")
	}
	if len(m.Cells(ComputationalCell)) == 0 {
		return nil, fmt.Errorf("suntans: mesh has no computational cells")
	}
	return m, nil
}

// layerCount returns the number of nominal layers needed to reach depth.
func layerCount(dz []float64, depth float64) (int, error) {
	if !(depth > 0) {
		return 0, fmt.Errorf("depth is %g but should be >0", depth)
	}
	const tolerance = 1e-10
	var z float64
	for k, v := range dz {
		z += v
		if z >= depth*(1-tolerance) {
			return k + 1, nil
		}
	}
	return 0, fmt.Errorf("depth %g exceeds the nominal layers", depth)
}

// Grid describes a rectangular mesh of Nx × Ny quadrilateral cells
// with its lower-left corner at (X0, Y0).
type Grid struct {
	Nx, Ny int
	Dx, Dy float64
	X0, Y0 float64

	// DZ holds the nominal layer thicknesses, top first.
	DZ []float64

	// Depth returns the depth at a cell center.
	Depth func(x, y float64) float64

	// Boundary and Cells classify boundary edges and cells.
	// They may be nil.
	Boundary func(a, b geom.Point) EdgeClass
	Cells    func(i int, center geom.Point) CellClass
}

// Mesh creates the mesh described by g. Cell (ix, iy) has index
// iy*Nx + ix.
func (g Grid) Mesh() (*Mesh, error) {
	if g.Nx < 1 || g.Ny < 1 {
		return nil, fmt.Errorf("suntans: grid size %d×%d is invalid", g.Nx, g.Ny)
	}
	if !(g.Dx > 0) || !(g.Dy > 0) {
		return nil, fmt.Errorf("suntans: grid spacing %g×%g is invalid", g.Dx, g.Dy)
	}
	if g.Depth == nil {
		return nil, fmt.Errorf("suntans: grid depth is not specified")
	}
	points := make([]geom.Point, 0, (g.Nx+1)*(g.Ny+1))
	for iy := 0; iy <= g.Ny; iy++ {
		for ix := 0; ix <= g.Nx; ix++ {
			points = append(points, geom.Point{X: g.X0 + float64(ix)*g.Dx, Y: g.Y0 + float64(iy)*g.Dy})
		}
	}
	p := func(ix, iy int) int { return iy*(g.Nx+1) + ix }
	cells := make([][]int, 0, g.Nx*g.Ny)
	depth := make([]float64, 0, g.Nx*g.Ny)
	for iy := 0; iy < g.Ny; iy++ {
		for ix := 0; ix < g.Nx; ix++ {
			cells = append(cells, []int{p(ix, iy), p(ix+1, iy), p(ix+1, iy+1), p(ix, iy+1)})
			depth = append(depth, g.Depth(g.X0+(float64(ix)+0.5)*g.Dx, g.Y0+(float64(iy)+0.5)*g.Dy))
		}
	}
	var opts []MeshOption
	if g.Boundary != nil {
		opts = append(opts, BoundaryClasses(g.Boundary))
	}
	if g.Cells != nil {
		opts = append(opts, CellClasses(g.Cells))
	}
	return NewMesh(points, cells, depth, g.DZ, opts...)
}

// UniformLayers returns n nominal layers of equal thickness spanning depth.
func UniformLayers(n int, depth float64) []float64 {
	dz := make([]float64, n)
	for k := range dz {
		dz[k] = depth / float64(n)
	}
	return dz
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
