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
	"sort"
)

// Partition is the part of a mesh owned by one rank. Owned cells and
// edges are grouped by class. Ghost cells are the neighbors of owned
// cells that belong to other ranks; ghost edges are faces of owned cells
// that belong to other ranks. An edge is owned by the rank that owns
// Grad[j][0].
type Partition struct {
	Rank int

	cells [numCellClasses][]int
	edges [numEdgeClasses][]int

	// GhostCells and GhostEdges are sorted by the rank that owns them.
	GhostCells []int
	GhostEdges []int

	cellOwner []int
}

// Cells returns the owned cells of class c.
func (p *Partition) Cells(c CellClass) []int { return p.cells[c] }

// Edges returns the owned edges of class c.
func (p *Partition) Edges(c EdgeClass) []int { return p.edges[c] }

// OwnsCell reports whether cell i is owned by this partition.
func (p *Partition) OwnsCell(i int) bool {
	return p.cellOwner == nil || p.cellOwner[i] == p.Rank
}

// NumOwnedCells returns the number of owned cells of all classes.
func (p *Partition) NumOwnedCells() int {
	var n int
	for _, c := range p.cells {
		n += len(c)
	}
	return n
}

// WholeMesh returns a partition that owns the entire mesh.
func WholeMesh(m *Mesh) *Partition {
	p := new(Partition)
	for c := CellClass(0); c < numCellClasses; c++ {
		p.cells[c] = m.Cells(c)
	}
	for c := EdgeClass(0); c < numEdgeClasses; c++ {
		p.edges[c] = m.Edges(c)
	}
	return p
}

// newPartition returns the partition of m belonging to rank, given the
// owning rank of each cell.
func newPartition(m *Mesh, owner []int, rank int) *Partition {
	p := &Partition{Rank: rank, cellOwner: owner}
	for c := CellClass(0); c < numCellClasses; c++ {
		for _, i := range m.Cells(c) {
			if owner[i] == rank {
				p.cells[c] = append(p.cells[c], i)
			}
		}
	}
	for c := EdgeClass(0); c < numEdgeClasses; c++ {
		for _, j := range m.Edges(c) {
			if nc1, _ := m.Grad[j][0].Cell(); owner[nc1] == rank {
				p.edges[c] = append(p.edges[c], j)
			}
		}
	}
	ghostCells := make(map[int]struct{})
	ghostEdges := make(map[int]struct{})
	for i, r := range owner {
		if r != rank {
			continue
		}
		for nf, nb := range m.Neigh[i] {
			if c, ok := nb.Cell(); ok && owner[c] != rank {
				ghostCells[c] = struct{}{}
			}
			j := m.Faces[i][nf]
			if nc1, _ := m.Grad[j][0].Cell(); owner[nc1] != rank {
				ghostEdges[j] = struct{}{}
			}
		}
	}
	for c := range ghostCells {
		p.GhostCells = append(p.GhostCells, c)
	}
	for j := range ghostEdges {
		p.GhostEdges = append(p.GhostEdges, j)
	}
	sort.Slice(p.GhostCells, func(a, b int) bool {
		ca, cb := p.GhostCells[a], p.GhostCells[b]
		if owner[ca] != owner[cb] {
			return owner[ca] < owner[cb]
		}
		return ca < cb
	})
	sort.Slice(p.GhostEdges, func(a, b int) bool {
		ea, _ := m.Grad[p.GhostEdges[a]][0].Cell()
		eb, _ := m.Grad[p.GhostEdges[b]][0].Cell()
		if owner[ea] != owner[eb] {
			return owner[ea] < owner[eb]
		}
		return p.GhostEdges[a] < p.GhostEdges[b]
	})
	return p
}

// StripePartition assigns the cells of m to n ranks in stripes of
// roughly equal cell count ordered by the x coordinate of the cell
// centers. It returns the owning rank of each cell.
func StripePartition(m *Mesh, n int) ([]int, error) {
	if n < 1 || n > m.Nc {
		return nil, fmt.Errorf("suntans: cannot split %d cells into %d partitions", m.Nc, n)
	}
	order := make([]int, m.Nc)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := m.Center[order[a]], m.Center[order[b]]
		if ca.X != cb.X {
			return ca.X < cb.X
		}
		return ca.Y < cb.Y
	})
	owner := make([]int, m.Nc)
	for pos, i := range order {
		owner[i] = pos * n / m.Nc
	}
	return owner, nil
}
