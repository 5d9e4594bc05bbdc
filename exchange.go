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
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Communicator exchanges ghost values and reduces scalars among the
// ranks running one simulation. Every rank must make the same sequence
// of calls. Arrays are indexed by global cell or edge with stride values
// per row.
type Communicator interface {
	Size() int
	Rank() int

	// ExchangeCells overwrites the ghost-cell rows of v with the values
	// held by their owners.
	ExchangeCells(v []float64, stride int) error

	// ExchangeEdges overwrites the ghost-edge rows of v with the values
	// held by their owners.
	ExchangeEdges(v []float64, stride int) error

	AllReduceSum(x float64) (float64, error)
	AllReduceMax(x float64) (float64, error)
}

// Serial is the Communicator of a single rank owning the whole mesh.
type Serial struct{}

// Size implements Communicator.
func (Serial) Size() int { return 1 }

// Rank implements Communicator.
func (Serial) Rank() int { return 0 }

// ExchangeCells implements Communicator.
func (Serial) ExchangeCells([]float64, int) error { return nil }

// ExchangeEdges implements Communicator.
func (Serial) ExchangeEdges([]float64, int) error { return nil }

// AllReduceSum implements Communicator.
func (Serial) AllReduceSum(x float64) (float64, error) { return x, nil }

// AllReduceMax implements Communicator.
func (Serial) AllReduceMax(x float64) (float64, error) { return x, nil }

// Group runs one simulation split among in-process ranks, each owning
// part of the mesh and running in its own goroutine.
type Group struct {
	mesh  *Mesh
	owner []int
	parts []*Partition
	b     *barrier

	slots  [][]float64
	reduce []float64
}

// NewGroup creates a group for mesh m where owner gives the rank
// owning each cell. Ranks are numbered from zero and every rank must own
// at least one cell.
func NewGroup(m *Mesh, owner []int) (*Group, error) {
	if len(owner) != m.Nc {
		return nil, fmt.Errorf("suntans: %d cell owners for %d cells", len(owner), m.Nc)
	}
	n := 0
	for i, r := range owner {
		if r < 0 {
			return nil, fmt.Errorf("suntans: cell %d has negative owner %d", i, r)
		}
		if r+1 > n {
			n = r + 1
		}
	}
	counts := make([]int, n)
	for _, r := range owner {
		counts[r]++
	}
	for r, c := range counts {
		if c == 0 {
			return nil, fmt.Errorf("suntans: rank %d owns no cells", r)
		}
	}
	g := &Group{
		mesh:   m,
		owner:  owner,
		parts:  make([]*Partition, n),
		b:      newBarrier(n),
		slots:  make([][]float64, n),
		reduce: make([]float64, n),
	}
	for r := range g.parts {
		g.parts[r] = newPartition(m, owner, r)
	}
	return g, nil
}

// Size returns the number of ranks.
func (g *Group) Size() int { return len(g.parts) }

// Partition returns the partition owned by rank r.
func (g *Group) Partition(r int) *Partition { return g.parts[r] }

// Rank returns an Option that makes a model run as rank r of the group.
func (g *Group) Rank(r int) Option {
	return func(d *Model) error {
		if r < 0 || r >= g.Size() {
			return fmt.Errorf("suntans: rank %d out of range [0, %d)", r, g.Size())
		}
		if d.Mesh != g.mesh {
			return fmt.Errorf("suntans: model and group meshes differ")
		}
		d.part = g.parts[r]
		d.comm = &rankComm{g: g, rank: r}
		return nil
	}
}

// Run initializes and runs the models, one per rank, concurrently. When
// a rank fails the others are aborted and the first failure is returned.
func (g *Group) Run(ctx context.Context, models []*Model) error {
	if len(models) != g.Size() {
		return fmt.Errorf("suntans: %d models for %d ranks", len(models), g.Size())
	}
	eg, ctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			g.b.abort(ctx.Err())
		case <-stop:
		}
	}()
	errs := make([]error, len(models))
	for r, d := range models {
		r, d := r, d
		eg.Go(func() error {
			err := d.Init()
			if err == nil {
				err = d.Run()
			}
			if err != nil {
				g.b.abort(err)
				errs[r] = fmt.Errorf("suntans: rank %d: %w", r, err)
				if errors.Is(err, ErrAborted) {
					errs[r] = err
				}
			}
			return errs[r]
		})
	}
	err := eg.Wait()
	for _, e := range errs {
		if e != nil && !errors.Is(e, ErrAborted) {
			return e
		}
	}
	return err
}

type rankComm struct {
	g    *Group
	rank int
}

func (c *rankComm) Size() int { return c.g.Size() }
func (c *rankComm) Rank() int { return c.rank }

func (c *rankComm) ExchangeCells(v []float64, stride int) error {
	return c.exchange(v, stride, c.g.parts[c.rank].GhostCells, func(i int) int { return c.g.owner[i] })
}

func (c *rankComm) ExchangeEdges(v []float64, stride int) error {
	m := c.g.mesh
	return c.exchange(v, stride, c.g.parts[c.rank].GhostEdges, func(j int) int {
		nc1, _ := m.Grad[j][0].Cell()
		return c.g.owner[nc1]
	})
}

// exchange posts v, waits for all ranks to post, copies the ghost rows
// from their owners, and waits again so no rank modifies its array while
// it is being read.
func (c *rankComm) exchange(v []float64, stride int, ghosts []int, owner func(int) int) error {
	g := c.g
	g.slots[c.rank] = v
	if err := g.b.wait(); err != nil {
		return err
	}
	for _, i := range ghosts {
		src := g.slots[owner(i)]
		copy(v[i*stride:(i+1)*stride], src[i*stride:(i+1)*stride])
	}
	return g.b.wait()
}

func (c *rankComm) AllReduceSum(x float64) (float64, error) {
	return c.reduce(x, func(a, b float64) float64 { return a + b })
}

func (c *rankComm) AllReduceMax(x float64) (float64, error) {
	return c.reduce(x, func(a, b float64) float64 {
		if b > a {
			return b
		}
		return a
	})
}

// reduce combines the values in rank order so all ranks get
// bitwise-identical results.
func (c *rankComm) reduce(x float64, op func(a, b float64) float64) (float64, error) {
	g := c.g
	g.reduce[c.rank] = x
	if err := g.b.wait(); err != nil {
		return 0, err
	}
	r := g.reduce[0]
	for _, v := range g.reduce[1:] {
		r = op(r, v)
	}
	if err := g.b.wait(); err != nil {
		return 0, err
	}
	return r, nil
}

// barrier blocks goroutines until n of them have arrived. Once
// aborted every waiting and future call returns the abort error.
type barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n, count   int
	generation int
	err        error
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}
	for gen == b.generation && b.err == nil {
		b.cond.Wait()
	}
	if gen == b.generation {
		return b.err
	}
	return nil
}

func (b *barrier) abort(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = fmt.Errorf("%w: %v", ErrAborted, err)
	}
	b.cond.Broadcast()
}

func (d *Model) exchangeCells(v []float64) error {
	return d.comm.ExchangeCells(v, 1)
}

func (d *Model) exchangeEdges(v []float64) error {
	return d.comm.ExchangeEdges(v, 1)
}

func (d *Model) exchangeCellFields(fields ...Layered) error {
	for _, f := range fields {
		if err := d.comm.ExchangeCells(f.Elements, f.Stride()); err != nil {
			return err
		}
	}
	return nil
}

func (d *Model) exchangeEdgeFields(fields ...Layered) error {
	for _, f := range fields {
		if err := d.comm.ExchangeEdges(f.Elements, f.Stride()); err != nil {
			return err
		}
	}
	return nil
}
