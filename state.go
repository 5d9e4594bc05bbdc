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
	"github.com/ctessum/sparse"
)

// Layered is a two-dimensional array indexed by cell or edge and then
// by layer.
type Layered struct {
	*sparse.DenseArray
}

// NewLayered returns a zeroed array of n rows of nk layers.
func NewLayered(n, nk int) Layered {
	return Layered{sparse.ZerosDense(n, nk)}
}

// Row returns the layers of row i. Modifying the returned slice
// modifies the array.
func (l Layered) Row(i int) []float64 {
	nk := l.Shape[1]
	return l.Elements[i*nk : (i+1)*nk : (i+1)*nk]
}

// At returns the value at row i and layer k.
func (l Layered) At(i, k int) float64 { return l.Elements[i*l.Shape[1]+k] }

// Set sets the value at row i and layer k. Unlike the underlying
// sparse.DenseArray.Set it stores zeros.
func (l Layered) Set(v float64, i, k int) { l.Elements[i*l.Shape[1]+k] = v }

// Stride returns the number of layers per row.
func (l Layered) Stride() int { return l.Shape[1] }

// CopyFrom copies the contents of o into l.
func (l Layered) CopyFrom(o Layered) { copy(l.Elements, o.Elements) }

// Zero sets all values to zero.
func (l Layered) Zero() {
	for i := range l.Elements {
		l.Elements[i] = 0
	}
}

// State holds the time-varying fields of the model. Cell arrays are
// indexed by cell, edge arrays by edge, and layered arrays additionally
// by layer with layer 0 at the top.
type State struct {
	// N is the number of completed time steps and Time the model time [s].
	N    int
	Time float64

	H         []float64 // free-surface elevation [m]
	HOld      []float64 // free-surface elevation at the previous step [m]
	Dhdt      []float64 // rate of change of the free surface [m/s]
	BoundaryH []float64 // prescribed elevation of specified-elevation cells [m]
	Active    []bool    // whether each column is wet
	Ctop      []int     // top active layer of each cell
	CtopOld   []int
	DZZ       Layered // layer thicknesses [m]
	DZZOld    Layered

	// W, WOld and WOld2 are vertical velocities at the Nkmax+1 layer
	// interfaces of each cell; interface k is the top of layer k [m/s].
	W, WOld, WOld2 Layered
	Q              Layered // non-hydrostatic pressure divided by the reference density [m²/s²]
	Rho            Layered // density anomaly divided by the reference density
	S, T           Layered // salinity and temperature
	NuT, KappaT    Layered // eddy viscosity and diffusivity [m²/s]
	Uc, Vc         Layered // cell-centered horizontal velocity [m/s]

	U, UOld, UOld2 Layered // edge-normal velocity [m/s]
	BoundaryU      Layered // prescribed normal velocity of specified-flux edges [m/s]
	DZF            Layered // flux-face heights [m]
	Etop, EtopOld  []int   // top active layer of each edge
	E              Layered // implicit free-surface coupling of each edge layer
	D              []float64
	CdB, CdT       []float64 // bottom and top drag coefficients
	TauT           []float64 // kinematic wind stress along the edge normal [m²/s²]

	// CnU, CnU2, CnW and CnW2 hold the explicit tendencies of the two
	// previous steps.
	CnU, CnU2 Layered
	CnW, CnW2 Layered

	// Initial and Current are the global conserved quantities at the
	// start of the run and after the most recent step.
	Initial, Current *Conservatives
}

// NewState allocates the state for mesh m with a flat free surface
// at zero elevation.
func NewState(m *Mesh) *State {
	nk := m.Nkmax
	return &State{
		H:         make([]float64, m.Nc),
		HOld:      make([]float64, m.Nc),
		Dhdt:      make([]float64, m.Nc),
		BoundaryH: make([]float64, m.Nc),
		Active:    make([]bool, m.Nc),
		Ctop:      make([]int, m.Nc),
		CtopOld:   make([]int, m.Nc),
		DZZ:       NewLayered(m.Nc, nk),
		DZZOld:    NewLayered(m.Nc, nk),
		W:         NewLayered(m.Nc, nk+1),
		WOld:      NewLayered(m.Nc, nk+1),
		WOld2:     NewLayered(m.Nc, nk+1),
		Q:         NewLayered(m.Nc, nk),
		Rho:       NewLayered(m.Nc, nk),
		S:         NewLayered(m.Nc, nk),
		T:         NewLayered(m.Nc, nk),
		NuT:       NewLayered(m.Nc, nk),
		KappaT:    NewLayered(m.Nc, nk),
		Uc:        NewLayered(m.Nc, nk),
		Vc:        NewLayered(m.Nc, nk),
		U:         NewLayered(m.Ne, nk),
		UOld:      NewLayered(m.Ne, nk),
		UOld2:     NewLayered(m.Ne, nk),
		BoundaryU: NewLayered(m.Ne, nk),
		DZF:       NewLayered(m.Ne, nk),
		Etop:      make([]int, m.Ne),
		EtopOld:   make([]int, m.Ne),
		E:         NewLayered(m.Ne, nk),
		D:         make([]float64, m.Ne),
		CdB:       make([]float64, m.Ne),
		CdT:       make([]float64, m.Ne),
		TauT:      make([]float64, m.Ne),
		CnU:       NewLayered(m.Ne, nk),
		CnU2:      NewLayered(m.Ne, nk),
		CnW:       NewLayered(m.Nc, nk+1),
		CnW2:      NewLayered(m.Nc, nk+1),
	}
}

// workspace holds per-step scratch arrays.
type workspace struct {
	utmp   Layered   // provisional edge velocity
	ut     Layered   // face values of advected quantities
	stmp   Layered   // cell-centered tendencies
	stmp2  Layered
	wtmp   Layered   // provisional vertical velocity
	wc     Layered   // cell-centered vertical velocity
	qc     Layered   // non-hydrostatic pressure correction
	qsrc   Layered   // non-hydrostatic pressure source
	qfull  Layered   // operator input with ghost values
	qcoef  Layered   // vertical coupling of the pressure operator
	qD     []float64 // horizontal coupling of the pressure operator
	htmp   []float64
	hcoef  []float64
	hfull  []float64
	hfcoef [][]float64
}

func newWorkspace(m *Mesh) workspace {
	nk := m.Nkmax
	w := workspace{
		utmp:   NewLayered(m.Ne, nk),
		ut:     NewLayered(m.Ne, nk),
		stmp:   NewLayered(m.Nc, nk),
		stmp2:  NewLayered(m.Nc, nk),
		wtmp:   NewLayered(m.Nc, nk+1),
		wc:     NewLayered(m.Nc, nk),
		qc:     NewLayered(m.Nc, nk),
		qsrc:   NewLayered(m.Nc, nk),
		qfull:  NewLayered(m.Nc, nk),
		qcoef:  NewLayered(m.Nc, nk),
		qD:     make([]float64, m.Ne),
		htmp:   make([]float64, m.Nc),
		hcoef:  make([]float64, m.Nc),
		hfull:  make([]float64, m.Nc),
		hfcoef: make([][]float64, m.Nc),
	}
	for i := range w.hfcoef {
		w.hfcoef[i] = make([]float64, len(m.Faces[i]))
	}
	return w
}
