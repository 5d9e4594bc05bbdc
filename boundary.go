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
	"sort"
)

// Forcing sets the boundary values and surface stresses in st for
// time t [s].
type Forcing interface {
	Force(t float64, m *Mesh, st *State) error
}

// Forcings applies several forcings in order.
type Forcings []Forcing

// Force implements Forcing.
func (f Forcings) Force(t float64, m *Mesh, st *State) error {
	for _, ff := range f {
		if err := ff.Force(t, m, st); err != nil {
			return err
		}
	}
	return nil
}

// Tide prescribes a sinusoidal elevation at every specified-elevation
// cell.
type Tide struct {
	Mean, Amplitude float64 // m
	Period          float64 // s
	Phase           float64 // radians
}

// Force implements Forcing.
func (f Tide) Force(t float64, m *Mesh, st *State) error {
	if !(f.Period > 0) {
		return fmt.Errorf("suntans: tidal period %g should be >0", f.Period)
	}
	h := f.Mean + f.Amplitude*math.Cos(2*math.Pi*t/f.Period-f.Phase)
	for _, i := range m.Cells(ElevationCell) {
		st.BoundaryH[i] = h
	}
	return nil
}

// Inflow prescribes a uniform inflow speed through every specified-flux
// edge, ramped up with e-folding time Ramp [s] when Ramp > 0.
type Inflow struct {
	Velocity float64 // m/s, positive into the domain
	Ramp     float64
}

// Force implements Forcing.
func (f Inflow) Force(t float64, m *Mesh, st *State) error {
	v := f.Velocity
	if f.Ramp > 0 {
		v *= 1 - math.Exp(-t/f.Ramp)
	}
	for _, j := range m.Edges(SpecifiedFlux) {
		ub := st.BoundaryU.Row(j)
		for k := 0; k < m.Nke[j]; k++ {
			ub[k] = -v
		}
	}
	return nil
}

// Wind prescribes a uniform kinematic wind stress [m²/s²].
type Wind struct {
	TauX, TauY float64
}

// Force implements Forcing.
func (f Wind) Force(t float64, m *Mesh, st *State) error {
	for j := range st.TauT {
		st.TauT[j] = f.TauX*m.N1[j] + f.TauY*m.N2[j]
	}
	return nil
}

// FluxSeries prescribes a time series of inflow speeds with one value
// per specified-flux edge, interpolated linearly in time and held
// constant outside the series.
type FluxSeries struct {
	Times    []float64   // s, increasing
	Velocity [][]float64 // [time][specified-flux edge], positive into the domain
}

// NewFluxSeries checks that the series matches the specified-flux
// edges of m.
func NewFluxSeries(m *Mesh, times []float64, velocity [][]float64) (*FluxSeries, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("suntans: empty boundary time series")
	}
	if len(times) != len(velocity) {
		return nil, fmt.Errorf("suntans: boundary series has %d times but %d records", len(times), len(velocity))
	}
	if !sort.Float64sAreSorted(times) {
		return nil, fmt.Errorf("suntans: boundary series times are not increasing")
	}
	ne := len(m.Edges(SpecifiedFlux))
	for i, v := range velocity {
		if len(v) != ne {
			return nil, fmt.Errorf("suntans: inconsistent boundary counts: record %d has %d values "+
				"but there are %d specified-flux edges", i, len(v), ne)
		}
	}
	return &FluxSeries{Times: times, Velocity: velocity}, nil
}

// Force implements Forcing.
func (f *FluxSeries) Force(t float64, m *Mesh, st *State) error {
	edges := m.Edges(SpecifiedFlux)
	i := sort.SearchFloat64s(f.Times, t)
	var lo, hi int
	var w float64
	switch {
	case i == 0:
		lo, hi = 0, 0
	case i == len(f.Times):
		lo, hi = i-1, i-1
	default:
		lo, hi = i-1, i
		w = (t - f.Times[lo]) / (f.Times[hi] - f.Times[lo])
	}
	for e, j := range edges {
		v := (1-w)*f.Velocity[lo][e] + w*f.Velocity[hi][e]
		ub := st.BoundaryU.Row(j)
		for k := 0; k < m.Nke[j]; k++ {
			ub[k] = -v
		}
	}
	return nil
}
