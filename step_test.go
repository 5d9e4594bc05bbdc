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
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// bumpGrid is a closed basin with a gently sloping bottom.
var bumpGrid = Grid{Nx: 6, Ny: 4, Dx: 50, Dy: 50, DZ: UniformLayers(5, 5),
	Depth: func(x, y float64) float64 { return 4 + x/300 }}

// bump is a Gaussian free-surface perturbation in the middle of
// bumpGrid.
func bump(x, y float64) float64 {
	r2 := (x-150)*(x-150) + (y-100)*(y-100)
	return 0.2 * math.Exp(-r2/(2*60*60))
}

func runSteps(t *testing.T, d *Model, n int) {
	d.RunFuncs = []DomainManipulator{Step(), StopAfter(n)}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
}

func TestVolumeConservation(t *testing.T) {
	for _, nonhydrostatic := range []bool{false, true} {
		name := "hydrostatic"
		if nonhydrostatic {
			name = "nonhydrostatic"
		}
		t.Run(name, func(t *testing.T) {
			m, err := bumpGrid.Mesh()
			if err != nil {
				t.Fatal(err)
			}
			c := DefaultConfig()
			c.Dt = 5
			c.Epsilon = 1e-13
			c.Nonhydrostatic = nonhydrostatic
			c.NuH = 0.1
			d, err := New(m, c, InitialElevation(bump), WithClosure(ConstantViscosity{NuT: 1e-4, KappaT: 1e-4}))
			if err != nil {
				t.Fatal(err)
			}
			runSteps(t, d, 30)
			st := d.State
			if st.N != 30 {
				t.Errorf("ran %d steps, want 30", st.N)
			}
			v0, v1 := st.Initial.Volume.Value(), st.Current.Volume.Value()
			if different(v0, v1, 1e-10) {
				t.Errorf("volume changed from %.12g to %.12g", v0, v1)
			}
			var moved bool
			for _, j := range m.Edges(Computational) {
				for _, u := range st.U.Row(j) {
					if u != 0 {
						moved = true
					}
				}
			}
			if !moved {
				t.Error("the bump should cause flow")
			}
			if d.HStats.Count() != 30 {
				t.Errorf("free-surface solves: have %d, want 30", d.HStats.Count())
			}
		})
	}
}

func TestRestStaysAtRest(t *testing.T) {
	for _, nk := range []int{1, 3} {
		m, err := Grid{Nx: 1, Ny: 1, Dx: 100, Dy: 100, DZ: UniformLayers(nk, 3), Depth: flatDepth(3)}.Mesh()
		if err != nil {
			t.Fatal(err)
		}
		c := DefaultConfig()
		c.Theta = 1
		d, err := New(m, c)
		if err != nil {
			t.Fatal(err)
		}
		runSteps(t, d, 100)
		st := d.State
		if st.H[0] != 0 {
			t.Errorf("%d layers: elevation %g after 100 steps", nk, st.H[0])
		}
		for n, u := range st.U.Elements {
			if u != 0 {
				t.Errorf("%d layers: velocity %d is %g after 100 steps", nk, n, u)
			}
		}
		for n, w := range st.W.Elements {
			if w != 0 {
				t.Errorf("%d layers: vertical velocity %d is %g after 100 steps", nk, n, w)
			}
		}
		if different(st.Time, 100*c.Dt, 1e-12) {
			t.Errorf("time: have %g, want %g", st.Time, 100*c.Dt)
		}
	}
}

func TestInflowMassBalance(t *testing.T) {
	const (
		dx, dy = 20., 10.
		v      = 0.05
	)
	m, err := Grid{Nx: 1, Ny: 1, Dx: dx, Dy: dy, DZ: []float64{1}, Depth: flatDepth(1),
		Boundary: func(a, b geom.Point) EdgeClass {
			if a.X == 0 && b.X == 0 {
				return SpecifiedFlux
			}
			return Closed
		}}.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	c := DefaultConfig()
	c.Theta = 1
	d, err := New(m, c, WithForcing(Inflow{Velocity: v}))
	if err != nil {
		t.Fatal(err)
	}
	runSteps(t, d, 1)
	want := c.Dt * v * dy / (dx * dy)
	if different(d.State.H[0], want, 1e-12) {
		t.Errorf("elevation change: have %.15g, want %.15g", d.State.H[0], want)
	}
	if j := m.Edges(SpecifiedFlux)[0]; d.State.U.At(j, 0) != -v {
		t.Errorf("boundary velocity: have %g, want %g", d.State.U.At(j, 0), -v)
	}
	if different(d.State.Dhdt[0], want/c.Dt, 1e-12) {
		t.Errorf("dh/dt: have %g, want %g", d.State.Dhdt[0], want/c.Dt)
	}
}

func TestTideDrivesFlow(t *testing.T) {
	m, err := Grid{Nx: 5, Ny: 1, Dx: 100, Dy: 100, DZ: UniformLayers(2, 4), Depth: flatDepth(4),
		Cells: func(i int, c geom.Point) CellClass {
			if i == 4 {
				return ElevationCell
			}
			return ComputationalCell
		}}.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	c := DefaultConfig()
	c.Dt = 20
	d, err := New(m, c, WithForcing(Tide{Amplitude: 0.1, Period: 600, Phase: math.Pi / 2}))
	if err != nil {
		t.Fatal(err)
	}
	runSteps(t, d, 5)
	st := d.State
	want := 0.1 * math.Cos(2*math.Pi*st.Time/600-math.Pi/2)
	if absDifferent(st.H[4], want, 1e-12) {
		t.Errorf("elevation cell: have %g, want %g", st.H[4], want)
	}
	if !(st.H[3] > 0) {
		t.Errorf("the rising tide should raise the neighboring cell: %g", st.H[3])
	}
	// The outer edges of the elevation cell balance the flux through
	// the inner one.
	for k := 0; k < 2; k++ {
		var sum float64
		for nf, j := range m.Faces[4] {
			sum += st.U.At(j, k) * m.Df[j] * m.Normal[4][nf]
		}
		if absDifferent(sum, 0, 1e-12) {
			t.Errorf("layer %d: elevation cell divergence %g", k, sum)
		}
	}
}

func TestBlowup(t *testing.T) {
	m, err := bumpGrid.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(m, DefaultConfig(), InitialElevation(bump))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	d.State.U.Set(math.NaN(), m.Edges(Computational)[0], 0)
	err = d.checkBlowup()
	if !errors.Is(err, ErrBlowup) {
		t.Errorf("have %v, want ErrBlowup", err)
	}
}

func TestLog(t *testing.T) {
	m, err := bumpGrid.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(m, DefaultConfig(), InitialElevation(bump))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	d.RunFuncs = []DomainManipulator{Step(), Log(&buf, 2), StopAfter(4)}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("have %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "Step 4 ") {
		t.Errorf("log line: %q", lines[1])
	}
	if s := d.SolverSummary(); !strings.Contains(s, "4 solves") {
		t.Errorf("summary: %q", s)
	}
}

func TestMomentumConservationWarning(t *testing.T) {
	m, err := bumpGrid.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.Formatter = &logrus.TextFormatter{DisableColors: true}
	c := DefaultConfig()
	if c.ThetaM >= 0 || !c.Nonlinear {
		t.Fatalf("vertical momentum advection should be explicit: ThetaM=%g", c.ThetaM)
	}
	d, err := New(m, c, InitialElevation(bump), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	runSteps(t, d, 10)
	if strings.Contains(buf.String(), "momentum advection is not conservative") {
		t.Errorf("closed basin:\n%s", buf.String())
	}
}
