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
)

func TestLogLaw(t *testing.T) {
	if have := logLaw(0.001, 0.01, 0.42); have != bufferDrag {
		t.Errorf("below the roughness height: have %g, want %g", have, float64(bufferDrag))
	}
	z0 := 0.01
	z := z0 * math.E
	if have, want := logLaw(z, z0, 0.4), 0.16; absDifferent(have, want, 1e-15) {
		t.Errorf("have %g, want %g", have, want)
	}
	if logLaw(1, z0, 0.4) >= logLaw(0.1, z0, 0.4) {
		t.Error("the drag coefficient should decrease with height")
	}
}

func TestDragCoefficients(t *testing.T) {
	c := DefaultConfig()
	c.CdB, c.CdT = 0.0025, 0.001
	d := slopingModel(t, c)
	m, st := d.Mesh, d.State
	d.setFluxHeight()
	d.setDragCoefficients()
	for _, j := range m.Edges(Computational) {
		if st.CdT[j] != 0.001 {
			t.Errorf("edge %d: top drag %g", j, st.CdT[j])
		}
		want := 0.0025
		if st.Etop[j] == m.Nke[j]-1 && st.DZF.At(j, m.Nke[j]-1) < c.BufferHeight {
			want = bufferDrag
		}
		if st.CdB[j] != want {
			t.Errorf("edge %d: bottom drag %g, want %g", j, st.CdB[j], want)
		}
	}

	c.Z0B = 0.01
	d = slopingModel(t, c)
	m, st = d.Mesh, d.State
	d.setFluxHeight()
	d.setDragCoefficients()
	var checked int
	for _, j := range m.Edges(Computational) {
		nke := m.Nke[j]
		if st.Etop[j] == nke-1 {
			continue
		}
		want := logLaw(0.5*st.DZF.At(j, nke-1), c.Z0B, c.Kappa)
		if absDifferent(st.CdB[j], want, 1e-15) {
			t.Errorf("edge %d: bottom drag %g, want %g", j, st.CdB[j], want)
		}
		checked++
	}
	if checked == 0 {
		t.Error("no multi-layer edges")
	}
}

func TestParabolicViscosity(t *testing.T) {
	m, err := Grid{Nx: 1, Ny: 1, Dx: 10, Dy: 10, DZ: UniformLayers(4, 8), Depth: flatDepth(8)}.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(m, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	st := d.State
	st.Uc.Set(0.3, 0, 3)
	st.Vc.Set(0.4, 0, 3)
	p := ParabolicViscosity{Cd: 0.0025, Kappa: 0.4, Prandtl: 2}
	if err := p.EddyViscosity(m, st, []int{0}); err != nil {
		t.Fatal(err)
	}
	ustar := 0.05 * 0.5
	for k, zc := range []float64{7, 5, 3, 1} {
		want := 0.4 * ustar * zc * (1 - zc/8)
		if absDifferent(st.NuT.At(0, k), want, 1e-15) {
			t.Errorf("layer %d: viscosity %g, want %g", k, st.NuT.At(0, k), want)
		}
		if absDifferent(st.KappaT.At(0, k), want/2, 1e-15) {
			t.Errorf("layer %d: diffusivity %g, want %g", k, st.KappaT.At(0, k), want/2)
		}
	}
}

func TestDensity(t *testing.T) {
	m, err := Grid{Nx: 2, Ny: 1, Dx: 10, Dy: 10, DZ: UniformLayers(3, 6), Depth: flatDepth(6)}.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	eos := LinearEOS{Beta: 7.7e-4, Alpha: 2e-4}
	d, err := New(m, DefaultConfig(), WithEOS(eos))
	if err != nil {
		t.Fatal(err)
	}
	d.InitFuncs = []DomainManipulator{SetScalars(
		func(x, y, z float64) float64 { return 30 - z },
		func(x, y, z float64) float64 { return 10 + x/10 },
	)}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	d.setDensity()
	st := d.State
	for i := 0; i < m.Nc; i++ {
		for k, zc := range []float64{-1, -3, -5} {
			s, temp := 30-zc, 10+m.Center[i].X/10
			if st.S.At(i, k) != s || st.T.At(i, k) != temp {
				t.Errorf("cell %d layer %d: scalars (%g, %g), want (%g, %g)", i, k,
					st.S.At(i, k), st.T.At(i, k), s, temp)
			}
			if want := eos.Beta*s - eos.Alpha*temp; absDifferent(st.Rho.At(i, k), want, 1e-15) {
				t.Errorf("cell %d layer %d: density %g, want %g", i, k, st.Rho.At(i, k), want)
			}
		}
	}
}
