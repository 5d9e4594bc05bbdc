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

package suntansutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	suntans "github.com/caozd999/suntans-general-vertical-coordinate"
	"github.com/kr/pretty"
	"github.com/lnashier/viper"
)

// defaultConfig returns a configuration holding the default value of
// every option.
func defaultConfig() *viper.Viper {
	v := viper.New()
	for _, o := range options {
		v.Set(o.name, o.defaultVal)
	}
	return v
}

// channelConfig is a 4×2 channel with inflow in the west and a tide
// in the east.
func channelConfig() *viper.Viper {
	v := defaultConfig()
	v.Set("Grid.Nx", 4)
	v.Set("Grid.Ny", 2)
	v.Set("Grid.Dx", 10.0)
	v.Set("Grid.Dy", 5.0)
	v.Set("Grid.Depth", 3.0)
	v.Set("Grid.Slope", 0.1)
	v.Set("Grid.Layers", 4)
	v.Set("Grid.Boundaries", map[string]interface{}{"west": "flux", "East": "elevation"})
	return v
}

func TestMeshConfig(t *testing.T) {
	g, err := MeshConfig(channelConfig())
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(g.DZ, []float64{1.75, 1.75, 1.75, 1.75}); len(diff) != 0 {
		t.Errorf("layers: %v", diff)
	}
	if have, want := g.Depth(20, 0), 5.0; have != want {
		t.Errorf("depth: have %g, want %g", have, want)
	}
	m, err := g.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	have := map[string]int{
		"flux edges":      len(m.Edges(suntans.SpecifiedFlux)),
		"elevation edges": len(m.Edges(suntans.SpecifiedElevation)),
		"closed edges":    len(m.Edges(suntans.Closed)),
		"elevation cells": len(m.Cells(suntans.ElevationCell)),
	}
	want := map[string]int{
		"flux edges":      2,
		"elevation edges": 4,
		"closed edges":    6,
		"elevation cells": 2,
	}
	if diff := pretty.Diff(have, want); len(diff) != 0 {
		t.Errorf("mesh classes: %v", diff)
	}
}

func TestMeshConfigErrors(t *testing.T) {
	for name, set := range map[string]func(v *viper.Viper){
		"depth":   func(v *viper.Viper) { v.Set("Grid.Depth", 0.0) },
		"slope":   func(v *viper.Viper) { v.Set("Grid.Slope", -1.0) },
		"layers":  func(v *viper.Viper) { v.Set("Grid.Layers", 0) },
		"stretch": func(v *viper.Viper) { v.Set("Grid.Stretch", -2.0) },
		"side": func(v *viper.Viper) {
			v.Set("Grid.Boundaries", map[string]string{"up": "closed"})
		},
		"type": func(v *viper.Viper) {
			v.Set("Grid.Boundaries", map[string]string{"west": "open"})
		},
		"json": func(v *viper.Viper) { v.Set("Grid.Boundaries", `{"west": flux}`) },
	} {
		v := channelConfig()
		set(v)
		if _, err := MeshConfig(v); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLayerThicknesses(t *testing.T) {
	dz, err := layerThicknesses(3, 2, 7)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(dz, []float64{1, 2, 4}); len(diff) != 0 {
		t.Error(diff)
	}
}

func TestModelConfig(t *testing.T) {
	v := defaultConfig()
	c, err := ModelConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(c, suntans.DefaultConfig()); len(diff) != 0 {
		t.Errorf("the default options should match the default configuration: %v", diff)
	}

	v.Set("Model.Dt", 5.0)
	v.Set("Model.ExplicitScheme", "ab2")
	v.Set("Model.QPrecond", "diagonal")
	v.Set("Model.Nonhydrostatic", true)
	v.Set("Model.CdB", -1.0)
	c, err = ModelConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	want := suntans.DefaultConfig()
	want.Dt = 5
	want.Explicit = suntans.AB2
	want.QPrecond = suntans.DiagonalPreconditioner
	want.Nonhydrostatic = true
	want.CdB = -1
	if diff := pretty.Diff(c, want); len(diff) != 0 {
		t.Error(diff)
	}

	for name, set := range map[string]func(v *viper.Viper){
		"explicit": func(v *viper.Viper) { v.Set("Model.ExplicitScheme", "rk4") },
		"implicit": func(v *viper.Viper) { v.Set("Model.ImplicitScheme", "euler") },
		"precond":  func(v *viper.Viper) { v.Set("Model.QPrecond", "ilu") },
		"dt":       func(v *viper.Viper) { v.Set("Model.Dt", 0.0) },
		"theta":    func(v *viper.Viper) { v.Set("Model.Theta", 2.0) },
	} {
		v := defaultConfig()
		set(v)
		if _, err := ModelConfig(v); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestForcingConfig(t *testing.T) {
	v := channelConfig()
	v.Set("Tide.Amplitude", 0.5)
	phase := 90.0
	v.Set("Tide.Phase", phase)
	v.Set("Inflow.Velocity", 0.1)
	v.Set("Wind.TauX", 1e-4)
	g, err := MeshConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	m, err := g.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	f, err := ForcingConfig(v, m)
	if err != nil {
		t.Fatal(err)
	}
	want := suntans.Forcings{
		suntans.Tide{Amplitude: 0.5, Period: 44712, Phase: phase * math.Pi / 180},
		suntans.Inflow{Velocity: 0.1},
		suntans.Wind{TauX: 1e-4},
	}
	if diff := pretty.Diff(f, want); len(diff) != 0 {
		t.Error(diff)
	}

	// An inflow file replaces the uniform inflow.
	path := filepath.Join(t.TempDir(), "inflow.toml")
	if err := os.WriteFile(path, []byte("Times = [0.0, 60.0]\nVelocity = [[0.1, 0.2], [0.3, 0.4]]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	v.Set("Inflow.File", path)
	f, err = ForcingConfig(v, m)
	if err != nil {
		t.Fatal(err)
	}
	series := &suntans.FluxSeries{
		Times:    []float64{0, 60},
		Velocity: [][]float64{{0.1, 0.2}, {0.3, 0.4}},
	}
	if diff := pretty.Diff(f.(suntans.Forcings)[1], series); len(diff) != 0 {
		t.Error(diff)
	}

	if err := os.WriteFile(path, []byte("Times = [0.0]\nVelocity = [[0.1]]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ForcingConfig(v, m); err == nil {
		t.Error("expected an error for the wrong number of edges")
	}
}

func TestInitialConfig(t *testing.T) {
	v := channelConfig()
	g, err := MeshConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	v.Set("Initial.Amplitude", 0.2)
	v.Set("Initial.Salinity", 30.0)
	v.Set("Turbulence.Closure", "Parabolic")
	opts, init, err := InitialConfig(v, g)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 3 || len(init) != 1 {
		t.Errorf("have %d options and %d init functions, want 3 and 1", len(opts), len(init))
	}

	m, err := g.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	d, err := suntans.New(m, suntans.DefaultConfig(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	d.InitFuncs = init
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Closure.(suntans.ParabolicViscosity); !ok {
		t.Errorf("closure: %#v", d.Closure)
	}
	// The bump is centered at (20, 5), on the edge between cells 1 and 2.
	if d.State.H[1] != d.State.H[2] || !(d.State.H[1] > d.State.H[0]) {
		t.Errorf("elevation: %v", d.State.H)
	}
	if s := d.State.S.At(0, 0); s != 30 {
		t.Errorf("salinity: %g", s)
	}

	v.Set("Turbulence.Closure", "k-epsilon")
	if _, _, err := InitialConfig(v, g); err == nil {
		t.Error("expected an error for an invalid closure")
	}
	v.Set("Turbulence.Closure", "none")
	v.Set("Initial.Width", 0.0)
	if _, _, err := InitialConfig(v, g); err == nil {
		t.Error("expected an error for a zero width")
	}
}

func TestGetStringMapString(t *testing.T) {
	v := viper.New()
	want := map[string]string{"west": "flux"}
	for _, val := range []interface{}{
		`{"west": "flux"}`,
		map[string]interface{}{"west": "flux"},
		map[string]string{"west": "flux"},
	} {
		v.Set("b", val)
		have, err := GetStringMapString("b", v)
		if err != nil {
			t.Fatal(err)
		}
		if diff := pretty.Diff(have, want); len(diff) != 0 {
			t.Errorf("%#v: %v", val, diff)
		}
	}

	v.Set("b", `{"west": "flux"`)
	if _, err := GetStringMapString("b", v); err == nil {
		t.Error("expected an error for invalid JSON")
	}
}

func TestCheckLogFile(t *testing.T) {
	if have := checkLogFile("", "out/run.nc"); have != "out/run.log" {
		t.Errorf("have %q", have)
	}
	if have := checkLogFile("x.log", "out/run.nc"); have != "x.log" {
		t.Errorf("have %q", have)
	}
	if _, err := checkOutputFile(""); err == nil {
		t.Error("expected an error for an empty output file")
	}
	if _, err := checkOutputFile(filepath.Join(t.TempDir(), "missing", "run.nc")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
