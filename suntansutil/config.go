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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	suntans "github.com/caozd999/suntans-general-vertical-coordinate"
	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// MeshConfig returns the rectangular grid described by the Grid.*
// configuration variables.
func MeshConfig(cfg *viper.Viper) (*suntans.Grid, error) {
	g := &suntans.Grid{
		Nx: cfg.GetInt("Grid.Nx"),
		Ny: cfg.GetInt("Grid.Ny"),
		Dx: cfg.GetFloat64("Grid.Dx"),
		Dy: cfg.GetFloat64("Grid.Dy"),
	}
	depth, slope := cfg.GetFloat64("Grid.Depth"), cfg.GetFloat64("Grid.Slope")
	if !(depth > 0) {
		return nil, fmt.Errorf("suntans: Grid.Depth=%g but should be >0", depth)
	}
	if depth+slope*float64(g.Nx)*g.Dx <= 0 {
		return nil, fmt.Errorf("suntans: Grid.Slope=%g makes the eastern end of the grid dry", slope)
	}
	g.Depth = func(x, y float64) float64 { return depth + slope*x }

	dz, err := layerThicknesses(cfg.GetInt("Grid.Layers"), cfg.GetFloat64("Grid.Stretch"),
		depth+math.Max(0, slope*float64(g.Nx)*g.Dx))
	if err != nil {
		return nil, err
	}
	g.DZ = dz

	b, err := GetStringMapString("Grid.Boundaries", cfg)
	if err != nil {
		return nil, err
	}
	sides, err := boundarySides(b)
	if err != nil {
		return nil, err
	}
	xmax := float64(g.Nx) * g.Dx
	side := func(a, b geom.Point) string {
		switch {
		case a.X == 0 && b.X == 0:
			return "west"
		case a.X == xmax && b.X == xmax:
			return "east"
		case a.Y == 0 && b.Y == 0:
			return "south"
		default:
			return "north"
		}
	}
	g.Boundary = func(a, b geom.Point) suntans.EdgeClass {
		switch sides[side(a, b)] {
		case "flux":
			return suntans.SpecifiedFlux
		case "noslip":
			return suntans.NoSlipWall
		}
		return suntans.Closed
	}
	g.Cells = func(i int, c geom.Point) suntans.CellClass {
		ix, iy := i%g.Nx, i/g.Nx
		if (ix == 0 && sides["west"] == "elevation") || (ix == g.Nx-1 && sides["east"] == "elevation") ||
			(iy == 0 && sides["south"] == "elevation") || (iy == g.Ny-1 && sides["north"] == "elevation") {
			return suntans.ElevationCell
		}
		return suntans.ComputationalCell
	}
	return g, nil
}

// layerThicknesses returns n layers spanning depth whose thickness
// grows downward by the factor r.
func layerThicknesses(n int, r, depth float64) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("suntans: Grid.Layers=%d but should be >0", n)
	}
	if !(r > 0) {
		return nil, fmt.Errorf("suntans: Grid.Stretch=%g but should be >0", r)
	}
	if r == 1 {
		return suntans.UniformLayers(n, depth), nil
	}
	dz := make([]float64, n)
	var sum float64
	for k := range dz {
		dz[k] = math.Pow(r, float64(k))
		sum += dz[k]
	}
	for k := range dz {
		dz[k] *= depth / sum
	}
	return dz, nil
}

// boundarySides checks the boundary type of each side of the grid.
// Sides that are not given are closed.
func boundarySides(b map[string]string) (map[string]string, error) {
	sides := map[string]string{"west": "closed", "east": "closed", "south": "closed", "north": "closed"}
	for k, v := range b {
		k, v = strings.ToLower(k), strings.ToLower(os.ExpandEnv(v))
		if _, ok := sides[k]; !ok {
			return nil, fmt.Errorf("suntans: invalid grid side %q in Grid.Boundaries; valid sides are west, east, south and north", k)
		}
		switch v {
		case "closed", "noslip", "flux", "elevation":
		default:
			return nil, fmt.Errorf("suntans: invalid boundary type %q for the %s side; "+
				"valid types are closed, noslip, flux and elevation", v, k)
		}
		sides[k] = v
	}
	return sides, nil
}

// ModelConfig returns the solver configuration described by the
// Model.* configuration variables.
func ModelConfig(cfg *viper.Viper) (*suntans.Config, error) {
	c := suntans.DefaultConfig()
	var err error
	if c.Explicit, err = suntans.ParseExplicitScheme(cfg.GetString("Model.ExplicitScheme")); err != nil {
		return nil, err
	}
	if c.Implicit, err = suntans.ParseImplicitScheme(cfg.GetString("Model.ImplicitScheme")); err != nil {
		return nil, err
	}
	if c.QPrecond, err = suntans.ParseQPreconditioner(cfg.GetString("Model.QPrecond")); err != nil {
		return nil, err
	}
	for _, v := range []struct {
		name string
		p    *float64
	}{
		{"Model.Dt", &c.Dt},
		{"Model.Theta", &c.Theta},
		{"Model.ThetaRamp", &c.ThetaRamp},
		{"Model.ThetaM", &c.ThetaM},
		{"Model.Gravity", &c.Gravity},
		{"Model.Coriolis", &c.Coriolis},
		{"Model.Rho0", &c.Rho0},
		{"Model.Nu", &c.Nu},
		{"Model.NuH", &c.NuH},
		{"Model.CdB", &c.CdB},
		{"Model.CdT", &c.CdT},
		{"Model.CdW", &c.CdW},
		{"Model.Z0B", &c.Z0B},
		{"Model.Z0T", &c.Z0T},
		{"Model.Kappa", &c.Kappa},
		{"Model.BufferHeight", &c.BufferHeight},
		{"Model.Epsilon", &c.Epsilon},
		{"Model.QEpsilon", &c.QEpsilon},
		{"Model.DryCellHeight", &c.DryCellHeight},
		{"Model.Conserved", &c.Conserved},
	} {
		*v.p = cfg.GetFloat64(v.name)
	}
	c.MaxIters = cfg.GetInt("Model.MaxIters")
	c.QMaxIters = cfg.GetInt("Model.QMaxIters")
	c.Workers = cfg.GetInt("Model.Workers")
	c.HPrecond = cfg.GetBool("Model.HPrecond")
	c.ResNorm = cfg.GetBool("Model.ResNorm")
	c.Nonhydrostatic = cfg.GetBool("Model.Nonhydrostatic")
	c.Nonlinear = cfg.GetBool("Model.Nonlinear")
	c.ConserveMomentum = cfg.GetBool("Model.ConserveMomentum")
	c.WetDry = cfg.GetBool("Model.WetDry")
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ForcingConfig returns the boundary forcing described by the Tide.*,
// Inflow.* and Wind.* configuration variables. Inflow.File, when given,
// replaces the uniform inflow with a time series read from a TOML file.
func ForcingConfig(cfg *viper.Viper, m *suntans.Mesh) (suntans.Forcing, error) {
	var f suntans.Forcings
	if len(m.Cells(suntans.ElevationCell)) > 0 {
		f = append(f, suntans.Tide{
			Mean:      cfg.GetFloat64("Tide.Mean"),
			Amplitude: cfg.GetFloat64("Tide.Amplitude"),
			Period:    cfg.GetFloat64("Tide.Period"),
			Phase:     cfg.GetFloat64("Tide.Phase") * math.Pi / 180,
		})
	}
	if len(m.Edges(suntans.SpecifiedFlux)) > 0 {
		if file := os.ExpandEnv(cfg.GetString("Inflow.File")); file != "" {
			s, err := ReadFluxSeries(file, m)
			if err != nil {
				return nil, err
			}
			f = append(f, s)
		} else {
			f = append(f, suntans.Inflow{
				Velocity: cfg.GetFloat64("Inflow.Velocity"),
				Ramp:     cfg.GetFloat64("Inflow.Ramp"),
			})
		}
	}
	if tx, ty := cfg.GetFloat64("Wind.TauX"), cfg.GetFloat64("Wind.TauY"); tx != 0 || ty != 0 {
		f = append(f, suntans.Wind{TauX: tx, TauY: ty})
	}
	return f, nil
}

// fluxFile is the layout of a TOML inflow time series file:
//
//	Times = [0.0, 3600.0]
//	Velocity = [[0.1, 0.1], [0.2, 0.15]]
//
// with one row of inflow speeds [m/s] per time [s] and one column per
// specified-flux edge.
type fluxFile struct {
	Times    []float64
	Velocity [][]float64
}

// ReadFluxSeries reads an inflow time series from a TOML file.
func ReadFluxSeries(path string, m *suntans.Mesh) (*suntans.FluxSeries, error) {
	var f fluxFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("suntans: reading inflow file %s: %v", path, err)
	}
	return suntans.NewFluxSeries(m, f.Times, f.Velocity)
}

// InitialConfig returns the options that set the initial state from the
// Initial.* and Turbulence.* configuration variables: a Gaussian
// free-surface bump centered in the grid, a linear salinity profile and
// the turbulence closure.
func InitialConfig(cfg *viper.Viper, g *suntans.Grid) ([]suntans.Option, []suntans.DomainManipulator, error) {
	var opts []suntans.Option
	if a := cfg.GetFloat64("Initial.Amplitude"); a != 0 {
		w := cfg.GetFloat64("Initial.Width")
		if !(w > 0) {
			return nil, nil, fmt.Errorf("suntans: Initial.Width=%g but should be >0", w)
		}
		x0, y0 := float64(g.Nx)*g.Dx/2, float64(g.Ny)*g.Dy/2
		opts = append(opts, suntans.InitialElevation(func(x, y float64) float64 {
			r2 := (x-x0)*(x-x0) + (y-y0)*(y-y0)
			return a * math.Exp(-r2/(2*w*w))
		}))
	}

	var init []suntans.DomainManipulator
	s0, ds := cfg.GetFloat64("Initial.Salinity"), cfg.GetFloat64("Initial.SalinityGradient")
	if s0 != 0 || ds != 0 {
		opts = append(opts, suntans.WithEOS(suntans.LinearEOS{Beta: cfg.GetFloat64("Model.Beta")}))
		init = append(init, suntans.SetScalars(func(x, y, z float64) float64 { return s0 - ds*z }, nil))
	}

	switch c := strings.ToLower(cfg.GetString("Turbulence.Closure")); c {
	case "", "none":
	case "constant":
		opts = append(opts, suntans.WithClosure(suntans.ConstantViscosity{
			NuT:    cfg.GetFloat64("Turbulence.NuT"),
			KappaT: cfg.GetFloat64("Turbulence.KappaT"),
		}))
	case "parabolic":
		opts = append(opts, suntans.WithClosure(suntans.ParabolicViscosity{
			Cd:      cfg.GetFloat64("Turbulence.Cd"),
			Kappa:   cfg.GetFloat64("Model.Kappa"),
			Prandtl: cfg.GetFloat64("Turbulence.Prandtl"),
		}))
	default:
		return nil, nil, fmt.Errorf("suntans: invalid turbulence closure %q; valid closures are none, constant and parabolic", c)
	}
	return opts, init, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`suntans: you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("suntans: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// writeConfig saves the resolved solver configuration next to the
// output file.
func writeConfig(outputFile string, c *suntans.Config) error {
	path := strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".config.toml"
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("suntans: saving configuration: %v", err)
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("suntans: saving configuration: %v", err)
	}
	return f.Close()
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set from
// a command-line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapString(v), nil
	case string:
		o := make(map[string]string)
		if v == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("suntans: invalid value %q for %s: %v", v, varName, err)
		}
		return o, nil
	default:
		return cast.ToStringMapString(v), nil
	}
}
