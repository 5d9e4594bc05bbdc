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
	"strings"
)

// ExplicitScheme is the multi-step scheme for explicit tendencies.
type ExplicitScheme int

// Explicit schemes.
const (
	AB3 ExplicitScheme = iota // third-order Adams-Bashforth
	AB2                       // second-order Adams-Bashforth
	AX2                       // second-order extrapolation
)

// ParseExplicitScheme returns the scheme named s.
func ParseExplicitScheme(s string) (ExplicitScheme, error) {
	switch strings.ToUpper(s) {
	case "AB3":
		return AB3, nil
	case "AB2":
		return AB2, nil
	case "AX2":
		return AX2, nil
	}
	return 0, fmt.Errorf("suntans: invalid explicit time scheme %q", s)
}

func (s ExplicitScheme) String() string {
	switch s {
	case AB3:
		return "AB3"
	case AB2:
		return "AB2"
	case AX2:
		return "AX2"
	}
	return fmt.Sprintf("ExplicitScheme(%d)", int(s))
}

// coefficients returns the weights of the current and two previous
// explicit tendencies for step n. The first step and wetting and drying
// runs use forward Euler and the second step uses AB2.
func (s ExplicitScheme) coefficients(n int, wetDry bool) [3]float64 {
	switch {
	case n <= 1 || wetDry:
		return [3]float64{1, 0, 0}
	case n == 2:
		return [3]float64{1.5, -0.5, 0}
	}
	switch s {
	case AB2:
		return [3]float64{1.5, -0.5, 0}
	case AX2:
		return [3]float64{7. / 4, -1, 1. / 4}
	default:
		return [3]float64{23. / 12, -4. / 3, 5. / 12}
	}
}

// ImplicitScheme is the scheme for the implicit barotropic terms.
type ImplicitScheme int

// Implicit schemes.
const (
	ThetaMethod ImplicitScheme = iota
	AM2                        // second-order Adams-Moulton
	AI2                        // second-order AI2 scheme
)

// ParseImplicitScheme returns the scheme named s.
func ParseImplicitScheme(s string) (ImplicitScheme, error) {
	switch strings.ToLower(s) {
	case "theta":
		return ThetaMethod, nil
	case "am2":
		return AM2, nil
	case "ai2":
		return AI2, nil
	}
	return 0, fmt.Errorf("suntans: invalid implicit time scheme %q", s)
}

func (s ImplicitScheme) String() string {
	switch s {
	case ThetaMethod:
		return "theta"
	case AM2:
		return "AM2"
	case AI2:
		return "AI2"
	}
	return fmt.Sprintf("ImplicitScheme(%d)", int(s))
}

// coefficients returns the weights of the new, current and previous
// time levels.
func (s ImplicitScheme) coefficients(theta float64) [3]float64 {
	switch s {
	case AM2:
		return [3]float64{0.75, 0, 0.25}
	case AI2:
		return [3]float64{5. / 4, -1, 3. / 4}
	default:
		return [3]float64{theta, 1 - theta, 0}
	}
}

// QPreconditioner selects the preconditioner of the non-hydrostatic
// pressure solver.
type QPreconditioner int

// Non-hydrostatic pressure preconditioners.
const (
	NoPreconditioner QPreconditioner = iota
	DiagonalPreconditioner
	ColumnPreconditioner // exact solve of the vertical coupling in each column
)

// ParseQPreconditioner returns the preconditioner named s.
func ParseQPreconditioner(s string) (QPreconditioner, error) {
	switch strings.ToLower(s) {
	case "none":
		return NoPreconditioner, nil
	case "diagonal":
		return DiagonalPreconditioner, nil
	case "column":
		return ColumnPreconditioner, nil
	}
	return 0, fmt.Errorf("suntans: invalid pressure preconditioner %q", s)
}

// Config holds the run-time parameters of a simulation. It is not
// modified after a Model is created.
type Config struct {
	Dt        float64 // time step [s]
	Theta     float64 // implicitness of the free surface, in (0, 1]
	ThetaRamp float64 // e-folding time over which Theta ramps from 1 [s]; 0 disables the ramp

	// ThetaM is the implicitness of vertical momentum advection. Negative
	// values advect explicitly.
	ThetaM float64

	Explicit ExplicitScheme
	Implicit ImplicitScheme

	Gravity  float64 // m/s²
	Coriolis float64 // Coriolis parameter [1/s]
	Rho0     float64 // reference density [kg/m³]

	Nu  float64 // laminar vertical viscosity [m²/s]
	NuH float64 // lateral viscosity [m²/s]
	CdW float64 // sidewall drag coefficient

	// CdB and CdT are the bottom and top drag coefficients. A value of -1
	// imposes a no-slip condition. Nonzero roughness lengths Z0B and Z0T
	// [m] replace the constant coefficients with log-law values.
	CdB, CdT float64
	Z0B, Z0T float64
	Kappa    float64 // von Kármán constant

	Epsilon  float64 // convergence tolerance of the free-surface solver
	MaxIters int     // iteration cap of the free-surface solver
	HPrecond bool    // precondition the free-surface solver with its diagonal
	ResNorm  bool    // measure convergence relative to the initial residual

	Nonhydrostatic bool
	QEpsilon       float64 // convergence tolerance of the pressure solver
	QMaxIters      int     // iteration cap of the pressure solver
	QPrecond       QPreconditioner

	Nonlinear        bool // advect momentum
	ConserveMomentum bool // advect momentum in flux form weighted by layer thickness

	WetDry        bool    // allow cells to wet and dry
	DryCellHeight float64 // layers at or below this thickness are dry [m]
	BufferHeight  float64 // flux heights below this use the drag-limiting buffer [m]

	VolumeCheck, MassCheck bool
	Conserved              float64 // relative tolerance for conservation warnings

	// Workers is the number of goroutines for edge-wise work. Values
	// below 1 use one worker per CPU.
	Workers int
}

// DefaultConfig returns a configuration with commonly used values.
func DefaultConfig() *Config {
	return &Config{
		Dt:               10,
		Theta:            0.55,
		ThetaM:           -1,
		Explicit:         AB3,
		Implicit:         ThetaMethod,
		Gravity:          9.81,
		Rho0:             1000,
		Nu:               1e-6,
		Kappa:            0.42,
		Epsilon:          1e-10,
		MaxIters:         1000,
		HPrecond:         true,
		ResNorm:          true,
		QEpsilon:         1e-10,
		QMaxIters:        1000,
		QPrecond:         ColumnPreconditioner,
		Nonlinear:        true,
		ConserveMomentum: true,
		DryCellHeight:    1e-3,
		BufferHeight:     1e-2,
		VolumeCheck:      true,
		MassCheck:        true,
		Conserved:        1e-5,
	}
}

// Validate returns an error if c is inconsistent.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"Dt", c.Dt},
		{"Gravity", c.Gravity},
		{"Rho0", c.Rho0},
		{"Epsilon", c.Epsilon},
		{"DryCellHeight", c.DryCellHeight},
		{"Kappa", c.Kappa},
	}
	if c.Nonhydrostatic {
		positive = append(positive, struct {
			name string
			v    float64
		}{"QEpsilon", c.QEpsilon})
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return fmt.Errorf("suntans: configuration %s=%g but should be >0", p.name, p.v)
		}
	}
	nonNegative := []struct {
		name string
		v    float64
	}{
		{"ThetaRamp", c.ThetaRamp},
		{"Nu", c.Nu},
		{"NuH", c.NuH},
		{"CdW", c.CdW},
		{"Z0B", c.Z0B},
		{"Z0T", c.Z0T},
		{"BufferHeight", c.BufferHeight},
		{"Conserved", c.Conserved},
	}
	for _, p := range nonNegative {
		if !(p.v >= 0) {
			return fmt.Errorf("suntans: configuration %s=%g but should be >=0", p.name, p.v)
		}
	}
	if !(c.Theta > 0 && c.Theta <= 1) {
		return fmt.Errorf("suntans: configuration Theta=%g but should be in (0, 1]", c.Theta)
	}
	if c.ThetaM > 1 {
		return fmt.Errorf("suntans: configuration ThetaM=%g but should be <=1", c.ThetaM)
	}
	for _, cd := range []struct {
		name string
		v    float64
	}{{"CdB", c.CdB}, {"CdT", c.CdT}} {
		if cd.v < 0 && cd.v != -1 {
			return fmt.Errorf("suntans: configuration %s=%g but should be >=0 or -1 for no slip", cd.name, cd.v)
		}
	}
	if c.MaxIters < 1 {
		return fmt.Errorf("suntans: configuration MaxIters=%d but should be >0", c.MaxIters)
	}
	if c.Nonhydrostatic && c.QMaxIters < 1 {
		return fmt.Errorf("suntans: configuration QMaxIters=%d but should be >0", c.QMaxIters)
	}
	if c.Explicit < AB3 || c.Explicit > AX2 {
		return fmt.Errorf("suntans: invalid explicit scheme %v", c.Explicit)
	}
	if c.Implicit < ThetaMethod || c.Implicit > AI2 {
		return fmt.Errorf("suntans: invalid implicit scheme %v", c.Implicit)
	}
	if c.QPrecond < NoPreconditioner || c.QPrecond > ColumnPreconditioner {
		return fmt.Errorf("suntans: invalid pressure preconditioner %d", c.QPrecond)
	}
	return nil
}

// normalize applies the settings implied by other settings.
// Wetting and drying requires non-conservative momentum advection
// with implicit vertical advection.
func (c *Config) normalize() {
	if c.WetDry {
		c.ConserveMomentum = false
		c.ThetaM = 1
	}
}
