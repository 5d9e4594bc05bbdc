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

import "math"

// TurbulenceClosure sets the eddy viscosity and diffusivity of the
// given cells.
type TurbulenceClosure interface {
	EddyViscosity(m *Mesh, st *State, cells []int) error
}

// ConstantViscosity is a closure with fixed eddy coefficients.
type ConstantViscosity struct {
	NuT, KappaT float64
}

// EddyViscosity implements TurbulenceClosure.
func (c ConstantViscosity) EddyViscosity(m *Mesh, st *State, cells []int) error {
	for _, i := range cells {
		nu, kappa := st.NuT.Row(i), st.KappaT.Row(i)
		for k := range nu {
			nu[k], kappa[k] = 0, 0
		}
		for k := st.Ctop[i]; k < m.Nk[i]; k++ {
			nu[k], kappa[k] = c.NuT, c.KappaT
		}
	}
	return nil
}

// ParabolicViscosity is a closure with the parabolic eddy viscosity
// profile of a log-layer flow, κ u* z (1 - z/H), where the friction
// velocity u* follows from the bottom speed and drag coefficient Cd.
type ParabolicViscosity struct {
	Cd      float64
	Kappa   float64 // von Kármán constant
	Prandtl float64 // turbulent Prandtl number; 0 means 1
}

// EddyViscosity implements TurbulenceClosure.
func (p ParabolicViscosity) EddyViscosity(m *Mesh, st *State, cells []int) error {
	pr := p.Prandtl
	if pr == 0 {
		pr = 1
	}
	for _, i := range cells {
		nu, kappa := st.NuT.Row(i), st.KappaT.Row(i)
		for k := range nu {
			nu[k], kappa[k] = 0, 0
		}
		bot := m.Nk[i] - 1
		speed := math.Hypot(st.Uc.At(i, bot), st.Vc.At(i, bot))
		ustar := math.Sqrt(p.Cd) * speed
		depth := st.H[i] + m.Depth[i]
		if depth <= 0 {
			continue
		}
		dzz := st.DZZ.Row(i)
		z := depth
		for k := st.Ctop[i]; k < m.Nk[i]; k++ {
			zc := z - 0.5*dzz[k] // height above the bed
			nu[k] = p.Kappa * ustar * zc * (1 - zc/depth)
			kappa[k] = nu[k] / pr
			z -= dzz[k]
		}
	}
	return nil
}

// closure updates the eddy coefficients of the owned cells and
// exchanges them.
func (d *Model) closure() error {
	if d.Closure == nil {
		return nil
	}
	st := d.State
	if err := d.Closure.EddyViscosity(d.Mesh, st, d.part.Cells(ComputationalCell)); err != nil {
		return err
	}
	return d.exchangeCellFields(st.NuT, st.KappaT)
}
