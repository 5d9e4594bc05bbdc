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

// EquationOfState returns the density anomaly divided by the reference
// density for salinity s, temperature t and pressure p [Pa].
type EquationOfState interface {
	Density(s, t, p float64) float64
}

// LinearEOS is a linear equation of state with haline contraction
// coefficient Beta and thermal expansion coefficient Alpha.
type LinearEOS struct {
	Beta, Alpha float64
}

// Density implements EquationOfState.
func (e LinearEOS) Density(s, t, p float64) float64 {
	return e.Beta*s - e.Alpha*t
}

// setDensity evaluates the equation of state in every active layer,
// with the hydrostatic reference pressure at the middle of each layer.
func (d *Model) setDensity() {
	m, st, c := d.Mesh, d.State, d.Config
	for i := 0; i < m.Nc; i++ {
		rho, s, t, dzz := st.Rho.Row(i), st.S.Row(i), st.T.Row(i), st.DZZ.Row(i)
		z := 0.
		for k := 0; k < st.Ctop[i]; k++ {
			rho[k] = 0
		}
		for k := st.Ctop[i]; k < m.Nk[i]; k++ {
			z += 0.5 * dzz[k]
			rho[k] = d.EOS.Density(s[k], t[k], c.Rho0*c.Gravity*z)
			z += 0.5 * dzz[k]
		}
	}
}

// SetScalars returns a DomainManipulator that sets the salinity and
// temperature of every layer from functions of position, where z is the
// height of the layer center relative to the datum.
func SetScalars(salinity, temperature func(x, y, z float64) float64) DomainManipulator {
	return func(d *Model) error {
		m, st := d.Mesh, d.State
		for i := 0; i < m.Nc; i++ {
			ctr := m.Center[i]
			s, t, dzz := st.S.Row(i), st.T.Row(i), st.DZZ.Row(i)
			z := st.H[i]
			for k := st.Ctop[i]; k < m.Nk[i]; k++ {
				zc := z - 0.5*dzz[k]
				if salinity != nil {
					s[k] = salinity(ctr.X, ctr.Y, zc)
				}
				if temperature != nil {
					t[k] = temperature(ctr.X, ctr.Y, zc)
				}
				z -= dzz[k]
			}
		}
		return nil
	}
}
