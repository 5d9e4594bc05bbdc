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

	"github.com/ctessum/unit"
)

// Conservatives holds the global integrals that the scheme conserves in
// a closed domain.
type Conservatives struct {
	Volume          *unit.Unit // m³
	Mass            *unit.Unit // salinity-weighted volume
	PotentialEnergy *unit.Unit // J
}

// conservatives integrates the conserved quantities over the owned
// computational cells of all ranks.
func (d *Model) conservatives() (*Conservatives, error) {
	m, st, c := d.Mesh, d.State, d.Config
	var vol, mass, ep float64
	for _, i := range d.part.Cells(ComputationalCell) {
		a := m.Area[i]
		dzz, s := st.DZZ.Row(i), st.S.Row(i)
		for k := st.Ctop[i]; k < m.Nk[i]; k++ {
			vol += a * dzz[k]
			mass += a * dzz[k] * s[k]
		}
		ep += 0.5 * c.Rho0 * c.Gravity * a * (st.H[i]*st.H[i] - m.Depth[i]*m.Depth[i])
	}
	var err error
	if vol, err = d.comm.AllReduceSum(vol); err != nil {
		return nil, err
	}
	if mass, err = d.comm.AllReduceSum(mass); err != nil {
		return nil, err
	}
	if ep, err = d.comm.AllReduceSum(ep); err != nil {
		return nil, err
	}
	return &Conservatives{
		Volume:          unit.New(vol, unit.Meter3),
		Mass:            unit.New(mass, unit.Meter3),
		PotentialEnergy: unit.New(ep, unit.Joule),
	}, nil
}

// checkConservation updates the current conserved quantities and warns
// when the volume or mass of a closed domain has drifted from its initial
// value by more than the conservation tolerance.
func (d *Model) checkConservation() error {
	c := d.Config
	if !c.VolumeCheck && !c.MassCheck {
		return nil
	}
	cur, err := d.conservatives()
	if err != nil {
		return err
	}
	d.State.Current = cur
	if !closedDomain(d.Mesh) || d.comm.Rank() != 0 {
		return nil
	}
	init := d.State.Initial
	if c.VolumeCheck {
		if rel := relativeChange(init.Volume, cur.Volume); rel > c.Conserved {
			d.Logger.Warnf("step %d: volume changed by %.3g relative to its initial value", d.State.N, rel)
		}
	}
	if c.MassCheck {
		if rel := relativeChange(init.Mass, cur.Mass); rel > c.Conserved {
			d.Logger.Warnf("step %d: mass changed by %.3g relative to its initial value", d.State.N, rel)
		}
	}
	return nil
}

func relativeChange(a, b *unit.Unit) float64 {
	diff := unit.Sub(b, a).Value()
	if a.Value() == 0 {
		return math.Abs(diff)
	}
	return math.Abs(diff / a.Value())
}
