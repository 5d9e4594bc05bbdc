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

import "fmt"

// Step returns a DomainManipulator that advances the model by one
// time step.
func Step() DomainManipulator {
	return func(d *Model) error {
		return d.step()
	}
}

func (d *Model) step() error {
	st, c := d.State, d.Config
	st.N++
	t := st.Time + c.Dt

	d.theta = d.thetaAt(st.Time)
	d.fab = c.Explicit.coefficients(st.N, c.WetDry)
	d.fac = c.Implicit.coefficients(d.theta)

	if d.Forcing != nil {
		if err := d.Forcing.Force(t, d.Mesh, st); err != nil {
			return fmt.Errorf("suntans: forcing at t=%g: %w", t, err)
		}
	}

	d.setFluxHeight()
	d.setDragCoefficients()
	d.storeVariables()

	if err := d.cellVelocity(); err != nil {
		return err
	}
	if err := d.horizontalSource(); err != nil {
		return err
	}
	if err := d.predictVelocity(); err != nil {
		return err
	}
	if err := d.solveFreeSurface(); err != nil {
		return err
	}
	d.correctVelocity()
	d.clipDryColumns()
	if err := d.exchangeCells(st.H); err != nil {
		return err
	}
	for _, i := range d.part.Cells(ComputationalCell) {
		st.Dhdt[i] = (st.H[i] - st.HOld[i]) / c.Dt
	}
	if err := d.exchangeEdgeFields(st.U); err != nil {
		return err
	}
	d.elevationBoundaryVelocity()
	if err := d.continuity(); err != nil {
		return err
	}
	if err := d.checkBlowup(); err != nil {
		return err
	}
	if err := d.closure(); err != nil {
		return err
	}

	if c.Nonhydrostatic {
		if err := d.predictVerticalVelocity(); err != nil {
			return err
		}
		if err := d.exchangeCellFields(st.W); err != nil {
			return err
		}
		if err := d.solvePressure(); err != nil {
			return err
		}
		if err := d.exchangeEdgeFields(st.U); err != nil {
			return err
		}
		if err := d.continuity(); err != nil {
			return err
		}
	}

	d.updateLayering(false)
	d.refillEdges()
	if err := d.exchangeEdgeFields(st.U); err != nil {
		return err
	}
	d.setDensity()
	st.Time = t
	return d.checkConservation()
}
