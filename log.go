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
	"io"
	"time"
)

// Log returns a DomainManipulator that writes a progress line for every
// `every` steps to w. Only rank 0 writes.
func Log(w io.Writer, every int) DomainManipulator {
	startTime := time.Now()
	stepTime := time.Now()
	if every < 1 {
		every = 1
	}
	return func(d *Model) error {
		if d.comm.Rank() != 0 || d.State.N%every != 0 {
			return nil
		}
		st := d.State
		line := fmt.Sprintf("Step %-6d  walltime=%6.3gh  Δwalltime=%4.2gs  "+
			"timestep=%gs  time=%.6gs  h iters=%d",
			st.N, time.Since(startTime).Hours(),
			time.Since(stepTime).Seconds(), d.Config.Dt, st.Time, d.lastH.Iterations)
		if d.Config.Nonhydrostatic {
			line += fmt.Sprintf("  q iters=%d", d.lastQ.Iterations)
		}
		if st.Current != nil {
			line += fmt.Sprintf("  volume=%.8g", st.Current.Volume.Value())
		}
		stepTime = time.Now()
		_, err := fmt.Fprintln(w, line)
		return err
	}
}

// SolverSummary returns a description of the iteration counts of the
// linear solvers so far.
func (d *Model) SolverSummary() string {
	s := fmt.Sprintf("free-surface solver: %d solves, mean %.1f iterations, max %.0f",
		d.HStats.Count(), d.HStats.Mean(), d.HStats.Max())
	if d.QStats.Count() > 0 {
		s += fmt.Sprintf("; pressure solver: %d solves, mean %.1f iterations, max %.0f",
			d.QStats.Count(), d.QStats.Mean(), d.QStats.Max())
	}
	return s
}
