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
	"errors"
	"testing"
)

func TestVerticalSolve(t *testing.T) {
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
	d.setFluxHeight()
	d.setDragCoefficients()
	st := d.State
	j := m.Edges(Computational)[0]
	if st.Etop[j] != 0 || m.Nke[j] < 3 {
		t.Fatalf("edge %d: etop %d, nke %d", j, st.Etop[j], m.Nke[j])
	}
	s := newColumnScratch(m.Nkmax)

	if err := d.verticalSolve(j, s); err != nil {
		t.Fatal(err)
	}
	if !(st.D[j] > 0) {
		t.Errorf("flux conductance %g should be >0", st.D[j])
	}

	// A layer below the top with no thickness on either side.
	nc1, nc2 := m.sides(j)
	st.DZZ.Set(0, nc1, 2)
	st.DZZ.Set(0, nc2, 2)
	if err := d.verticalSolve(j, s); !errors.Is(err, ErrTridiagonal) {
		t.Errorf("have %v, want ErrTridiagonal", err)
	}
}
