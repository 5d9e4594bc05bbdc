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
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
)

func TestRankPath(t *testing.T) {
	for _, test := range []struct {
		path       string
		rank, size int
		want       string
	}{
		{"out/run.nc", 0, 1, "out/run.nc"},
		{"out/run.nc", 2, 4, "out/run.2.nc"},
		{"run", 1, 2, "run.1"},
	} {
		if have := rankPath(test.path, test.rank, test.size); have != test.want {
			t.Errorf("rankPath(%q, %d, %d) = %q, want %q", test.path, test.rank, test.size, have, test.want)
		}
	}
}

func TestOutputter(t *testing.T) {
	if _, err := NewOutputter("x.nc", 0); err == nil {
		t.Error("expected an error for a zero interval")
	}

	path := filepath.Join(t.TempDir(), "bump.nc")
	o, err := NewOutputter(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	m, err := bumpGrid.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(m, DefaultConfig(), InitialElevation(bump))
	if err != nil {
		t.Fatal(err)
	}
	d.InitFuncs = []DomainManipulator{o.Init()}
	d.RunFuncs = []DomainManipulator{Step(), o.Output(), StopAfter(4)}
	d.CleanupFuncs = []DomainManipulator{o.Close()}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cf, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	fi, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	// The initial state and steps 2 and 4.
	if n := cf.Header.NumRecs(fi.Size()); n != 3 {
		t.Errorf("have %d records, want 3", n)
	}
	for _, v := range outputVars {
		if !cf.Header.IsRecordVariable(v.name) {
			t.Errorf("%s is missing or not a record variable", v.name)
		}
	}

	r := cf.Reader("time", []int{2}, []int{3})
	times := r.Zero(1)
	if _, err := r.Read(times); err != nil {
		t.Fatal(err)
	}
	if have := times.([]float64)[0]; have != d.State.Time {
		t.Errorf("time of the last record: have %g, want %g", have, d.State.Time)
	}

	r = cf.Reader("eta", []int{2, 0}, []int{3, 0})
	eta := r.Zero(m.Nc)
	if _, err := r.Read(eta); err != nil {
		t.Fatal(err)
	}
	for i, h := range eta.([]float32) {
		if h != float32(d.State.H[i]) {
			t.Errorf("cell %d: elevation %g, want %g", i, h, d.State.H[i])
		}
	}

	r = cf.Reader("wet", []int{2, 0}, []int{3, 0})
	wet := r.Zero(m.Nc)
	if _, err := r.Read(wet); err != nil {
		t.Fatal(err)
	}
	for i, v := range wet.([]float32) {
		if want := flags(d.State.Active)[i]; float64(v) != want || want != 1 {
			t.Errorf("cell %d: wet %g, want 1", i, v)
		}
	}

	r = cf.Reader("dv", nil, nil)
	depth := r.Zero(-1)
	if _, err := r.Read(depth); err != nil {
		t.Fatal(err)
	}
	for i, v := range depth.([]float32) {
		if v != float32(m.Depth[i]) {
			t.Errorf("cell %d: depth %g, want %g", i, v, m.Depth[i])
		}
	}
}
