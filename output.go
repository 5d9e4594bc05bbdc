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
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
)

// outputVar describes a time-varying output variable.
type outputVar struct {
	name, description, units string
	dims                     []string
	data                     func(d *Model) []float64
}

var outputVars = []outputVar{
	{"eta", "Free-surface elevation", "m", []string{"time", "Nc"},
		func(d *Model) []float64 { return d.State.H }},
	{"u", "Edge-normal velocity", "m/s", []string{"time", "Ne", "Nk"},
		func(d *Model) []float64 { return d.State.U.Elements }},
	{"uc", "Cell-centered eastward velocity", "m/s", []string{"time", "Nc", "Nk"},
		func(d *Model) []float64 { return d.State.Uc.Elements }},
	{"vc", "Cell-centered northward velocity", "m/s", []string{"time", "Nc", "Nk"},
		func(d *Model) []float64 { return d.State.Vc.Elements }},
	{"w", "Vertical velocity at layer interfaces", "m/s", []string{"time", "Nc", "Nkw"},
		func(d *Model) []float64 { return d.State.W.Elements }},
	{"q", "Non-hydrostatic pressure divided by the reference density", "m²/s²", []string{"time", "Nc", "Nk"},
		func(d *Model) []float64 { return d.State.Q.Elements }},
	{"rho", "Density anomaly divided by the reference density", "", []string{"time", "Nc", "Nk"},
		func(d *Model) []float64 { return d.State.Rho.Elements }},
	{"salt", "Salinity", "", []string{"time", "Nc", "Nk"},
		func(d *Model) []float64 { return d.State.S.Elements }},
	{"dzz", "Layer thickness", "m", []string{"time", "Nc", "Nk"},
		func(d *Model) []float64 { return d.State.DZZ.Elements }},
	{"wet", "1 where the column is above the dry-cell height, 0 otherwise", "", []string{"time", "Nc"},
		func(d *Model) []float64 { return flags(d.State.Active) }},
}

// flags converts b to ones and zeros.
func flags(b []bool) []float64 {
	f := make([]float64, len(b))
	for i, v := range b {
		if v {
			f[i] = 1
		}
	}
	return f
}

// Outputter writes snapshots of the model state to a NetCDF file.
type Outputter struct {
	path  string
	every int

	f   *os.File
	cf  *cdf.File
	rec int
}

// NewOutputter creates an outputter that writes to path every `every`
// steps. When the model is one rank of a group, the rank number is
// inserted before the file extension.
func NewOutputter(path string, every int) (*Outputter, error) {
	if every < 1 {
		return nil, fmt.Errorf("suntans: output interval %d should be >0", every)
	}
	return &Outputter{path: path, every: every}, nil
}

// rankPath returns the output path of a rank.
func rankPath(path string, rank, size int) string {
	if size <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(path, ext), rank, ext)
}

// Init returns a DomainManipulator that creates the output file, writes
// the mesh geometry and the initial state.
func (o *Outputter) Init() DomainManipulator {
	return func(d *Model) error {
		m := d.Mesh
		h := cdf.NewHeader(
			[]string{"time", "Nc", "Ne", "Nk", "Nkw"},
			[]int{0, m.Nc, m.Ne, m.Nkmax, m.Nkmax + 1})
		h.AddAttribute("", "comment", "suntans output")
		h.AddVariable("time", []string{"time"}, []float64{0})
		h.AddAttribute("time", "units", "s")
		static := []struct{ name, description, units string }{
			{"xv", "Cell center x", "m"},
			{"yv", "Cell center y", "m"},
			{"Ac", "Cell area", "m²"},
			{"dv", "Depth", "m"},
			{"owned", "Whether this file's rank owns the cell", ""},
		}
		for _, v := range static {
			h.AddVariable(v.name, []string{"Nc"}, []float32{0})
			h.AddAttribute(v.name, "description", v.description)
			h.AddAttribute(v.name, "units", v.units)
		}
		for _, v := range outputVars {
			h.AddVariable(v.name, v.dims, []float32{0})
			h.AddAttribute(v.name, "description", v.description)
			h.AddAttribute(v.name, "units", v.units)
		}
		h.Define()

		var err error
		o.f, err = os.Create(rankPath(o.path, d.comm.Rank(), d.comm.Size()))
		if err != nil {
			return fmt.Errorf("suntans: creating output file: %v", err)
		}
		o.cf, err = cdf.Create(o.f, h)
		if err != nil {
			return fmt.Errorf("suntans: creating output file: %v", err)
		}

		xv, yv := make([]float64, m.Nc), make([]float64, m.Nc)
		owned := make([]float64, m.Nc)
		for i, c := range m.Center {
			xv[i], yv[i] = c.X, c.Y
			if d.part.OwnsCell(i) {
				owned[i] = 1
			}
		}
		for name, data := range map[string][]float64{
			"xv": xv, "yv": yv, "Ac": m.Area, "dv": m.Depth, "owned": owned,
		} {
			if err := o.write(name, data, nil, nil); err != nil {
				return err
			}
		}
		return o.record(d)
	}
}

// Output returns a DomainManipulator that writes the state every
// `every` steps.
func (o *Outputter) Output() DomainManipulator {
	return func(d *Model) error {
		if d.State.N%o.every != 0 {
			return nil
		}
		return o.record(d)
	}
}

// Close returns a DomainManipulator that closes the output file.
func (o *Outputter) Close() DomainManipulator {
	return func(d *Model) error {
		if o.f == nil {
			return nil
		}
		if err := cdf.UpdateNumRecs(o.f); err != nil {
			return fmt.Errorf("suntans: closing output file: %v", err)
		}
		err := o.f.Close()
		o.f = nil
		return err
	}
}

// record writes one time record.
func (o *Outputter) record(d *Model) error {
	if err := o.write("time", []float64{d.State.Time}, []int{o.rec}, []int{o.rec + 1}); err != nil {
		return err
	}
	for _, v := range outputVars {
		lengths := o.cf.Header.Lengths(v.name)
		begin := make([]int, len(lengths))
		end := append([]int{}, lengths...)
		begin[0], end[0] = o.rec, o.rec+1
		if err := o.write(v.name, v.data(d), begin, end); err != nil {
			return err
		}
	}
	o.rec++
	if err := cdf.UpdateNumRecs(o.f); err != nil {
		return fmt.Errorf("suntans: writing output: %v", err)
	}
	return nil
}

// write writes data to variable name between begin and end, or to the
// whole variable if they are nil.
func (o *Outputter) write(name string, data []float64, begin, end []int) error {
	if begin == nil {
		end = o.cf.Header.Lengths(name)
		begin = make([]int, len(end))
	}
	var values interface{}
	if name == "time" {
		values = data
	} else {
		data32 := make([]float32, len(data))
		for i, e := range data {
			data32[i] = float32(e)
		}
		values = data32
	}
	w := o.cf.Writer(name, begin, end)
	if _, err := w.Write(values); err != nil {
		return fmt.Errorf("suntans: writing %s: %v", name, err)
	}
	return nil
}
