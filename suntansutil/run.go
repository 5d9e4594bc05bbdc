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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	suntans "github.com/caozd999/suntans-general-vertical-coordinate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Run runs a simulation on mesh m.
//
// CobraCommand is the cobra.Command instance where Run is called from.
// Status messages are written to its output as well as to LogFile.
//
// OutputFile is the path of the netCDF output file. When Partitions > 1
// each rank writes its own file with the rank number inserted before the
// extension. The state is written every OutputEvery steps and a status
// line is logged every LogEvery steps.
//
// NumSteps is the number of time steps to run.
//
// opts configure each model when it is created, and initFuncs are run
// after the initial layering has been computed.
func Run(CobraCommand *cobra.Command, LogFile, OutputFile string, OutputEvery, LogEvery, NumSteps, Partitions int,
	m *suntans.Mesh, c *suntans.Config, opts []suntans.Option, initFuncs []suntans.DomainManipulator) error {

	startTime := time.Now()

	logfile, err := os.Create(LogFile)
	if err != nil {
		return fmt.Errorf("suntans: problem creating log file: %v", err)
	}
	defer logfile.Close()
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	logger := logrus.New()
	logger.Out = mw
	logger.Formatter = &logrus.TextFormatter{DisableColors: true}

	if NumSteps < 1 {
		return fmt.Errorf("suntans: NumSteps=%d but should be >0", NumSteps)
	}
	if Partitions < 1 {
		Partitions = 1
	}
	if err := writeConfig(OutputFile, c); err != nil {
		return err
	}

	var group *suntans.Group
	if Partitions > 1 {
		owner, err := suntans.StripePartition(m, Partitions)
		if err != nil {
			return err
		}
		if group, err = suntans.NewGroup(m, owner); err != nil {
			return err
		}
	}

	models := make([]*suntans.Model, Partitions)
	for r := range models {
		o, err := suntans.NewOutputter(OutputFile, OutputEvery)
		if err != nil {
			return err
		}
		ropts := []suntans.Option{suntans.WithLogger(logger.WithField("rank", r))}
		if group != nil {
			ropts = append(ropts, group.Rank(r))
		}
		d, err := suntans.New(m, c, append(ropts, opts...)...)
		if err != nil {
			return err
		}
		d.InitFuncs = append(append([]suntans.DomainManipulator{}, initFuncs...), o.Init())
		d.RunFuncs = []suntans.DomainManipulator{
			suntans.Step(),
			o.Output(),
			suntans.Log(mw, LogEvery),
			suntans.StopAfter(NumSteps),
		}
		d.CleanupFuncs = []suntans.DomainManipulator{o.Close()}
		models[r] = d
	}

	logger.WithFields(logrus.Fields{
		"cells":      m.Nc,
		"edges":      m.Ne,
		"layers":     m.Nkmax,
		"partitions": Partitions,
	}).Info("Starting simulation")

	if group == nil {
		d := models[0]
		if err := d.Init(); err != nil {
			return err
		}
		if err := d.Run(); err != nil {
			return err
		}
	} else if err := group.Run(context.Background(), models); err != nil {
		return err
	}

	st := models[0].State
	logger.Info(models[0].SolverSummary())
	if st.Initial != nil && st.Current != nil {
		logger.WithFields(logrus.Fields{
			"initial": st.Initial.Volume.Value(),
			"final":   st.Current.Volume.Value(),
		}).Info("Volume [m³]")
	}
	logger.Infof("Simulation finished in %v", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// Grid builds the mesh described by g and writes a summary of it to w.
// When partitions > 1 the cells and ghosts of each rank of a stripe
// partition are also listed.
func Grid(w io.Writer, g *suntans.Grid, partitions int) (*suntans.Mesh, error) {
	m, err := g.Mesh()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "cells: %d\nedges: %d\nlayers: %d\narea: %g m²\n", m.Nc, m.Ne, m.Nkmax, m.TotalArea())
	fmt.Fprintf(w, "computational cells: %d\nspecified-elevation cells: %d\n",
		len(m.Cells(suntans.ComputationalCell)), len(m.Cells(suntans.ElevationCell)))
	for _, c := range []suntans.EdgeClass{suntans.Computational, suntans.Closed, suntans.SpecifiedFlux,
		suntans.SpecifiedElevation, suntans.NoSlipWall} {
		fmt.Fprintf(w, "%s edges: %d\n", c, len(m.Edges(c)))
	}
	if partitions <= 1 {
		return m, nil
	}
	owner, err := suntans.StripePartition(m, partitions)
	if err != nil {
		return nil, err
	}
	grp, err := suntans.NewGroup(m, owner)
	if err != nil {
		return nil, err
	}
	for r := 0; r < grp.Size(); r++ {
		p := grp.Partition(r)
		fmt.Fprintf(w, "rank %d: %d cells, %d ghost cells, %d ghost edges\n",
			r, p.NumOwnedCells(), len(p.GhostCells), len(p.GhostEdges))
	}
	return m, nil
}
