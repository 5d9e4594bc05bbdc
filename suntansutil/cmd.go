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

// Package suntansutil contains the command-line interface of the suntans
// hydrodynamic model.
package suntansutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	suntans "github.com/caozd999/suntans-general-vertical-coordinate"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	gridFlags := []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()}
	runFlags := []*pflag.FlagSet{runCmd.Flags()}

	// Options are the configuration options available to suntans.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the netCDF file where the model state
              is saved. It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "suntans.nc",
			flagsets:   runFlags,
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   runFlags,
		},
		{
			name: "OutputEvery",
			usage: `
              OutputEvery is the number of time steps between saved states.`,
			defaultVal: 10,
			flagsets:   runFlags,
		},
		{
			name: "LogEvery",
			usage: `
              LogEvery is the number of time steps between status messages.`,
			defaultVal: 1,
			flagsets:   runFlags,
		},
		{
			name: "NumSteps",
			usage: `
              NumSteps is the number of time steps to run.`,
			shorthand:  "n",
			defaultVal: 100,
			flagsets:   runFlags,
		},
		{
			name: "Partitions",
			usage: `
              Partitions is the number of ranks the grid is divided into. Each
              rank runs concurrently and exchanges data with its neighbors.`,
			shorthand:  "p",
			defaultVal: 1,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Nx",
			usage: `
              Grid.Nx is the number of grid cells in the x direction.`,
			defaultVal: 20,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Ny",
			usage: `
              Grid.Ny is the number of grid cells in the y direction.`,
			defaultVal: 10,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx is the grid cell length in the x direction [m].`,
			defaultVal: 100.0,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Dy",
			usage: `
              Grid.Dy is the grid cell length in the y direction [m].`,
			defaultVal: 100.0,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Depth",
			usage: `
              Grid.Depth is the water depth at the western edge of the grid [m].`,
			defaultVal: 10.0,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Slope",
			usage: `
              Grid.Slope is the increase in depth per unit distance in the x direction.`,
			defaultVal: 0.0,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Layers",
			usage: `
              Grid.Layers is the number of vertical layers in the deepest column.`,
			defaultVal: 10,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Stretch",
			usage: `
              Grid.Stretch is the ratio of the thicknesses of successive layers,
              top to bottom. 1 gives uniform layers.`,
			defaultVal: 1.0,
			flagsets:   gridFlags,
		},
		{
			name: "Grid.Boundaries",
			usage: `
              Grid.Boundaries gives the boundary type of the west, east, south and
              north sides of the grid: closed, noslip, flux (specified inflow)
              or elevation (specified free surface). Sides that are not given
              are closed.`,
			defaultVal: map[string]string{"west": "closed", "east": "closed"},
			flagsets:   gridFlags,
		},
		{
			name: "Model.Dt",
			usage: `
              Model.Dt is the time step [s].`,
			defaultVal: 10.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.Theta",
			usage: `
              Model.Theta is the implicitness of the free surface, in (0, 1].`,
			defaultVal: 0.55,
			flagsets:   runFlags,
		},
		{
			name: "Model.ThetaRamp",
			usage: `
              Model.ThetaRamp is the e-folding time [s] over which Theta relaxes
              from 1 to its configured value. 0 disables the ramp.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.ThetaM",
			usage: `
              Model.ThetaM is the implicitness of vertical momentum advection.
              Negative values advect explicitly.`,
			defaultVal: -1.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.ExplicitScheme",
			usage: `
              Model.ExplicitScheme is the multi-step scheme for the explicit
              terms: AB3, AB2 or AX2.`,
			defaultVal: "AB3",
			flagsets:   runFlags,
		},
		{
			name: "Model.ImplicitScheme",
			usage: `
              Model.ImplicitScheme is the scheme for the implicit barotropic
              terms: theta, AM2 or AI2.`,
			defaultVal: "theta",
			flagsets:   runFlags,
		},
		{
			name: "Model.Gravity",
			usage: `
              Model.Gravity is the gravitational acceleration [m/s²].`,
			defaultVal: 9.81,
			flagsets:   runFlags,
		},
		{
			name: "Model.Coriolis",
			usage: `
              Model.Coriolis is the Coriolis parameter [1/s].`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.Rho0",
			usage: `
              Model.Rho0 is the reference density [kg/m³].`,
			defaultVal: 1000.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.Beta",
			usage: `
              Model.Beta is the haline contraction coefficient of the linear
              equation of state [1/psu].`,
			defaultVal: 7.7e-4,
			flagsets:   runFlags,
		},
		{
			name: "Model.Nu",
			usage: `
              Model.Nu is the laminar vertical viscosity [m²/s].`,
			defaultVal: 1e-6,
			flagsets:   runFlags,
		},
		{
			name: "Model.NuH",
			usage: `
              Model.NuH is the lateral viscosity [m²/s].`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.CdB",
			usage: `
              Model.CdB is the bottom drag coefficient. -1 imposes no slip.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.CdT",
			usage: `
              Model.CdT is the top drag coefficient. -1 imposes no slip.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.CdW",
			usage: `
              Model.CdW is the sidewall drag coefficient.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.Z0B",
			usage: `
              Model.Z0B is the bottom roughness length [m]. When it is
              nonzero the bottom drag coefficient follows the log law.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.Z0T",
			usage: `
              Model.Z0T is the top roughness length [m].`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Model.Kappa",
			usage: `
              Model.Kappa is the von Kármán constant.`,
			defaultVal: 0.42,
			flagsets:   runFlags,
		},
		{
			name: "Model.Epsilon",
			usage: `
              Model.Epsilon is the convergence tolerance of the free-surface solver.`,
			defaultVal: 1e-10,
			flagsets:   runFlags,
		},
		{
			name: "Model.MaxIters",
			usage: `
              Model.MaxIters is the iteration cap of the free-surface solver.`,
			defaultVal: 1000,
			flagsets:   runFlags,
		},
		{
			name: "Model.HPrecond",
			usage: `
              Model.HPrecond specifies whether to precondition the free-surface
              solver with its diagonal.`,
			defaultVal: true,
			flagsets:   runFlags,
		},
		{
			name: "Model.ResNorm",
			usage: `
              Model.ResNorm specifies whether solver convergence is measured
              relative to the initial residual.`,
			defaultVal: true,
			flagsets:   runFlags,
		},
		{
			name: "Model.Nonhydrostatic",
			usage: `
              Model.Nonhydrostatic specifies whether to solve for the
              non-hydrostatic pressure.`,
			defaultVal: false,
			flagsets:   runFlags,
		},
		{
			name: "Model.QEpsilon",
			usage: `
              Model.QEpsilon is the convergence tolerance of the pressure solver.`,
			defaultVal: 1e-10,
			flagsets:   runFlags,
		},
		{
			name: "Model.QMaxIters",
			usage: `
              Model.QMaxIters is the iteration cap of the pressure solver.`,
			defaultVal: 1000,
			flagsets:   runFlags,
		},
		{
			name: "Model.QPrecond",
			usage: `
              Model.QPrecond is the preconditioner of the pressure solver:
              none, diagonal or column.`,
			defaultVal: "column",
			flagsets:   runFlags,
		},
		{
			name: "Model.Nonlinear",
			usage: `
              Model.Nonlinear specifies whether to advect momentum.`,
			defaultVal: true,
			flagsets:   runFlags,
		},
		{
			name: "Model.ConserveMomentum",
			usage: `
              Model.ConserveMomentum specifies whether momentum is advected in
              flux form. It is ignored when Model.WetDry is set.`,
			defaultVal: true,
			flagsets:   runFlags,
		},
		{
			name: "Model.WetDry",
			usage: `
              Model.WetDry specifies whether cells may wet and dry.`,
			defaultVal: false,
			flagsets:   runFlags,
		},
		{
			name: "Model.DryCellHeight",
			usage: `
              Model.DryCellHeight is the layer thickness [m] at or below which
              a layer is dry.`,
			defaultVal: 1e-3,
			flagsets:   runFlags,
		},
		{
			name: "Model.BufferHeight",
			usage: `
              Model.BufferHeight is the flux height [m] below which single-layer
              edges have a large bottom drag.`,
			defaultVal: 1e-2,
			flagsets:   runFlags,
		},
		{
			name: "Model.Conserved",
			usage: `
              Model.Conserved is the relative change in volume, salt mass and
              momentum above which a warning is logged.`,
			defaultVal: 1e-5,
			flagsets:   runFlags,
		},
		{
			name: "Model.Workers",
			usage: `
              Model.Workers is the number of goroutines each rank uses for
              column-wise work. 0 uses one per CPU.`,
			defaultVal: 0,
			flagsets:   runFlags,
		},
		{
			name: "Tide.Mean",
			usage: `
              Tide.Mean is the mean free-surface elevation [m] at specified-elevation
              boundaries.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Tide.Amplitude",
			usage: `
              Tide.Amplitude is the tidal amplitude [m] at specified-elevation
              boundaries.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Tide.Period",
			usage: `
              Tide.Period is the tidal period [s].`,
			defaultVal: 44712.0,
			flagsets:   runFlags,
		},
		{
			name: "Tide.Phase",
			usage: `
              Tide.Phase is the tidal phase [degrees].`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Inflow.Velocity",
			usage: `
              Inflow.Velocity is the inflow speed [m/s] through specified-flux
              boundaries.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Inflow.Ramp",
			usage: `
              Inflow.Ramp is the e-folding time [s] over which the inflow
              speed ramps up. 0 disables the ramp.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Inflow.File",
			usage: `
              Inflow.File is a TOML file with a time series of inflow speeds,
              one per specified-flux edge. When it is given, Inflow.Velocity
              and Inflow.Ramp are ignored. Times are in seconds and speeds
              in m/s; all values must be written as floating point numbers.`,
			defaultVal: "",
			flagsets:   runFlags,
		},
		{
			name: "Wind.TauX",
			usage: `
              Wind.TauX is the eastward kinematic wind stress [m²/s²].`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Wind.TauY",
			usage: `
              Wind.TauY is the northward kinematic wind stress [m²/s²].`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Initial.Amplitude",
			usage: `
              Initial.Amplitude is the height [m] of a Gaussian free-surface
              bump in the center of the grid.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Initial.Width",
			usage: `
              Initial.Width is the standard deviation [m] of the initial bump.`,
			defaultVal: 100.0,
			flagsets:   runFlags,
		},
		{
			name: "Initial.Salinity",
			usage: `
              Initial.Salinity is the salinity [psu] at the datum.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Initial.SalinityGradient",
			usage: `
              Initial.SalinityGradient is the increase in salinity per meter of depth.`,
			defaultVal: 0.0,
			flagsets:   runFlags,
		},
		{
			name: "Turbulence.Closure",
			usage: `
              Turbulence.Closure is the turbulence closure: none, constant
              or parabolic.`,
			defaultVal: "none",
			flagsets:   runFlags,
		},
		{
			name: "Turbulence.NuT",
			usage: `
              Turbulence.NuT is the eddy viscosity [m²/s] of the constant closure.`,
			defaultVal: 1e-4,
			flagsets:   runFlags,
		},
		{
			name: "Turbulence.KappaT",
			usage: `
              Turbulence.KappaT is the eddy diffusivity [m²/s] of the constant closure.`,
			defaultVal: 1e-4,
			flagsets:   runFlags,
		},
		{
			name: "Turbulence.Cd",
			usage: `
              Turbulence.Cd is the drag coefficient that sets the friction
              velocity of the parabolic closure.`,
			defaultVal: 0.0025,
			flagsets:   runFlags,
		},
		{
			name: "Turbulence.Prandtl",
			usage: `
              Turbulence.Prandtl is the turbulent Prandtl number of the
              parabolic closure.`,
			defaultVal: 1.0,
			flagsets:   runFlags,
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SUNTANS")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // The same flag is shared between flagsets.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
		}
		Cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(gridCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("suntans: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "suntans",
	Short: "A non-hydrostatic coastal ocean model.",
	Long: `suntans is a semi-implicit, finite-volume model of hydrostatic and
non-hydrostatic free-surface flow on unstructured grids with z-level layers.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SUNTANS_var' where 'var' is the
name of the variable to be set with periods replaced by underscores
(for example SUNTANS_GRID_NX). Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of suntans.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("suntans v%s\n", suntans.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run runs a simulation on a rectangular grid for NumSteps time steps,
saving the model state to OutputFile every OutputEvery steps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := MeshConfig(Cfg)
		if err != nil {
			return err
		}
		c, err := ModelConfig(Cfg)
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		m, err := g.Mesh()
		if err != nil {
			return err
		}
		forcing, err := ForcingConfig(Cfg, m)
		if err != nil {
			return err
		}
		opts, initFuncs, err := InitialConfig(Cfg, g)
		if err != nil {
			return err
		}
		opts = append(opts, suntans.WithForcing(forcing))

		return Run(
			cmd,
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			outputFile,
			Cfg.GetInt("OutputEvery"),
			Cfg.GetInt("LogEvery"),
			Cfg.GetInt("NumSteps"),
			Cfg.GetInt("Partitions"),
			m, c, opts, initFuncs)
	},
	DisableAutoGenTag: true,
}

// gridCmd is a command that builds the grid and prints a summary of it.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Describe the grid",
	Long: `grid builds the grid specified by the Grid configuration variables
and prints the number of cells and edges of each boundary type. When
Partitions is greater than one, the cells of each rank are also listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := MeshConfig(Cfg)
		if err != nil {
			return err
		}
		_, err = Grid(cmd.OutOrStdout(), g, Cfg.GetInt("Partitions"))
		return err
	},
	DisableAutoGenTag: true,
}
