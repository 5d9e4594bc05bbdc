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

// Package suntans is a semi-implicit, finite-volume solver for the
// hydrostatic and non-hydrostatic shallow-water equations on unstructured
// grids with z-level vertical layers and a free surface.
package suntans

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Version is the version of this software.
const Version = "0.3.0"

// Errors returned by the solver.
var (
	// ErrBlowup is returned when the free surface or the layer thicknesses
	// become non-physical.
	ErrBlowup = errors.New("solution blew up")

	// ErrTridiagonal is returned when a vertical system has a non-positive
	// or non-finite pivot.
	ErrTridiagonal = errors.New("invalid tridiagonal system")

	// ErrAborted is returned by exchanges after another rank has failed.
	ErrAborted = errors.New("aborted by another rank")
)

// DomainManipulator is a function that operates on the model.
type DomainManipulator func(*Model) error

// Option configures a Model when it is created.
type Option func(*Model) error

// Model holds a simulation: the mesh, the configuration, the
// time-varying state, and the functions run at each stage.
type Model struct {
	Mesh   *Mesh
	Config *Config
	State  *State

	// InitFuncs are run once after the initial layering has been computed,
	// RunFuncs are run repeatedly until Done is set, and CleanupFuncs are run
	// once at the end.
	InitFuncs, RunFuncs, CleanupFuncs []DomainManipulator

	// Done specifies whether the simulation is finished.
	Done bool

	Logger  logrus.FieldLogger
	Closure TurbulenceClosure
	EOS     EquationOfState
	Forcing Forcing

	part *Partition
	comm Communicator

	theta float64    // implicit factor after the ramp
	fab   [3]float64 // explicit weights for the current step
	fac   [3]float64 // implicit weights for the current step

	work    workspace
	hSolver pcgSolver
	qSolver pcgSolver

	// HStats and QStats accumulate the iteration counts of the
	// free-surface and pressure solvers.
	HStats, QStats stats.Stats
	lastH, lastQ   PCGResult
}

// New creates a model on mesh m. The configuration is copied.
func New(m *Mesh, c *Config, opts ...Option) (*Model, error) {
	if m == nil {
		return nil, fmt.Errorf("suntans: nil mesh")
	}
	if c == nil {
		c = DefaultConfig()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cfg := *c
	cfg.normalize()
	d := &Model{
		Mesh:   m,
		Config: &cfg,
		State:  NewState(m),
		Logger: logrus.StandardLogger(),
		EOS:    LinearEOS{},
		part:   WholeMesh(m),
		comm:   Serial{},
		work:   newWorkspace(m),
	}
	for _, o := range opts {
		if err := o(d); err != nil {
			return nil, err
		}
	}
	d.hSolver = pcgSolver{comm: d.comm, eps: cfg.Epsilon, maxIters: cfg.MaxIters, resNorm: cfg.ResNorm}
	d.qSolver = pcgSolver{comm: d.comm, eps: cfg.QEpsilon, maxIters: cfg.QMaxIters, resNorm: cfg.ResNorm}
	return d, nil
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Model) error {
		d.Logger = l
		return nil
	}
}

// WithClosure sets the turbulence closure.
func WithClosure(c TurbulenceClosure) Option {
	return func(d *Model) error {
		d.Closure = c
		return nil
	}
}

// WithEOS sets the equation of state.
func WithEOS(e EquationOfState) Option {
	return func(d *Model) error {
		d.EOS = e
		return nil
	}
}

// WithForcing sets the boundary forcing.
func WithForcing(f Forcing) Option {
	return func(d *Model) error {
		d.Forcing = f
		return nil
	}
}

// InitialElevation sets the initial free surface from a function of
// position. Cells are clipped to the bottom as needed.
func InitialElevation(f func(x, y float64) float64) Option {
	return func(d *Model) error {
		for i, c := range d.Mesh.Center {
			d.State.H[i] = f(c.X, c.Y)
		}
		return nil
	}
}

// Partition returns the part of the mesh owned by the model.
func (d *Model) Partition() *Partition { return d.part }

// Init computes the initial layering, runs InitFuncs, and records the
// initial conserved quantities.
func (d *Model) Init() error {
	st := d.State
	for i := range st.H {
		if floor := -d.Mesh.Depth[i] + d.Config.DryCellHeight; st.H[i] < floor {
			st.H[i] = floor
		}
	}
	copy(st.HOld, st.H)
	d.updateLayering(true)
	d.theta = d.thetaAt(0)
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	if err := d.exchangeCellFields(st.S, st.T); err != nil {
		return err
	}
	d.setDensity()
	c, err := d.conservatives()
	if err != nil {
		return err
	}
	st.Initial, st.Current = c, c
	return nil
}

// Run carries out the simulation.
func (d *Model) Run() error {
	for !d.Done {
		for _, f := range d.RunFuncs {
			if err := f(d); err != nil {
				return err
			}
		}
	}
	for _, f := range d.CleanupFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// StopAfter sets the Done flag after n steps have been completed.
func StopAfter(n int) DomainManipulator {
	return func(d *Model) error {
		if d.State.N >= n {
			d.Done = true
		}
		return nil
	}
}

// thetaAt returns the implicit factor at time t, relaxing from 1
// toward Config.Theta over ThetaRamp seconds.
func (d *Model) thetaAt(t float64) float64 {
	c := d.Config
	if c.ThetaRamp <= 0 {
		return c.Theta
	}
	r := math.Exp(-t / c.ThetaRamp)
	return (1-r)*c.Theta + r
}

// workers returns the number of goroutines for edge-wise work.
func (d *Model) workers() int {
	if d.Config.Workers > 0 {
		return d.Config.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// concurrently calls f for every index in items, striding the items
// across the workers. f receives the worker number so it can
// use per-worker scratch space.
func (d *Model) concurrently(items []int, f func(worker, item int) error) error {
	nprocs := d.workers()
	if nprocs > len(items) {
		nprocs = len(items)
	}
	if nprocs <= 1 {
		for _, it := range items {
			if err := f(0, it); err != nil {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	for pp := 0; pp < nprocs; pp++ {
		pp := pp
		g.Go(func() error {
			for ii := pp; ii < len(items); ii += nprocs {
				if err := f(pp, items[ii]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
