// Package task is the humanoid skateboard pushing task: it plays back the
// pushing motion, writes synthesized marker targets into the pose buffer,
// relocates the goal and exposes the residual to the optimizer.
package task

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/config"
	"github.com/banshee-data/skatepush/internal/goal"
	"github.com/banshee-data/skatepush/internal/humanoid"
	"github.com/banshee-data/skatepush/internal/monitoring"
	"github.com/banshee-data/skatepush/internal/motion"
	"github.com/banshee-data/skatepush/internal/params"
	"github.com/banshee-data/skatepush/internal/physics"
	"github.com/banshee-data/skatepush/internal/residual"
	"github.com/banshee-data/skatepush/internal/synth"
)

// Name is the task's display name.
const Name = "Humanoid Skateboard Push"

// TransitionEvent describes one completed Transition.
type TransitionEvent struct {
	Time       float64
	Mode       int
	Reset      bool
	FrameIndex float64
	Goal       r3.Vec
	Relocated  bool
	Side       goal.Side
}

// StepRecorder receives one event per Transition.
type StepRecorder func(TransitionEvent)

// Option configures a Pushing task.
type Option func(*options)

type options struct {
	tuning    *config.TuningConfig
	newSource goal.SourceFactory
	logf      func(format string, v ...interface{})
	recorder  StepRecorder
}

// WithTuning overrides the built-in tuning constants. The config is
// validated by New.
func WithTuning(cfg *config.TuningConfig) Option {
	return func(o *options) { o.tuning = cfg }
}

// WithSourceFactory sets the random source used for goal side draws.
func WithSourceFactory(f goal.SourceFactory) Option {
	return func(o *options) { o.newSource = f }
}

// WithLogger sets the task logger. The default tags lines with "[push]".
func WithLogger(f func(format string, v ...interface{})) Option {
	return func(o *options) { o.logf = f }
}

// WithRecorder installs a StepRecorder.
func WithRecorder(r StepRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// Pushing is the task instance for one model. It is not safe for concurrent
// use; the host serializes Transition and Residual.
type Pushing struct {
	b         humanoid.Bindings
	lib       *motion.Library
	synth     *synth.Synthesizer
	assembler *residual.Assembler
	goals     *goal.Controller
	logf      func(format string, v ...interface{})
	recorder  StepRecorder

	playback motion.Playback
}

// New binds the task to model. Missing entities and a marker count that
// disagrees with the library are configuration errors.
func New(model physics.Model, lib *motion.Library, opts ...Option) (*Pushing, error) {
	o := options{
		tuning: config.EmptyTuningConfig(),
		logf:   monitoring.Prefixed("push"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}

	b, err := humanoid.Bind(model)
	if err != nil {
		return nil, fmt.Errorf("failed to bind model: %w", err)
	}
	s := synth.New(b.Markers, synth.ConfigFromTuning(o.tuning))
	a, err := residual.New(b, lib, s, residual.ConfigFromTuning(o.tuning))
	if err != nil {
		return nil, fmt.Errorf("failed to build residual: %w", err)
	}

	o.logf("bound skateboard body %d, goal slot %d, %d markers, nv=%d nu=%d residual=%d",
		b.Skateboard, b.Goal, b.Markers.Count, b.NumDOF, b.NumActuators, b.ResidualDim)

	return &Pushing{
		b:         b,
		lib:       lib,
		synth:     s,
		assembler: a,
		goals:     goal.NewController(goal.ConfigFromTuning(o.tuning), o.newSource),
		logf:      o.logf,
		recorder:  o.recorder,
	}, nil
}

// Name returns the task's display name.
func (p *Pushing) Name() string { return Name }

// Playback returns the active motion and its reference time.
func (p *Pushing) Playback() motion.Playback { return p.playback }

// Bindings returns the resolved model entities.
func (p *Pushing) Bindings() humanoid.Bindings { return p.b }

// Layout returns the residual block layout.
func (p *Pushing) Layout() residual.Layout { return p.assembler.Layout() }

// Goals exposes the goal controller for inspection.
func (p *Pushing) Goals() *goal.Controller { return p.goals }

// Transition runs once per control step before the residual is evaluated.
// A mode change or t == 0 restarts playback and resets the state to the
// segment's first keyframe. Every marker slot then receives its synthesized
// target and the goal is relocated if the board has reached it.
func (p *Pushing) Transition(d physics.Data, ps params.Set, mode int) error {
	sp, err := synth.ParamsFrom(ps)
	if err != nil {
		return err
	}

	t := d.Time()
	reset := p.playback.NeedsReset(mode, t)
	if reset {
		start := p.lib.StartIndex(mode)
		p.playback = motion.Playback{Mode: mode, ReferenceTime: t}
		f := p.lib.Frame(start)
		d.SetState(f.Qpos, f.Qvel)
		p.logf("playback reset: mode %d (%q) at t=%.3f, keyframe %d", mode, p.lib.Name(mode), t, start)
	}

	in := p.playback.Interpolation(p.lib, t)
	targets := p.assembler.Reference(d, sp, in)
	for slot := 0; slot < p.b.Markers.Count; slot++ {
		d.SetMocapPos(slot, targets[slot])
	}

	board := d.BodyPose(p.b.Skateboard)
	next, moved := p.goals.Update(board, d.MocapPos(p.b.Goal))
	if moved {
		d.SetMocapPos(p.b.Goal, next)
		p.logf("goal relocated %s to (%.2f, %.2f) at t=%.3f", p.goals.LastSide(), next.X, next.Y, t)
	}

	if p.recorder != nil {
		p.recorder(TransitionEvent{
			Time:       t,
			Mode:       mode,
			Reset:      reset,
			FrameIndex: p.playback.Index(p.lib, t),
			Goal:       next,
			Relocated:  moved,
			Side:       p.goals.LastSide(),
		})
	}
	return nil
}

// Residual assembles the residual vector for the current state.
func (p *Pushing) Residual(d physics.Data, ps params.Set) ([]float64, error) {
	return p.assembler.Compute(d, ps, p.playback)
}
