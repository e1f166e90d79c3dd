package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/config"
	"github.com/banshee-data/skatepush/internal/goal"
	"github.com/banshee-data/skatepush/internal/humanoid"
	"github.com/banshee-data/skatepush/internal/motion"
	"github.com/banshee-data/skatepush/internal/params"
	"github.com/banshee-data/skatepush/internal/physics"
	"github.com/banshee-data/skatepush/internal/task"
)

const (
	boardHeight     = 0.1
	boardHalfLength = 0.4
	defaultJoints   = 4
)

// sweepConfig controls one kinematic run.
type sweepConfig struct {
	Steps    int
	DT       float64
	TurnRate float64 // rad/s
	Seed     uint64  // 0 draws goal sides from crypto/rand
	Goal     r3.Vec
}

// stepResult is the outcome of one control step.
type stepResult struct {
	Step   int
	Event  task.TransitionEvent
	Norm   float64
	Blocks map[string]float64
}

// sweeper drives the pushing task against a scripted board trajectory: the
// board slides at the Velocity parameter along its heading and turns toward
// the goal at a bounded rate. Tracked markers follow their targets exactly.
type sweeper struct {
	cfg    sweepConfig
	mem    *physics.Memory
	task   *task.Pushing
	params params.Set

	pos  r3.Vec
	yaw  float64
	last task.TransitionEvent
}

func newSweeper(lib *motion.Library, tuning *config.TuningConfig, cfg sweepConfig) (*sweeper, error) {
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if cfg.DT <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %f", cfg.DT)
	}

	joints := defaultJoints
	if n := len(lib.Frame(0).Qvel) - humanoid.NonJointDOF; n >= 0 {
		joints = n
	}
	mem := humanoid.NewMemoryModel(joints, joints)

	s := &sweeper{
		cfg:    cfg,
		mem:    mem,
		params: params.Set(tuning.GetParameters()),
		pos:    r3.Vec{Z: boardHeight},
	}
	opts := []task.Option{
		task.WithTuning(tuning),
		task.WithRecorder(func(e task.TransitionEvent) { s.last = e }),
	}
	if cfg.Seed != 0 {
		opts = append(opts, task.WithSourceFactory(seededSides(cfg.Seed)))
	}
	p, err := task.New(mem, lib, opts...)
	if err != nil {
		return nil, err
	}
	s.task = p

	mem.SetMocapPos(p.Bindings().Goal, cfg.Goal)
	s.placeBoard(0)
	return s, nil
}

// seededSides returns a factory whose n-th source is a PCG seeded with
// (seed, n).
func seededSides(seed uint64) goal.SourceFactory {
	var n uint64
	return func() rand.Source {
		n++
		return rand.NewPCG(seed, n)
	}
}

func (s *sweeper) run(onStep func(stepResult) error) error {
	for i := 0; i < s.cfg.Steps; i++ {
		res, err := s.step(i)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if onStep != nil {
			if err := onStep(res); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *sweeper) step(i int) (stepResult, error) {
	t := float64(i) * s.cfg.DT
	s.mem.SetTime(t)

	if err := s.task.Transition(s.mem, s.params, motion.Pushing); err != nil {
		return stepResult{}, err
	}
	s.trackMarkers()

	r, err := s.task.Residual(s.mem, s.params)
	if err != nil {
		return stepResult{}, err
	}
	res := stepResult{
		Step:   i,
		Event:  s.last,
		Norm:   floats.Norm(r, 2),
		Blocks: s.task.Layout().Norms(r),
	}

	s.advance()
	return res, nil
}

// trackMarkers makes every tracking sensor report its marker's target and
// the board sites report the plate and tail positions.
func (s *sweeper) trackMarkers() {
	for slot, name := range humanoid.BodyNames {
		s.mem.SetSensorVec3(humanoid.PosSensor(name), s.mem.MocapPos(slot))
	}
	fwd := r3.Vec{X: math.Cos(s.yaw), Y: math.Sin(s.yaw)}
	s.mem.SetSensorVec3(humanoid.FrontPlateSensor, r3.Add(s.pos, r3.Scale(boardHalfLength, fwd)))
	s.mem.SetSensorVec3(humanoid.TailSensor, r3.Sub(s.pos, r3.Scale(boardHalfLength, fwd)))
}

// advance turns the board toward the goal and moves it one step forward.
func (s *sweeper) advance() {
	g := s.mem.MocapPos(s.task.Bindings().Goal)
	want := math.Atan2(g.Y-s.pos.Y, g.X-s.pos.X)
	diff := math.Remainder(want-s.yaw, 2*math.Pi)
	maxTurn := s.cfg.TurnRate * s.cfg.DT
	s.yaw += math.Max(-maxTurn, math.Min(maxTurn, diff))

	speed := s.params[params.Velocity]
	s.pos.X += speed * s.cfg.DT * math.Cos(s.yaw)
	s.pos.Y += speed * s.cfg.DT * math.Sin(s.yaw)
	s.placeBoard(speed)
}

func (s *sweeper) placeBoard(speed float64) {
	s.mem.SetBodyPose(s.task.Bindings().Skateboard, physics.Pose{Pos: s.pos, Rot: physics.YawMat(s.yaw)})
	vel := r3.Vec{X: speed * math.Cos(s.yaw), Y: speed * math.Sin(s.yaw)}
	s.mem.SetSensorVec3(humanoid.BoardLinVelSensor, vel)
	s.mem.SetSensorVec3(humanoid.TorsoSubtreeLinVel, vel)
}

// formatNorms renders norms as "name=value" pairs in block order.
func formatNorms(blocks []string, norms map[string]float64) string {
	var sb strings.Builder
	for i, name := range blocks {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%.4f", name, norms[name])
	}
	return sb.String()
}
