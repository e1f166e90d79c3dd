// Package residual assembles the pushing task's residual vector.
//
// The optimizer minimizes the squared norm of the vector. Every block is a
// pure function of the live physics state, the pose buffer, the named
// parameters and the playback clock; nothing here mutates state.
package residual

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/config"
	"github.com/banshee-data/skatepush/internal/humanoid"
	"github.com/banshee-data/skatepush/internal/motion"
	"github.com/banshee-data/skatepush/internal/params"
	"github.com/banshee-data/skatepush/internal/physics"
	"github.com/banshee-data/skatepush/internal/synth"
)

// ErrDimension is returned when the assembled residual length differs from
// the model's declared residual dimension.
var ErrDimension = errors.New("residual dimension mismatch")

// Config holds the shaping constants.
type Config struct {
	ContactForceCenter float64
	ContactForceSlope  float64
	PlantedFootHeight  float64
	VelocityTolerance  float64
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		ContactForceCenter: cfg.GetContactForceCenter(),
		ContactForceSlope:  cfg.GetContactForceSlope(),
		PlantedFootHeight:  cfg.GetPlantedFootHeight(),
		VelocityTolerance:  cfg.GetVelocityTolerance(),
	}
}

// DefaultConfig returns the built-in shaping constants.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// Assembler computes residual vectors for one bound model.
type Assembler struct {
	b      humanoid.Bindings
	lib    *motion.Library
	synth  *synth.Synthesizer
	cfg    Config
	layout Layout
}

// New returns an Assembler. lib must carry one marker per bound marker slot.
func New(b humanoid.Bindings, lib *motion.Library, s *synth.Synthesizer, cfg Config) (*Assembler, error) {
	layout, err := NewLayout(b.NumDOF, b.NumActuators)
	if err != nil {
		return nil, err
	}
	if lib.MarkerCount() != b.Markers.Count {
		return nil, fmt.Errorf("motion library has %d markers, model has %d marker slots", lib.MarkerCount(), b.Markers.Count)
	}
	return &Assembler{b: b, lib: lib, synth: s, cfg: cfg, layout: layout}, nil
}

// Layout returns the block layout of every residual this Assembler produces.
func (a *Assembler) Layout() Layout { return a.layout }

// Compute assembles a fresh residual vector.
func (a *Assembler) Compute(d physics.Data, p params.Set, pb motion.Playback) ([]float64, error) {
	sp, err := synth.ParamsFrom(p)
	if err != nil {
		return nil, err
	}
	velocity, err := p.Get(params.Velocity)
	if err != nil {
		return nil, err
	}

	r := make([]float64, 0, a.layout.Total)

	joints := a.b.NumDOF - ReservedDOF
	r = append(r, d.Qvel()[BoardDOF:BoardDOF+joints]...)
	r = append(r, d.Ctrl()[:a.b.NumActuators]...)

	tracking, err := a.Tracking(d, sp, pb)
	if err != nil {
		return nil, err
	}
	r = append(r, tracking[:]...)

	foot, err := a.FootPositions(d)
	if err != nil {
		return nil, err
	}
	r = append(r, foot[:]...)

	heading := a.BoardHeading(d)
	r = append(r, heading[:]...)

	vel, err := a.BoardVelocity(d, velocity)
	if err != nil {
		return nil, err
	}
	r = append(r, vel[:]...)

	contact := a.FootContactForce(d)
	r = append(r, contact[:]...)

	com, err := a.ComVelXY(d)
	if err != nil {
		return nil, err
	}
	r = append(r, com[:]...)

	if len(r) != a.b.ResidualDim {
		return nil, fmt.Errorf("%w: assembled %d values, model declares %d", ErrDimension, len(r), a.b.ResidualDim)
	}
	return r, nil
}

// Reference returns the synthesized marker targets for the blended keyframe
// in. Synthesis is affine in the frame, so this equals blending the two
// synthesized keyframes.
func (a *Assembler) Reference(d physics.Data, sp synth.Params, in motion.Interpolation) []r3.Vec {
	return a.synth.Synthesize(synth.Input{
		Frame:  a.lib.Blend(in),
		Board:  d.BodyPose(a.b.Skateboard),
		Goal:   d.MocapPos(a.b.Goal),
		Params: sp,
		Time:   d.Time(),
	})
}

// Tracking is the average-position error over all markers, then per track
// body position errors relative to the averages, then per track body
// finite-difference velocity errors.
func (a *Assembler) Tracking(d physics.Data, sp synth.Params, pb motion.Playback) ([TrackingLen]float64, error) {
	var out [TrackingLen]float64
	in := pb.Interpolation(a.lib, d.Time())
	ref := a.Reference(d, sp, in)
	mk := a.b.Markers

	var sensed [len(humanoid.BodyNames)]r3.Vec
	var avgRef, avgSensed r3.Vec
	for i, name := range humanoid.BodyNames {
		s, err := physics.SensorVec3(d, humanoid.PosSensor(name))
		if err != nil {
			return out, err
		}
		sensed[i] = s
		avgRef = r3.Add(avgRef, ref[mk.Slots[i]])
		avgSensed = r3.Add(avgSensed, s)
	}
	n := 1.0 / float64(len(humanoid.BodyNames))
	avgRef = r3.Scale(n, avgRef)
	avgSensed = r3.Scale(n, avgSensed)

	k := 0
	put := func(v r3.Vec) {
		out[k], out[k+1], out[k+2] = v.X, v.Y, v.Z
		k += 3
	}
	put(r3.Sub(avgRef, avgSensed))

	for _, name := range humanoid.TrackBodyNames {
		i := bodyIndex(name)
		body := r3.Sub(ref[mk.Slots[i]], avgRef)
		put(r3.Sub(body, r3.Sub(sensed[i], avgSensed)))
	}

	for i, name := range humanoid.TrackBodyNames {
		v, err := physics.SensorVec3(d, humanoid.VelSensor(name))
		if err != nil {
			return out, err
		}
		put(r3.Sub(a.lib.FiniteDifference(in, mk.Track[i]), v))
	}
	return out, nil
}

// FootPositions places the right toe on the front plate and the left toe on
// the tail.
func (a *Assembler) FootPositions(d physics.Data) ([FootLen]float64, error) {
	var out [FootLen]float64
	pairs := [2][2]string{
		{humanoid.RightToePosSensor, humanoid.FrontPlateSensor},
		{humanoid.LeftToePosSensor, humanoid.TailSensor},
	}
	for i, pair := range pairs {
		foot, err := physics.SensorVec3(d, pair[0])
		if err != nil {
			return out, err
		}
		site, err := physics.SensorVec3(d, pair[1])
		if err != nil {
			return out, err
		}
		diff := r3.Sub(foot, site)
		out[3*i], out[3*i+1], out[3*i+2] = diff.X, diff.Y, diff.Z
	}
	return out, nil
}

// BoardHeading is the planar difference between the board's unit forward
// vector and the unit bearing from board to goal.
func (a *Assembler) BoardHeading(d physics.Data) [HeadingLen]float64 {
	board := d.BodyPose(a.b.Skateboard)
	goal := d.MocapPos(a.b.Goal)
	heading := unit(board.Rot.Forward())
	toGoal := unit(r2.Vec{X: goal.X - board.Pos.X, Y: goal.Y - board.Pos.Y})
	diff := r2.Sub(heading, toGoal)
	return [HeadingLen]float64{diff.X, diff.Y}
}

// BoardVelocity compares the board's local-frame velocity against a target
// of (target, 0, 0). The longitudinal term carries a small tolerance and the
// vertical term uses the global velocity.
func (a *Assembler) BoardVelocity(d physics.Data, target float64) ([VelocityLen]float64, error) {
	global, err := physics.SensorVec3(d, humanoid.BoardLinVelSensor)
	if err != nil {
		return [VelocityLen]float64{}, err
	}
	rot := d.BodyPose(a.b.Skateboard).Rot
	r := mat.NewDense(3, 3, rot[:])
	var local mat.VecDense
	local.MulVec(r.T(), mat.NewVecDense(3, []float64{global.X, global.Y, global.Z}))

	return [VelocityLen]float64{
		target - local.AtVec(0) - a.cfg.VelocityTolerance,
		0 - local.AtVec(1),
		0 - global.Z,
	}, nil
}

// FootContactForce shapes the left foot's ground contact force through a
// decreasing logistic, active only while the synthesized left toe is
// planted.
func (a *Assembler) FootContactForce(d physics.Data) [ContactLen]float64 {
	toeHeight := d.MocapPos(a.b.Markers.LeftToe).Z
	if toeHeight > a.cfg.PlantedFootHeight {
		return [ContactLen]float64{0}
	}
	force := LeftFootForce(d, a.b)
	return [ContactLen]float64{ContactSigmoid(force, a.cfg.ContactForceCenter, a.cfg.ContactForceSlope)}
}

// ComVelXY is the planar difference between the board velocity and the
// torso subtree velocity.
func (a *Assembler) ComVelXY(d physics.Data) ([ComLen]float64, error) {
	board, err := physics.SensorN(d, humanoid.BoardLinVelSensor, 2)
	if err != nil {
		return [ComLen]float64{}, err
	}
	com, err := physics.SensorN(d, humanoid.TorsoSubtreeLinVel, 2)
	if err != nil {
		return [ComLen]float64{}, err
	}
	return [ComLen]float64{board[0] - com[0], board[1] - com[1]}, nil
}

// LeftFootForce sums the linear contact forces of the first heel-floor and
// first toe-floor contacts and returns |Σx| + |Σy| + |Σz|. A missing contact
// contributes nothing. Board geometry is not consulted.
func LeftFootForce(d physics.Data, b humanoid.Bindings) float64 {
	heel, toe := -1, -1
	for i, c := range d.Contacts() {
		switch {
		case heel < 0 && c.Involves(b.LeftHeelGeom, b.Floor):
			heel = i
		case toe < 0 && c.Involves(b.LeftToeGeom, b.Floor):
			toe = i
		}
		if heel >= 0 && toe >= 0 {
			break
		}
	}

	var sum [3]float64
	for _, i := range [2]int{heel, toe} {
		if i < 0 {
			continue
		}
		f := d.ContactForce(i)
		sum[0] += f[0]
		sum[1] += f[1]
		sum[2] += f[2]
	}
	return math.Abs(sum[0]) + math.Abs(sum[1]) + math.Abs(sum[2])
}

// ContactSigmoid is 1 / (1 + exp((force - center) / slope)), in [0, 1].
func ContactSigmoid(force, center, slope float64) float64 {
	return 1.0 / (1.0 + math.Exp((force-center)/slope))
}

func bodyIndex(name string) int {
	for i, n := range humanoid.BodyNames {
		if n == name {
			return i
		}
	}
	panic("residual: unknown body " + name)
}

// unit normalizes v, returning +x for a degenerate vector.
func unit(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n < 1e-15 {
		return r2.Vec{X: 1}
	}
	return r2.Scale(1/n, v)
}
