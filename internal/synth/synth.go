// Package synth turns a recorded keyframe into world-space marker targets
// anchored to the skateboard.
//
// The recorded frame is translated onto the board, the left foot and upper
// body are driven by parametric oscillators, and the whole pose is leaned
// into the turn toward the goal and rotated to the board's heading.
package synth

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/config"
	"github.com/banshee-data/skatepush/internal/humanoid"
	"github.com/banshee-data/skatepush/internal/params"
	"github.com/banshee-data/skatepush/internal/physics"
)

// swayLateralBias shifts every swaying marker sideways.
const swayLateralBias = 0.2

// Config holds the fixed anchoring offsets.
type Config struct {
	AnchorZOffset     float64 // markers sit this far below the board centre
	AnchorXOffset     float64 // heel/toe clearance along x
	HeelLateralOffset float64 // heel y = toe y - offset
}

// DefaultConfig returns the built-in offsets.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		AnchorZOffset:     cfg.GetAnchorZOffset(),
		AnchorXOffset:     cfg.GetAnchorXOffset(),
		HeelLateralOffset: cfg.GetHeelLateralOffset(),
	}
}

// Params are the oscillator and lean parameters for one step.
type Params struct {
	AmplitudeZ, AmplitudeY float64
	FrequencyZ, FrequencyY float64
	PhaseZ, PhaseY         float64
	OffsetZ, OffsetY       float64
	TiltRatio              float64
}

// ParamsFrom reads the synthesizer parameters from a named set.
func ParamsFrom(s params.Set) (Params, error) {
	if err := s.Require(
		params.AmplitudeZ, params.AmplitudeY,
		params.FrequencyZ, params.FrequencyY,
		params.PhaseZ, params.PhaseY,
		params.OffsetZ, params.OffsetY,
		params.TiltRatio,
	); err != nil {
		return Params{}, err
	}
	return Params{
		AmplitudeZ: s[params.AmplitudeZ],
		AmplitudeY: s[params.AmplitudeY],
		FrequencyZ: s[params.FrequencyZ],
		FrequencyY: s[params.FrequencyY],
		PhaseZ:     s[params.PhaseZ],
		PhaseY:     s[params.PhaseY],
		OffsetZ:    s[params.OffsetZ],
		OffsetY:    s[params.OffsetY],
		TiltRatio:  s[params.TiltRatio],
	}, nil
}

// Input is everything one synthesis depends on.
type Input struct {
	// Frame holds raw marker positions by mocap slot, relative to the
	// canonical origin.
	Frame  []r3.Vec
	Board  physics.Pose
	Goal   r3.Vec
	Params Params
	Time   float64
}

// Synthesizer maps keyframes to world-space marker targets.
type Synthesizer struct {
	cfg     Config
	markers humanoid.Markers
}

// New returns a Synthesizer for the given marker layout.
func New(markers humanoid.Markers, cfg Config) *Synthesizer {
	return &Synthesizer{cfg: cfg, markers: markers}
}

// Synthesize returns the target position of every marker slot in a new
// slice. It has no side effects.
func (s *Synthesizer) Synthesize(in Input) []r3.Vec {
	out := s.anchor(in.Frame, in.Board.Pos)
	s.oscillate(out, in.Frame, in.Params, in.Time)

	heading := BoardHeading(in.Board.Rot)
	tilt := TiltAngle(HeadingError(in.Board, in.Goal), in.Params.TiltRatio)
	lean(out, in.Board.Pos, heading, tilt)
	return out
}

// anchor translates the frame onto the board and re-centres it on the raw
// marker mean.
func (s *Synthesizer) anchor(frame []r3.Vec, c r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(frame))
	var mx, my float64
	shift := r3.Vec{X: c.X, Y: c.Y, Z: c.Z - s.cfg.AnchorZOffset}
	for i, p := range frame {
		mx += p.X
		my += p.Y
		out[i] = r3.Add(p, shift)
	}
	n := float64(len(frame))
	mx /= n
	my /= n
	for i := range out {
		out[i].X -= mx
		out[i].Y -= my
		out[i].X -= s.cfg.AnchorXOffset
	}
	return out
}

// oscillate drives the left foot with its own z/y oscillators and sways the
// upper body with the y oscillator. raw is the unmodified frame.
func (s *Synthesizer) oscillate(out, raw []r3.Vec, p Params, t float64) {
	sz := math.Sin(2*math.Pi*p.FrequencyZ*t + p.PhaseZ)
	sy := math.Sin(2*math.Pi*p.FrequencyY*t + p.PhaseY)

	toe, heel := s.markers.LeftToe, s.markers.LeftHeel
	footZ := p.AmplitudeZ*sz - p.OffsetZ
	out[toe].Y += p.AmplitudeY*sy + raw[toe].Y + p.OffsetY
	out[heel].Y = out[toe].Y - s.cfg.HeelLateralOffset
	out[toe].Z = footZ + raw[toe].Z
	out[heel].Z = footZ + raw[heel].Z

	for i, sw := range humanoid.UpperBodySway {
		slot := s.markers.Sway[i]
		out[slot].Y += -sw.ScaleY*p.AmplitudeY*0.5*sy + raw[slot].Y + p.OffsetY + swayLateralBias
		out[slot].Z += -sw.ScaleZ * sy
	}
}

// lean tilts every marker about the board centre by tilt in the x/z plane,
// then rotates it about the vertical axis by heading.
func lean(out []r3.Vec, c r3.Vec, heading, tilt float64) {
	sinT, cosT := math.Sincos(tilt)
	sinH, cosH := math.Sincos(heading)
	for i, q := range out {
		rx := q.X - c.X
		ry := q.Y - c.Y
		z := rx*sinT + q.Z*cosT
		rx = rx*cosT - q.Z*sinT
		out[i] = r3.Vec{
			X: c.X + cosH*rx - sinH*ry,
			Y: c.Y + sinH*rx + cosH*ry,
			Z: z,
		}
	}
}

// BoardHeading is the board yaw relative to the keyframes' canonical +y
// facing.
func BoardHeading(rot physics.Mat3) float64 {
	return rot.Yaw() - math.Pi/2
}

// HeadingError is sin(bearing to goal - board heading) / 3.
func HeadingError(board physics.Pose, goal r3.Vec) float64 {
	bearing := math.Atan2(goal.Y-board.Pos.Y, goal.X-board.Pos.X) - math.Pi/2
	return math.Sin(bearing-BoardHeading(board.Rot)) / 3
}

// TiltAngle maps a heading error to a lean angle: the error is clamped to
// [-0.5, 0.5], scaled to at most ±π/4 and then by ratio.
func TiltAngle(headingError, ratio float64) float64 {
	return math.Min(0.5, math.Max(-0.5, headingError)) * math.Pi / 2 * ratio
}
