// Package goal relocates the goal marker once the skateboard reaches it.
package goal

import (
	crand "crypto/rand"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/config"
	"github.com/banshee-data/skatepush/internal/physics"
)

// State is the relocation state after an update.
type State int

const (
	// Holding leaves the goal where it is.
	Holding State = iota
	// Relocating means the goal was moved during the update.
	Relocating
)

func (s State) String() string {
	switch s {
	case Holding:
		return "holding"
	case Relocating:
		return "relocating"
	default:
		return "unknown"
	}
}

// Side is the lateral direction of a relocated goal relative to the board.
type Side int

const (
	Right Side = iota
	Left
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// SourceFactory returns a fresh random source. It is called once per
// relocation.
type SourceFactory func() rand.Source

// HardwareSeeded returns a ChaCha8 source seeded from crypto/rand.
func HardwareSeeded() rand.Source {
	var seed [32]byte
	// Read never returns an error since Go 1.24.
	_, _ = crand.Read(seed[:])
	return rand.NewChaCha8(seed)
}

// FixedSides returns a factory whose successive sources each yield the next
// side in sides, cycling. Useful for deterministic runs.
func FixedSides(sides ...Side) SourceFactory {
	i := 0
	return func() rand.Source {
		s := sides[i%len(sides)]
		i++
		return constSource(s)
	}
}

type constSource Side

func (c constSource) Uint64() uint64 { return uint64(c) }

// Config holds the relocation geometry.
type Config struct {
	Threshold       float64 // planar distance that triggers a relocation
	ForwardDistance float64
	SideDistance    float64
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Threshold:       cfg.GetGoalSwitchThreshold(),
		ForwardDistance: cfg.GetGoalForwardDistance(),
		SideDistance:    cfg.GetGoalSideDistance(),
	}
}

// DefaultConfig returns the built-in relocation geometry.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// Controller is the goal relocation state machine. Not safe for concurrent use.
type Controller struct {
	cfg         Config
	newSource   SourceFactory
	state       State
	lastSide    Side
	relocations int
}

// NewController returns a Controller. A nil factory selects HardwareSeeded.
func NewController(cfg Config, newSource SourceFactory) *Controller {
	if newSource == nil {
		newSource = HardwareSeeded
	}
	return &Controller{cfg: cfg, newSource: newSource}
}

// Update returns the goal position for this step and whether it moved.
// The goal moves only when it is within Threshold of the board in the
// plane; the new goal keeps the old height.
func (c *Controller) Update(board physics.Pose, goal r3.Vec) (r3.Vec, bool) {
	d := r2.Vec{X: goal.X - board.Pos.X, Y: goal.Y - board.Pos.Y}
	if r2.Norm(d) >= c.cfg.Threshold {
		c.state = Holding
		return goal, false
	}

	side := Right
	if rand.New(c.newSource()).Uint64()&1 == 1 {
		side = Left
	}
	next := c.Place(board, goal.Z, side)

	c.state = Relocating
	c.lastSide = side
	c.relocations++
	return next, true
}

// Place computes the relocated goal for the given side: ForwardDistance
// along the board's planar heading and SideDistance to the chosen side.
func (c *Controller) Place(board physics.Pose, height float64, side Side) r3.Vec {
	f := unit(board.Rot.Forward())
	perp := r2.Vec{X: f.Y, Y: -f.X}
	if side == Left {
		perp = r2.Vec{X: -f.Y, Y: f.X}
	}
	off := r2.Add(r2.Scale(c.cfg.ForwardDistance, f), r2.Scale(c.cfg.SideDistance, perp))
	return r3.Vec{
		X: board.Pos.X + off.X,
		Y: board.Pos.Y + off.Y,
		Z: height,
	}
}

// State reports the state after the most recent Update.
func (c *Controller) State() State { return c.state }

// LastSide is the side chosen by the most recent relocation.
func (c *Controller) LastSide() Side { return c.lastSide }

// Relocations counts relocations since construction.
func (c *Controller) Relocations() int { return c.relocations }

// unit normalizes v, returning +x for a degenerate vector.
func unit(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n < 1e-15 {
		return r2.Vec{X: 1}
	}
	return r2.Scale(1/n, v)
}
