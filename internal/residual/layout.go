package residual

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/skatepush/internal/humanoid"
)

// Block lengths. The humanoid joint-velocity and control blocks depend on
// the model and are computed by NewLayout.
const (
	// BoardDOF velocity coordinates of the free-floating board precede the
	// humanoid joints in qvel.
	BoardDOF = 6
	// ReservedDOF is the number of qvel coordinates that are not humanoid
	// joints: the board plus the goal and board auxiliary bodies.
	ReservedDOF = humanoid.NonJointDOF

	TrackingLen = 3 + len(humanoid.TrackBodyNames)*3 + len(humanoid.TrackBodyNames)*3
	FootLen     = 6
	HeadingLen  = 2
	VelocityLen = 3
	ContactLen  = 1
	ComLen      = 2
)

// Block names in residual order.
const (
	BlockJointVel = "joint_velocity"
	BlockControl  = "control"
	BlockTracking = "tracking"
	BlockFoot     = "foot_position"
	BlockHeading  = "board_heading"
	BlockVelocity = "board_velocity"
	BlockContact  = "foot_contact"
	BlockCom      = "com_velocity"
)

// Block is a named contiguous span of the residual.
type Block struct {
	Name   string
	Offset int
	Len    int
}

// Layout is the fixed block order of the residual for one model.
type Layout struct {
	Blocks []Block
	Total  int
}

// NewLayout returns the layout for a model with nv velocity coordinates and
// nu actuators.
func NewLayout(nv, nu int) (Layout, error) {
	joints := nv - ReservedDOF
	if joints < 0 {
		return Layout{}, fmt.Errorf("model has %d dofs, need at least %d", nv, ReservedDOF)
	}
	if nu < 0 {
		return Layout{}, fmt.Errorf("negative actuator count %d", nu)
	}
	var l Layout
	for _, b := range []struct {
		name string
		n    int
	}{
		{BlockJointVel, joints},
		{BlockControl, nu},
		{BlockTracking, TrackingLen},
		{BlockFoot, FootLen},
		{BlockHeading, HeadingLen},
		{BlockVelocity, VelocityLen},
		{BlockContact, ContactLen},
		{BlockCom, ComLen},
	} {
		l.Blocks = append(l.Blocks, Block{Name: b.name, Offset: l.Total, Len: b.n})
		l.Total += b.n
	}
	return l, nil
}

// Block returns the named block.
func (l Layout) Block(name string) (Block, bool) {
	for _, b := range l.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}

// Slice returns the named block's span of r.
func (l Layout) Slice(r []float64, name string) []float64 {
	b, ok := l.Block(name)
	if !ok {
		return nil
	}
	return r[b.Offset : b.Offset+b.Len]
}

// Norms returns the Euclidean norm of each block of r, keyed by block name.
func (l Layout) Norms(r []float64) map[string]float64 {
	out := make(map[string]float64, len(l.Blocks))
	for _, b := range l.Blocks {
		if b.Len == 0 {
			out[b.Name] = 0
			continue
		}
		out[b.Name] = floats.Norm(r[b.Offset:b.Offset+b.Len], 2)
	}
	return out
}
