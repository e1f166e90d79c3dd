package humanoid

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/physics"
)

// FixedResidualLen is the residual length excluding the joint-velocity and
// control blocks.
const FixedResidualLen = 3 + 6*len(TrackBodyNames) + 6 + 2 + 3 + 1 + 2

// NonJointDOF is the number of qvel coordinates that are not humanoid
// joints.
const NonJointDOF = 19

// NewMemoryModel declares every entity and sensor of the pushing model on a
// physics.Memory with the given humanoid joint and actuator counts. Markers
// occupy mocap slots 0-15 in BodyNames order and the goal occupies the last
// slot. All sensors read zero.
func NewMemoryModel(joints, actuators int) *physics.Memory {
	nv := NonJointDOF + joints
	m := physics.NewMemory(nv+1, nv, actuators)

	m.AddBody(SkateboardBody)
	for _, name := range BodyNames {
		m.AddMocapBody(MocapBodyName(name))
	}
	m.AddMocapBody(GoalBody)

	m.AddGeom(FloorGeom)
	m.AddGeom(LeftHeelGeom)
	m.AddGeom(LeftToeGeom)
	m.SetResidualDim(joints + actuators + FixedResidualLen)

	for _, name := range BodyNames {
		m.SetSensorVec3(PosSensor(name), r3.Vec{})
		m.SetSensorVec3(VelSensor(name), r3.Vec{})
	}
	for _, name := range []string{FrontPlateSensor, TailSensor, BoardLinVelSensor, TorsoSubtreeLinVel} {
		m.SetSensorVec3(name, r3.Vec{})
	}
	return m
}

var standingHeights = map[string]float64{
	"pelvis": 0.95, "head": 1.65,
	"ltoe": 0.02, "rtoe": 0.02, "lheel": 0.03, "rheel": 0.03,
	"lknee": 0.5, "rknee": 0.5, "lhand": 0.85, "rhand": 0.85,
	"lelbow": 1.1, "relbow": 1.1, "lshoulder": 1.4, "rshoulder": 1.4,
	"lhip": 0.9, "rhip": 0.9,
}

// StandingPose returns one marker position per body, in BodyNames order,
// for an upright figure centred on the origin. Left markers sit at +x and
// right markers at -x.
func StandingPose() []r3.Vec {
	out := make([]r3.Vec, len(BodyNames))
	for i, name := range BodyNames {
		side := 0.0
		switch name[0] {
		case 'l':
			side = 0.15
		case 'r':
			side = -0.15
		}
		out[i] = r3.Vec{X: side, Y: 0.05 * float64(i%3), Z: standingHeights[name]}
	}
	return out
}
