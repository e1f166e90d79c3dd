// Package physics defines the contracts the pushing core needs from the
// simulator that hosts it.
//
// The core never steps dynamics or resolves contacts. It reads poses,
// sensors and contacts through Data, resolves named entities once through
// Model, and writes marker targets into the mocap pose buffer.
package physics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrMissingSensor is returned when a named sensor is not declared by the model.
var ErrMissingSensor = errors.New("sensor not found")

// Mat3 is a row-major 3x3 orientation matrix (MuJoCo xmat layout).
type Mat3 [9]float64

// Identity is the identity orientation.
var Identity = Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Forward returns the planar component of the body x-axis, i.e. (m00, m10).
func (m Mat3) Forward() r2.Vec {
	return r2.Vec{X: m[0], Y: m[3]}
}

// Yaw returns atan2(m10, m00).
func (m Mat3) Yaw() float64 {
	return math.Atan2(m[3], m[0])
}

// YawMat returns the orientation of a body rotated by yaw about +z.
func YawMat(yaw float64) Mat3 {
	c, s := math.Cos(yaw), math.Sin(yaw)
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// Pose is a body's world position and orientation.
type Pose struct {
	Pos r3.Vec
	Rot Mat3
}

// Contact is an active contact between two geometries.
type Contact struct {
	Geom1 int
	Geom2 int
}

// Involves reports whether the contact is between geometries a and b, in
// either order.
func (c Contact) Involves(a, b int) bool {
	return (c.Geom1 == a && c.Geom2 == b) || (c.Geom1 == b && c.Geom2 == a)
}

// Model resolves named entities and exposes static model dimensions.
type Model interface {
	// BodyID returns the id of the named body.
	BodyID(name string) (int, bool)
	// GeomID returns the id of the named geometry.
	GeomID(name string) (int, bool)
	// BodyMocapID returns the mocap slot driving body, if it is a mocap body.
	BodyMocapID(body int) (int, bool)
	// NumMocap is the number of mocap slots, goal included.
	NumMocap() int
	// NumDOF is the number of velocity coordinates (nv).
	NumDOF() int
	// NumActuators is the number of control inputs (nu).
	NumActuators() int
	// ResidualDim is the residual length declared by the model's sensors.
	ResidualDim() int
}

// Data is the live simulation state for one evaluation.
type Data interface {
	Time() float64
	BodyPose(body int) Pose
	MocapPos(id int) r3.Vec
	SetMocapPos(id int, p r3.Vec)
	Qvel() []float64
	Ctrl() []float64
	// SetState overwrites generalized positions and velocities.
	SetState(qpos, qvel []float64)
	// Sensor returns the named sensor's values, or false if undeclared.
	Sensor(name string) ([]float64, bool)
	Contacts() []Contact
	// ContactForce returns the 6D force/torque of contact i in its contact frame.
	ContactForce(i int) [6]float64
}
