package physics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Memory is a map-backed Model and Data. It holds no dynamics: callers set
// poses, sensors and contacts directly. Used by tests and offline tools.
type Memory struct {
	bodies    map[string]int
	geoms     map[string]int
	bodyMocap map[int]int
	nv, nu    int
	dim       int

	time     float64
	poses    []Pose
	mocap    []r3.Vec
	qpos     []float64
	qvel     []float64
	ctrl     []float64
	sensors  map[string][]float64
	contacts []Contact
	forces   [][6]float64
}

// NewMemory creates an empty model with nq position coordinates, nv velocity
// coordinates and nu actuators.
func NewMemory(nq, nv, nu int) *Memory {
	return &Memory{
		bodies:    make(map[string]int),
		geoms:     make(map[string]int),
		bodyMocap: make(map[int]int),
		nv:        nv,
		nu:        nu,
		qpos:      make([]float64, nq),
		qvel:      make([]float64, nv),
		ctrl:      make([]float64, nu),
		sensors:   make(map[string][]float64),
	}
}

// AddBody registers a body with identity pose and returns its id.
func (m *Memory) AddBody(name string) int {
	if id, ok := m.bodies[name]; ok {
		return id
	}
	id := len(m.poses)
	m.bodies[name] = id
	m.poses = append(m.poses, Pose{Rot: Identity})
	return id
}

// AddMocapBody registers a body driven by a new mocap slot.
func (m *Memory) AddMocapBody(name string) (body, mocap int) {
	body = m.AddBody(name)
	if id, ok := m.bodyMocap[body]; ok {
		return body, id
	}
	mocap = len(m.mocap)
	m.bodyMocap[body] = mocap
	m.mocap = append(m.mocap, r3.Vec{})
	return body, mocap
}

// AddGeom registers a geometry and returns its id.
func (m *Memory) AddGeom(name string) int {
	if id, ok := m.geoms[name]; ok {
		return id
	}
	id := len(m.geoms)
	m.geoms[name] = id
	return id
}

// SetResidualDim sets the declared residual dimension.
func (m *Memory) SetResidualDim(n int) { m.dim = n }

// SetTime sets the simulation clock.
func (m *Memory) SetTime(t float64) { m.time = t }

// SetBodyPose places a body.
func (m *Memory) SetBodyPose(body int, p Pose) {
	if body < 0 || body >= len(m.poses) {
		panic(fmt.Sprintf("physics: body id %d out of range", body))
	}
	m.poses[body] = p
}

// SetSensor declares or overwrites a sensor's values.
func (m *Memory) SetSensor(name string, values ...float64) {
	m.sensors[name] = append([]float64(nil), values...)
}

// SetSensorVec3 declares or overwrites a three-valued sensor.
func (m *Memory) SetSensorVec3(name string, v r3.Vec) {
	m.SetSensor(name, v.X, v.Y, v.Z)
}

// AddContact appends an active contact with the given contact-frame force.
func (m *Memory) AddContact(geom1, geom2 int, force [6]float64) {
	m.contacts = append(m.contacts, Contact{Geom1: geom1, Geom2: geom2})
	m.forces = append(m.forces, force)
}

// ClearContacts removes all active contacts.
func (m *Memory) ClearContacts() {
	m.contacts = m.contacts[:0]
	m.forces = m.forces[:0]
}

// Qpos returns the generalized positions.
func (m *Memory) Qpos() []float64 { return m.qpos }

func (m *Memory) BodyID(name string) (int, bool) {
	id, ok := m.bodies[name]
	return id, ok
}

func (m *Memory) GeomID(name string) (int, bool) {
	id, ok := m.geoms[name]
	return id, ok
}

func (m *Memory) BodyMocapID(body int) (int, bool) {
	id, ok := m.bodyMocap[body]
	return id, ok
}

func (m *Memory) NumMocap() int     { return len(m.mocap) }
func (m *Memory) NumDOF() int       { return m.nv }
func (m *Memory) NumActuators() int { return m.nu }
func (m *Memory) ResidualDim() int  { return m.dim }

func (m *Memory) Time() float64 { return m.time }

func (m *Memory) BodyPose(body int) Pose { return m.poses[body] }

func (m *Memory) MocapPos(id int) r3.Vec { return m.mocap[id] }

func (m *Memory) SetMocapPos(id int, p r3.Vec) { m.mocap[id] = p }

func (m *Memory) Qvel() []float64 { return m.qvel }

func (m *Memory) Ctrl() []float64 { return m.ctrl }

// SetState copies qpos and qvel; extra values are ignored and missing ones
// leave the current coordinates untouched.
func (m *Memory) SetState(qpos, qvel []float64) {
	copy(m.qpos, qpos)
	copy(m.qvel, qvel)
}

func (m *Memory) Sensor(name string) ([]float64, bool) {
	v, ok := m.sensors[name]
	return v, ok
}

func (m *Memory) Contacts() []Contact { return m.contacts }

func (m *Memory) ContactForce(i int) [6]float64 { return m.forces[i] }

var (
	_ Model = (*Memory)(nil)
	_ Data  = (*Memory)(nil)
)
