// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the in-memory pushing model used by the task,
// residual and humanoid tests.
package testutil

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/config"
	"github.com/banshee-data/skatepush/internal/humanoid"
	"github.com/banshee-data/skatepush/internal/motion"
	"github.com/banshee-data/skatepush/internal/params"
	"github.com/banshee-data/skatepush/internal/physics"
)

// Fixture dimensions.
const (
	FixtureJoints    = 4
	FixtureActuators = 3
	FixtureDOF       = humanoid.NonJointDOF + FixtureJoints
	FixturePositions = FixtureDOF + 1

	FixtureResidualDim = FixtureJoints + FixtureActuators + humanoid.FixedResidualLen
)

// Pushing is an in-memory pushing model with every entity and sensor the
// task reads.
type Pushing struct {
	Mem     *physics.Memory
	Library *motion.Library
	Params  params.Set

	Board int // body id
	Goal  int // mocap slot

	Floor, LeftHeel, LeftToe int // geom ids
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// StandingFrame returns the standing marker pose, in BodyNames order.
func StandingFrame() []r3.Vec { return humanoid.StandingPose() }

// Keyframe returns a keyframe holding markers with zero velocities and qpos
// filled with base.
func Keyframe(markers []r3.Vec, base float64) motion.Keyframe {
	qpos := make([]float64, FixturePositions)
	for i := range qpos {
		qpos[i] = base
	}
	return motion.Keyframe{
		Qpos:    qpos,
		Qvel:    make([]float64, FixtureDOF),
		Markers: markers,
	}
}

// NewPushingFixture builds a model whose markers occupy mocap slots 0-15 in
// BodyNames order and whose goal occupies slot 16. The library has a single
// standing keyframe in the pushing segment. Every sensor reads zero.
func NewPushingFixture(t testing.TB) *Pushing {
	t.Helper()
	lib, err := motion.NewLibrary([]int{1}, []motion.Keyframe{Keyframe(StandingFrame(), 0)})
	AssertNoError(t, err)
	return NewPushingFixtureWithLibrary(t, lib)
}

// NewPushingFixtureWithLibrary is NewPushingFixture with a caller-supplied
// keyframe library.
func NewPushingFixtureWithLibrary(t testing.TB, lib *motion.Library) *Pushing {
	t.Helper()
	m := humanoid.NewMemoryModel(FixtureJoints, FixtureActuators)
	f := &Pushing{Mem: m, Library: lib}

	f.Board, _ = m.BodyID(humanoid.SkateboardBody)
	f.Goal = m.NumMocap() - 1
	f.Floor, _ = m.GeomID(humanoid.FloorGeom)
	f.LeftHeel, _ = m.GeomID(humanoid.LeftHeelGeom)
	f.LeftToe, _ = m.GeomID(humanoid.LeftToeGeom)

	f.Params = params.Set(config.EmptyTuningConfig().GetParameters())
	return f
}

// Bindings resolves the fixture's entities, failing the test on error.
func (f *Pushing) Bindings(t testing.TB) humanoid.Bindings {
	t.Helper()
	b, err := humanoid.Bind(f.Mem)
	AssertNoError(t, err)
	return b
}

// PlaceBoard sets the skateboard pose.
func (f *Pushing) PlaceBoard(pos r3.Vec, yaw float64) {
	f.Mem.SetBodyPose(f.Board, physics.Pose{Pos: pos, Rot: physics.YawMat(yaw)})
}

// PlaceGoal sets the goal mocap position.
func (f *Pushing) PlaceGoal(pos r3.Vec) {
	f.Mem.SetMocapPos(f.Goal, pos)
}
