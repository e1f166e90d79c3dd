package residual

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/humanoid"
	"github.com/banshee-data/skatepush/internal/motion"
	"github.com/banshee-data/skatepush/internal/params"
	"github.com/banshee-data/skatepush/internal/physics"
	"github.com/banshee-data/skatepush/internal/synth"
	"github.com/banshee-data/skatepush/internal/testutil"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func newAssembler(t *testing.T, f *testutil.Pushing) *Assembler {
	t.Helper()
	b := f.Bindings(t)
	a, err := New(b, f.Library, synth.New(b.Markers, synth.DefaultConfig()), DefaultConfig())
	require.NoError(t, err)
	return a
}

func TestLayout(t *testing.T) {
	l, err := NewLayout(testutil.FixtureDOF, testutil.FixtureActuators)
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureResidualDim, l.Total)

	want := []Block{
		{BlockJointVel, 0, 4},
		{BlockControl, 4, 3},
		{BlockTracking, 7, 69},
		{BlockFoot, 76, 6},
		{BlockHeading, 82, 2},
		{BlockVelocity, 84, 3},
		{BlockContact, 87, 1},
		{BlockCom, 88, 2},
	}
	if diff := cmp.Diff(want, l.Blocks); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}

	_, err = NewLayout(ReservedDOF-1, 0)
	assert.Error(t, err)

	l, err = NewLayout(ReservedDOF, 0)
	require.NoError(t, err)
	assert.Equal(t, 83, l.Total)
}

func TestComputeLengthMatchesLayout(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	f.PlaceBoard(r3.Vec{Z: 0.1}, 0.3)
	f.PlaceGoal(r3.Vec{X: 5, Y: 1})

	for _, tm := range []float64{0, 0.4, 3.7} {
		f.Mem.SetTime(tm)
		r, err := a.Compute(f.Mem, f.Params, motion.Playback{})
		require.NoError(t, err)
		assert.Len(t, r, a.Layout().Total)
		for i, v := range r {
			assert.False(t, math.IsNaN(v), "r[%d] is NaN at t=%v", i, tm)
		}
	}
}

func TestComputeRejectsDimensionMismatch(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	f.Mem.SetResidualDim(testutil.FixtureResidualDim + 1)
	a := newAssembler(t, f)

	_, err := a.Compute(f.Mem, f.Params, motion.Playback{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestComputeMissingParameter(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	p := f.Params.Clone()
	delete(p, params.Velocity)

	_, err := a.Compute(f.Mem, p, motion.Playback{})
	assert.True(t, errors.Is(err, params.ErrNotFound), "got %v", err)
}

func TestJointAndControlBlocks(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	qvel := f.Mem.Qvel()
	for i := range qvel {
		qvel[i] = float64(i)
	}
	copy(f.Mem.Ctrl(), []float64{0.1, -0.2, 0.3})

	r, err := a.Compute(f.Mem, f.Params, motion.Playback{})
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7, 8, 9}, a.Layout().Slice(r, BlockJointVel))
	assert.Equal(t, []float64{0.1, -0.2, 0.3}, a.Layout().Slice(r, BlockControl))
}

func TestTrackingZeroWhenSensorsMatchReference(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	f.PlaceBoard(r3.Vec{X: 1, Y: -2, Z: 0.1}, 0.8)
	f.PlaceGoal(r3.Vec{X: 6, Y: 3})
	f.Mem.SetTime(0.25)

	sp, err := synth.ParamsFrom(f.Params)
	require.NoError(t, err)
	pb := motion.Playback{}
	ref := a.Reference(f.Mem, sp, pb.Interpolation(f.Library, f.Mem.Time()))
	for i, name := range humanoid.BodyNames {
		f.Mem.SetSensorVec3(humanoid.PosSensor(name), ref[i])
	}

	got, err := a.Tracking(f.Mem, sp, pb)
	require.NoError(t, err)
	if diff := cmp.Diff(make([]float64, TrackingLen), got[:], approx); diff != "" {
		t.Errorf("tracking not zero (-want +got):\n%s", diff)
	}
}

func TestTrackingIgnoresCommonOffset(t *testing.T) {
	// Shifting every sensed marker moves only the average term.
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	sp, err := synth.ParamsFrom(f.Params)
	require.NoError(t, err)
	pb := motion.Playback{}
	ref := a.Reference(f.Mem, sp, pb.Interpolation(f.Library, 0))
	shift := r3.Vec{X: 0.3, Y: -0.1, Z: 0.05}
	for i, name := range humanoid.BodyNames {
		f.Mem.SetSensorVec3(humanoid.PosSensor(name), r3.Add(ref[i], shift))
	}

	got, err := a.Tracking(f.Mem, sp, pb)
	require.NoError(t, err)
	assert.InDelta(t, -shift.X, got[0], 1e-9)
	assert.InDelta(t, -shift.Y, got[1], 1e-9)
	assert.InDelta(t, -shift.Z, got[2], 1e-9)
	for i := 3; i < 3+3*len(humanoid.TrackBodyNames); i++ {
		assert.InDelta(t, 0, got[i], 1e-9, "index %d", i)
	}
}

func TestTrackingVelocityUsesFiniteDifference(t *testing.T) {
	first := testutil.StandingFrame()
	second := testutil.StandingFrame()
	for i := range second {
		second[i].X += 0.01
	}
	lib, err := motion.NewLibrary([]int{2}, []motion.Keyframe{
		testutil.Keyframe(first, 0),
		testutil.Keyframe(second, 0),
	})
	require.NoError(t, err)
	f := testutil.NewPushingFixtureWithLibrary(t, lib)
	a := newAssembler(t, f)
	f.Mem.SetSensorVec3(humanoid.VelSensor("pelvis"), r3.Vec{X: 0.1})

	sp, err := synth.ParamsFrom(f.Params)
	require.NoError(t, err)
	got, err := a.Tracking(f.Mem, sp, motion.Playback{})
	require.NoError(t, err)

	vel := 3 + 3*len(humanoid.TrackBodyNames)
	assert.InDelta(t, 0.3-0.1, got[vel], 1e-9, "pelvis")
	assert.InDelta(t, 0.3, got[vel+3], 1e-9, "ltoe")
}

func TestFootPositions(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	f.Mem.SetSensorVec3(humanoid.RightToePosSensor, r3.Vec{X: 1, Y: 2, Z: 3})
	f.Mem.SetSensorVec3(humanoid.FrontPlateSensor, r3.Vec{X: 0.5, Y: 2, Z: 1})
	f.Mem.SetSensorVec3(humanoid.LeftToePosSensor, r3.Vec{X: -1})
	f.Mem.SetSensorVec3(humanoid.TailSensor, r3.Vec{X: -1.5, Y: 0.5})

	got, err := a.FootPositions(f.Mem)
	require.NoError(t, err)
	assert.Equal(t, [FootLen]float64{0.5, 0, 2, 0.5, -0.5, 0}, got)
}

func TestFootPositionsMissingSensor(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	b := f.Bindings(t)
	m := missingSensor{Memory: f.Mem, name: humanoid.TailSensor}
	a, err := New(b, f.Library, synth.New(b.Markers, synth.DefaultConfig()), DefaultConfig())
	require.NoError(t, err)

	_, err = a.FootPositions(m)
	assert.True(t, errors.Is(err, physics.ErrMissingSensor))
}

func TestBoardHeading(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)

	f.PlaceBoard(r3.Vec{}, 0)
	f.PlaceGoal(r3.Vec{X: 5})
	got := a.BoardHeading(f.Mem)
	assert.InDelta(t, 0, got[0], 1e-12)
	assert.InDelta(t, 0, got[1], 1e-12)

	f.PlaceGoal(r3.Vec{Y: 5})
	got = a.BoardHeading(f.Mem)
	assert.InDelta(t, 1, got[0], 1e-12)
	assert.InDelta(t, -1, got[1], 1e-12)

	// Goal on the board centre normalizes to +x.
	f.PlaceBoard(r3.Vec{}, math.Pi/2)
	f.PlaceGoal(r3.Vec{})
	got = a.BoardHeading(f.Mem)
	assert.InDelta(t, -1, got[0], 1e-12)
	assert.InDelta(t, 1, got[1], 1e-12)
}

func TestBoardVelocityInBoardFrame(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	f.PlaceBoard(r3.Vec{}, math.Pi/2)
	f.Mem.SetSensorVec3(humanoid.BoardLinVelSensor, r3.Vec{Y: 2, Z: 0.1})

	got, err := a.BoardVelocity(f.Mem, 1.5)
	require.NoError(t, err)
	want := []float64{1.5 - 2 - 0.03, 0, -0.1}
	if diff := cmp.Diff(want, got[:], approx); diff != "" {
		t.Errorf("velocity mismatch (-want +got):\n%s", diff)
	}
}

func TestContactSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, ContactSigmoid(500, 500, 80), 1e-12)
	prev := 1.0
	for _, force := range []float64{0, 100, 400, 500, 700, 2000, 1e6} {
		v := ContactSigmoid(force, 500, 80)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, prev, "decreasing in force")
		prev = v
	}
	assert.Equal(t, 0.0, ContactSigmoid(1e6, 500, 80))
}

func TestFootContactGatedByPlantedToe(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	b := f.Bindings(t)
	f.Mem.AddContact(f.LeftHeel, f.Floor, [6]float64{300})
	f.Mem.AddContact(f.Floor, f.LeftToe, [6]float64{0, 0, 200})

	f.Mem.SetMocapPos(b.Markers.LeftToe, r3.Vec{Z: 0.04})
	got := a.FootContactForce(f.Mem)
	assert.InDelta(t, 0.5, got[0], 1e-12)

	f.Mem.SetMocapPos(b.Markers.LeftToe, r3.Vec{Z: 0.2})
	got = a.FootContactForce(f.Mem)
	assert.Equal(t, 0.0, got[0])
}

func TestLeftFootForceUsesFirstContacts(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	b := f.Bindings(t)

	assert.Equal(t, 0.0, LeftFootForce(f.Mem, b), "no contacts")

	f.Mem.AddContact(f.LeftHeel, f.Floor, [6]float64{-100, 20, 0, 9, 9, 9})
	f.Mem.AddContact(f.LeftHeel, f.Floor, [6]float64{1000})
	f.Mem.AddContact(f.LeftToe, f.LeftHeel, [6]float64{1000})
	assert.InDelta(t, 120, LeftFootForce(f.Mem, b), 1e-12, "toe missing")

	f.Mem.AddContact(f.LeftToe, f.Floor, [6]float64{50, -20, 10})
	assert.InDelta(t, 50+0+10, LeftFootForce(f.Mem, b), 1e-12)
}

func TestComVelocity(t *testing.T) {
	f := testutil.NewPushingFixture(t)
	a := newAssembler(t, f)
	f.Mem.SetSensorVec3(humanoid.BoardLinVelSensor, r3.Vec{X: 1.5, Y: 0.2, Z: 4})
	f.Mem.SetSensorVec3(humanoid.TorsoSubtreeLinVel, r3.Vec{X: 1, Y: 0.5, Z: -4})

	got, err := a.ComVelXY(f.Mem)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got[0], 1e-12)
	assert.InDelta(t, -0.3, got[1], 1e-12)
}

func TestNorms(t *testing.T) {
	l, err := NewLayout(ReservedDOF, 0)
	require.NoError(t, err)
	r := make([]float64, l.Total)
	b, _ := l.Block(BlockHeading)
	r[b.Offset], r[b.Offset+1] = 3, 4

	n := l.Norms(r)
	assert.InDelta(t, 5, n[BlockHeading], 1e-12)
	assert.Equal(t, 0.0, n[BlockJointVel])
	assert.Equal(t, 0.0, n[BlockTracking])
}

type missingSensor struct {
	*physics.Memory
	name string
}

func (m missingSensor) Sensor(name string) ([]float64, bool) {
	if name == m.name {
		return nil, false
	}
	return m.Memory.Sensor(name)
}
