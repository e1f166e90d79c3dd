package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/skatepush/internal/monitoring"
)

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	monitoring.SetLogger(nil)
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSessionRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)

	id, err := s.NewSession("Humanoid Skateboard Push", map[string]float64{"Velocity": 1.5})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "session id must be a UUID")

	sess, err := s.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, "Humanoid Skateboard Push", sess.TaskName)
	assert.Equal(t, map[string]float64{"Velocity": 1.5}, sess.Params)
	assert.NotZero(t, sess.CreatedAt)

	_, err = s.GetSession("missing")
	assert.Error(t, err)
}

func TestSessionWithoutParams(t *testing.T) {
	s, _ := setupTestStore(t)
	id, err := s.NewSession("push", nil)
	require.NoError(t, err)

	sess, err := s.GetSession(id)
	require.NoError(t, err)
	assert.Nil(t, sess.Params)
}

func TestStepsListedInOrder(t *testing.T) {
	s, _ := setupTestStore(t)
	id, err := s.NewSession("push", nil)
	require.NoError(t, err)
	other, err := s.NewSession("push", nil)
	require.NoError(t, err)

	for _, step := range []int{2, 0, 1} {
		require.NoError(t, s.InsertStep(StepRecord{
			SessionID:    id,
			Step:         step,
			SimTime:      float64(step) * 0.01,
			FrameIndex:   0,
			GoalX:        8,
			GoalY:        -2,
			Relocated:    step == 1,
			ResidualNorm: float64(step) + 0.5,
			BlockNorms:   map[string]float64{"tracking": float64(step)},
		}))
	}
	require.NoError(t, s.InsertStep(StepRecord{SessionID: other, Step: 0}))

	steps, err := s.ListSteps(id)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, r := range steps {
		assert.Equal(t, i, r.Step)
		assert.Equal(t, id, r.SessionID)
		assert.InDelta(t, float64(i)+0.5, r.ResidualNorm, 1e-12)
		assert.Equal(t, map[string]float64{"tracking": float64(i)}, r.BlockNorms)
	}
	assert.True(t, steps[1].Relocated)
	assert.False(t, steps[0].Relocated)

	steps, err = s.ListSteps(other)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Nil(t, steps[0].BlockNorms)
}

func TestInsertStepRejectsDuplicatesAndOrphans(t *testing.T) {
	s, _ := setupTestStore(t)
	id, err := s.NewSession("push", nil)
	require.NoError(t, err)

	require.NoError(t, s.InsertStep(StepRecord{SessionID: id, Step: 0}))
	assert.Error(t, s.InsertStep(StepRecord{SessionID: id, Step: 0}), "duplicate step")
	assert.Error(t, s.InsertStep(StepRecord{SessionID: "nope", Step: 0}), "unknown session")
}

func TestReopenKeepsData(t *testing.T) {
	s, path := setupTestStore(t)
	id, err := s.NewSession("push", nil)
	require.NoError(t, err)
	require.NoError(t, s.InsertStep(StepRecord{SessionID: id, Step: 0, ResidualNorm: 3}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	steps, err := s2.ListSteps(id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 3.0, steps[0].ResidualNorm)
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryOnBusy(func() error {
		calls++
		return errors.New("constraint failed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
