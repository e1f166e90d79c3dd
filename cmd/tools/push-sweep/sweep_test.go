package main

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/config"
	"github.com/banshee-data/skatepush/internal/monitoring"
	"github.com/banshee-data/skatepush/internal/storage/sqlite"
	"github.com/banshee-data/skatepush/internal/task"
)

func newTestSweeper(t *testing.T, steps int, seed uint64) *sweeper {
	t.Helper()
	monitoring.SetLogger(nil)
	lib, err := loadLibrary("")
	require.NoError(t, err)
	sw, err := newSweeper(lib, config.EmptyTuningConfig(), sweepConfig{
		Steps:    steps,
		DT:       0.01,
		TurnRate: 1.5,
		Seed:     seed,
		Goal:     r3.Vec{X: 2, Z: boardHeight},
	})
	require.NoError(t, err)
	return sw
}

func TestSweepReachesAndRelocatesGoal(t *testing.T) {
	sw := newTestSweeper(t, 400, 7)

	var results []stepResult
	require.NoError(t, sw.run(func(r stepResult) error {
		results = append(results, r)
		return nil
	}))
	require.Len(t, results, 400)

	assert.True(t, results[0].Event.Reset)
	relocated := 0
	for _, r := range results {
		assert.False(t, math.IsNaN(r.Norm), "step %d", r.Step)
		if r.Event.Relocated {
			relocated++
		}
	}
	assert.GreaterOrEqual(t, relocated, 1)
}

func TestSweepIsDeterministicWithSeed(t *testing.T) {
	goals := func() []r3.Vec {
		sw := newTestSweeper(t, 600, 42)
		var out []r3.Vec
		require.NoError(t, sw.run(func(r stepResult) error {
			if r.Event.Relocated {
				out = append(out, r.Event.Goal)
			}
			return nil
		}))
		return out
	}
	first := goals()
	require.NotEmpty(t, first)
	assert.Equal(t, first, goals())
}

func TestNewSweeperRejectsBadConfig(t *testing.T) {
	lib, err := loadLibrary("")
	require.NoError(t, err)
	_, err = newSweeper(lib, config.EmptyTuningConfig(), sweepConfig{Steps: 0, DT: 0.01})
	assert.Error(t, err)
	_, err = newSweeper(lib, config.EmptyTuningConfig(), sweepConfig{Steps: 10, DT: 0})
	assert.Error(t, err)
}

func TestSweepRecordsTrace(t *testing.T) {
	sw := newTestSweeper(t, 20, 1)
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer store.Close()
	session, err := store.NewSession(task.Name, sw.params)
	require.NoError(t, err)

	require.NoError(t, sw.run(func(r stepResult) error {
		return store.InsertStep(sqlite.StepRecord{
			SessionID:    session,
			Step:         r.Step,
			SimTime:      r.Event.Time,
			FrameIndex:   r.Event.FrameIndex,
			GoalX:        r.Event.Goal.X,
			GoalY:        r.Event.Goal.Y,
			ResidualNorm: r.Norm,
			BlockNorms:   r.Blocks,
		})
	}))

	steps, err := store.ListSteps(session)
	require.NoError(t, err)
	require.Len(t, steps, 20)
	assert.InDelta(t, 0.19, steps[19].SimTime, 1e-12)
	assert.Contains(t, steps[0].BlockNorms, "tracking")
}

func TestFormatNorms(t *testing.T) {
	got := formatNorms([]string{"tracking", "foot_contact"}, map[string]float64{"tracking": 0.5})
	assert.Equal(t, "tracking=0.5000 foot_contact=0.0000", got)
}

func TestBlockNamesSkipsEmptyBlocks(t *testing.T) {
	sw := newTestSweeper(t, 1, 1)
	names := blockNames(sw.task.Layout())
	assert.Equal(t, "joint_velocity", names[0])
	assert.Len(t, names, 8)
}
