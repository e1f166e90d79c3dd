// Command push-sweep runs the skateboard pushing task against a scripted
// board trajectory and reports residual norms per block.
package main

import (
	"flag"
	"fmt"
	"log"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/skatepush/internal/config"
	"github.com/banshee-data/skatepush/internal/humanoid"
	"github.com/banshee-data/skatepush/internal/monitoring"
	"github.com/banshee-data/skatepush/internal/motion"
	"github.com/banshee-data/skatepush/internal/residual"
	"github.com/banshee-data/skatepush/internal/storage/sqlite"
	"github.com/banshee-data/skatepush/internal/task"
	"github.com/banshee-data/skatepush/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to tuning JSON (default: built-in values)")
	motionPath := flag.String("motion", "", "path to motion library JSON (default: single standing frame)")
	steps := flag.Int("steps", 1000, "number of control steps")
	dt := flag.Float64("dt", 0.01, "control timestep in seconds")
	turnRate := flag.Float64("turn-rate", 1.5, "maximum board yaw rate in rad/s")
	seed := flag.Uint64("seed", 0, "seed for goal side draws (0 = crypto/rand)")
	goalX := flag.Float64("goal-x", 3, "initial goal x")
	goalY := flag.Float64("goal-y", 0, "initial goal y")
	dbPath := flag.String("db", "", "optional sqlite trace database")
	plotPath := flag.String("plot", "", "optional output image for residual norms (.png, .svg, .pdf)")
	logEvery := flag.Int("log-every", 100, "log block norms every N steps (0 = never)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("push-sweep"))
		return
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	lib, err := loadLibrary(*motionPath)
	if err != nil {
		log.Fatalf("Failed to load motion library: %v", err)
	}

	sw, err := newSweeper(lib, tuning, sweepConfig{
		Steps:    *steps,
		DT:       *dt,
		TurnRate: *turnRate,
		Seed:     *seed,
		Goal:     r3.Vec{X: *goalX, Y: *goalY, Z: boardHeight},
	})
	if err != nil {
		log.Fatalf("Failed to set up sweep: %v", err)
	}

	var store *sqlite.Store
	var session string
	if *dbPath != "" {
		if store, err = sqlite.Open(*dbPath); err != nil {
			log.Fatalf("Failed to open trace database: %v", err)
		}
		defer store.Close()
		if session, err = store.NewSession(task.Name, sw.params); err != nil {
			log.Fatalf("Failed to create trace session: %v", err)
		}
		log.Printf("Recording trace session %s to %s", session, *dbPath)
	}

	blocks := blockNames(sw.task.Layout())
	var plotter *monitoring.NormPlotter
	if *plotPath != "" {
		plotter = monitoring.NewNormPlotter(task.Name, blocks)
	}

	relocations := 0
	err = sw.run(func(r stepResult) error {
		if r.Event.Relocated {
			relocations++
		}
		if *logEvery > 0 && r.Step%*logEvery == 0 {
			log.Printf("step %d t=%.2f |r|=%.4f %s", r.Step, r.Event.Time, r.Norm, formatNorms(blocks, r.Blocks))
		}
		if plotter != nil {
			plotter.Sample(r.Event.Time, r.Norm, r.Blocks)
		}
		if store != nil {
			return store.InsertStep(sqlite.StepRecord{
				SessionID:    session,
				Step:         r.Step,
				SimTime:      r.Event.Time,
				Mode:         r.Event.Mode,
				FrameIndex:   r.Event.FrameIndex,
				GoalX:        r.Event.Goal.X,
				GoalY:        r.Event.Goal.Y,
				Relocated:    r.Event.Relocated,
				ResidualNorm: r.Norm,
				BlockNorms:   r.Blocks,
			})
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	if plotter != nil {
		if err := plotter.Save(*plotPath); err != nil {
			log.Fatalf("Failed to write plot: %v", err)
		}
		log.Printf("Wrote residual plot to %s", *plotPath)
	}
	log.Printf("done: steps=%d relocations=%d", *steps, relocations)
}

func loadLibrary(path string) (*motion.Library, error) {
	if path != "" {
		return motion.LoadLibrary(path)
	}
	qvel := make([]float64, humanoid.NonJointDOF+defaultJoints)
	qpos := make([]float64, len(qvel)+1)
	return motion.NewLibrary([]int{1}, []motion.Keyframe{{
		Qpos:    qpos,
		Qvel:    qvel,
		Markers: humanoid.StandingPose(),
	}})
}

func blockNames(l residual.Layout) []string {
	names := make([]string, 0, len(l.Blocks))
	for _, b := range l.Blocks {
		if b.Len > 0 {
			names = append(names, b.Name)
		}
	}
	return names
}
