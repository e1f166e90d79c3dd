package humanoid

import (
	"errors"
	"fmt"

	"github.com/banshee-data/skatepush/internal/physics"
)

// ErrMissingEntity is returned when the model lacks a named body, geometry
// or mocap binding the task depends on.
var ErrMissingEntity = errors.New("model entity not found")

// Markers maps tracked markers to mocap slots.
type Markers struct {
	// Count is the number of marker slots; the goal occupies slot Count.
	Count int
	// Slots is indexed like BodyNames.
	Slots [len(BodyNames)]int
	// Track is indexed like TrackBodyNames.
	Track [len(TrackBodyNames)]int
	// Sway is indexed like UpperBodySway.
	Sway     [len(UpperBodySway)]int
	LeftToe  int
	LeftHeel int
}

// Bindings are the resolved ids for every entity the task reads or writes.
type Bindings struct {
	Skateboard int // body id
	Goal       int // mocap slot
	Markers    Markers

	Floor        int // geom ids
	LeftHeelGeom int
	LeftToeGeom  int

	NumDOF       int
	NumActuators int
	ResidualDim  int
}

// Bind resolves all entities against m. It must be called once per model.
func Bind(m physics.Model) (Bindings, error) {
	var b Bindings
	var err error

	if b.Skateboard, err = body(m, SkateboardBody); err != nil {
		return b, err
	}
	if b.Goal, err = mocapSlot(m, GoalBody); err != nil {
		return b, err
	}
	if b.Goal != m.NumMocap()-1 {
		return b, fmt.Errorf("goal must occupy the last mocap slot %d, got %d", m.NumMocap()-1, b.Goal)
	}

	mk := Markers{Count: m.NumMocap() - 1}
	bySlot := make(map[string]int, len(BodyNames))
	seen := make(map[int]string, len(BodyNames))
	for i, name := range BodyNames {
		slot, err := mocapSlot(m, MocapBodyName(name))
		if err != nil {
			return b, err
		}
		if slot >= mk.Count {
			return b, fmt.Errorf("marker %q bound to slot %d, beyond %d marker slots", name, slot, mk.Count)
		}
		if other, dup := seen[slot]; dup {
			return b, fmt.Errorf("markers %q and %q share mocap slot %d", other, name, slot)
		}
		seen[slot] = name
		bySlot[name] = slot
		mk.Slots[i] = slot
	}
	for i, name := range TrackBodyNames {
		mk.Track[i] = bySlot[name]
	}
	for i, s := range UpperBodySway {
		mk.Sway[i] = bySlot[s.Body]
	}
	mk.LeftToe = bySlot[leftToe]
	mk.LeftHeel = bySlot[leftHeel]
	b.Markers = mk

	if b.Floor, err = geom(m, FloorGeom); err != nil {
		return b, err
	}
	if b.LeftHeelGeom, err = geom(m, LeftHeelGeom); err != nil {
		return b, err
	}
	if b.LeftToeGeom, err = geom(m, LeftToeGeom); err != nil {
		return b, err
	}

	b.NumDOF = m.NumDOF()
	b.NumActuators = m.NumActuators()
	b.ResidualDim = m.ResidualDim()
	return b, nil
}

func body(m physics.Model, name string) (int, error) {
	id, ok := m.BodyID(name)
	if !ok || id < 0 {
		return -1, fmt.Errorf("%w: body %q", ErrMissingEntity, name)
	}
	return id, nil
}

func mocapSlot(m physics.Model, name string) (int, error) {
	id, err := body(m, name)
	if err != nil {
		return -1, err
	}
	slot, ok := m.BodyMocapID(id)
	if !ok || slot < 0 {
		return -1, fmt.Errorf("%w: body %q is not mocap", ErrMissingEntity, name)
	}
	return slot, nil
}

func geom(m physics.Model, name string) (int, error) {
	id, ok := m.GeomID(name)
	if !ok || id < 0 {
		return -1, fmt.Errorf("%w: geom %q", ErrMissingEntity, name)
	}
	return id, nil
}
