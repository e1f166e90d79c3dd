// Package params holds the named scalar parameters the host supplies each
// control step.
package params

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when a parameter name is not present in a Set.
var ErrNotFound = errors.New("parameter not found")

// Parameter names read by the pushing task.
const (
	AmplitudeZ = "Amplitude_z"
	AmplitudeY = "Amplitude_y"
	FrequencyZ = "Frequency_z"
	FrequencyY = "Frequency_y"
	PhaseZ     = "Phase_z"
	PhaseY     = "Phase_y"
	OffsetZ    = "Offset_z"
	OffsetY    = "Offset_y"
	TiltRatio  = "Tilt ratio"
	Velocity   = "Velocity"
)

// Names lists every parameter the task requires.
var Names = []string{
	AmplitudeZ, AmplitudeY,
	FrequencyZ, FrequencyY,
	PhaseZ, PhaseY,
	OffsetZ, OffsetY,
	TiltRatio, Velocity,
}

// Set maps parameter names to values. It is read-only to the core.
type Set map[string]float64

// Get returns the named value or an ErrNotFound error.
func (s Set) Get(name string) (float64, error) {
	v, ok := s[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return v, nil
}

// Require checks that every name is present and reports all missing names
// at once.
func (s Set) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := s[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %q", ErrNotFound, missing)
}

// Clone returns a copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
