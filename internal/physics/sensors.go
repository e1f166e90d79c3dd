package physics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// SensorVec3 reads the first three values of the named sensor.
func SensorVec3(d Data, name string) (r3.Vec, error) {
	v, err := SensorN(d, name, 3)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

// SensorN reads the named sensor and checks it carries at least n values.
func SensorN(d Data, name string, n int) ([]float64, error) {
	v, ok := d.Sensor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingSensor, name)
	}
	if len(v) < n {
		return nil, fmt.Errorf("sensor %q has %d values, want at least %d", name, len(v), n)
	}
	return v, nil
}
