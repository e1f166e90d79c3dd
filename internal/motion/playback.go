package motion

import "math"

// Interpolation selects two bracketing keyframes and their blend weights.
// Weight0 + Weight1 == 1 and both lie in [0, 1].
type Interpolation struct {
	Index0  int
	Index1  int
	Weight0 float64
	Weight1 float64
}

// Interpolate splits a fractional keyframe index into bracketing indices and
// weights. The index is clamped to [0, maxIndex] first, so playback freezes
// on the last frame instead of looping or extrapolating.
func Interpolate(index float64, maxIndex int) Interpolation {
	last := float64(maxIndex)
	clamped := math.Min(math.Max(index, 0), last)
	i0 := int(math.Floor(clamped))
	i1 := min(i0+1, maxIndex)
	w1 := clamped - float64(i0)
	return Interpolation{Index0: i0, Index1: i1, Weight0: 1 - w1, Weight1: w1}
}

// Playback is the active motion and the simulation time it started at.
type Playback struct {
	Mode          int
	ReferenceTime float64
}

// NeedsReset reports whether a step at time t with the requested mode must
// restart playback.
func (p Playback) NeedsReset(mode int, t float64) bool {
	return p.Mode != mode || t == 0
}

// Index is the fractional global keyframe index at time t.
func (p Playback) Index(lib *Library, t float64) float64 {
	return (t-p.ReferenceTime)*FrameRate + float64(lib.StartIndex(p.Mode))
}

// Interpolation returns the keyframe blend for time t.
func (p Playback) Interpolation(lib *Library, t float64) Interpolation {
	return Interpolate(p.Index(lib, t), lib.LastIndex(p.Mode))
}
