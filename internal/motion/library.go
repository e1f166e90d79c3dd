// Package motion owns the recorded keyframe library and the playback clock
// that maps simulation time onto it.
package motion

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// FrameRate is the keyframe sampling rate in Hz (CMU mocap convention).
const FrameRate = 30.0

// Pushing is the motion id of the pushing segment.
const Pushing = 0

// Keyframe is one recorded snapshot: the full generalized state and the
// marker targets, indexed by mocap slot, excluding the goal.
type Keyframe struct {
	Qpos    []float64
	Qvel    []float64
	Markers []r3.Vec
}

// Segment is a contiguous run of keyframes forming one motion.
type Segment struct {
	ID     int
	Name   string
	Start  int
	Length int
}

// Library is an immutable table of keyframes split into segments.
type Library struct {
	segments    []Segment
	frames      []Keyframe
	markerCount int
}

// NewLibrary builds a library whose segments have the given lengths and
// cover a prefix of frames, in order.
func NewLibrary(lengths []int, frames []Keyframe) (*Library, error) {
	if len(lengths) == 0 {
		return nil, fmt.Errorf("motion library needs at least one segment")
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("motion library needs at least one keyframe")
	}

	markers := len(frames[0].Markers)
	for i, f := range frames {
		if len(f.Markers) != markers {
			return nil, fmt.Errorf("keyframe %d has %d markers, want %d", i, len(f.Markers), markers)
		}
	}

	segs := make([]Segment, len(lengths))
	start := 0
	for id, n := range lengths {
		if n <= 0 {
			return nil, fmt.Errorf("segment %d has non-positive length %d", id, n)
		}
		segs[id] = Segment{ID: id, Start: start, Length: n}
		start += n
	}
	if start > len(frames) {
		return nil, fmt.Errorf("segments span %d keyframes but only %d are present", start, len(frames))
	}

	return &Library{segments: segs, frames: frames, markerCount: markers}, nil
}

// NumSegments is the number of motion segments.
func (l *Library) NumSegments() int { return len(l.segments) }

// MarkerCount is the number of markers per keyframe.
func (l *Library) MarkerCount() int { return l.markerCount }

// Segment returns the segment with the given id. Out-of-range ids panic.
func (l *Library) Segment(id int) Segment {
	if id < 0 || id >= len(l.segments) {
		panic(fmt.Sprintf("motion: id %d out of range [0,%d)", id, len(l.segments)))
	}
	return l.segments[id]
}

// Length returns the number of keyframes in motion id.
func (l *Library) Length(id int) int { return l.Segment(id).Length }

// StartIndex returns the global index of the first keyframe of motion id.
func (l *Library) StartIndex(id int) int { return l.Segment(id).Start }

// LastIndex returns the global index of the last keyframe of motion id.
func (l *Library) LastIndex(id int) int {
	s := l.Segment(id)
	return s.Start + s.Length - 1
}

// Name returns the label of motion id, which may be empty.
func (l *Library) Name(id int) string { return l.Segment(id).Name }

// Frame returns keyframe i by global index. The returned value shares
// storage with the library and must not be modified.
func (l *Library) Frame(i int) Keyframe { return l.frames[i] }

// Blend returns the interpolated marker frame for in.
func (l *Library) Blend(in Interpolation) []r3.Vec {
	f0 := l.frames[in.Index0].Markers
	f1 := l.frames[in.Index1].Markers
	out := make([]r3.Vec, l.markerCount)
	for i := range out {
		out[i] = r3.Add(r3.Scale(in.Weight0, f0[i]), r3.Scale(in.Weight1, f1[i]))
	}
	return out
}

// FiniteDifference returns (frame[Index1] - frame[Index0]) * FrameRate for
// marker slot.
func (l *Library) FiniteDifference(in Interpolation, slot int) r3.Vec {
	d := r3.Sub(l.frames[in.Index1].Markers[slot], l.frames[in.Index0].Markers[slot])
	return r3.Scale(FrameRate, d)
}
