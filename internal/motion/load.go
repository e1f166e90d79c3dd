package motion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"
)

const maxMotionFileSize = 16 * 1024 * 1024

type motionFile struct {
	Segments []struct {
		Name   string `json:"name"`
		Length int    `json:"length"`
	} `json:"segments"`
	Keyframes []struct {
		Qpos []float64    `json:"qpos"`
		Qvel []float64    `json:"qvel"`
		Mpos [][3]float64 `json:"mpos"`
	} `json:"keyframes"`
}

// LoadLibrary reads a motion library from a JSON file of the form
//
//	{"segments": [{"name": "pushing", "length": 1}],
//	 "keyframes": [{"qpos": [...], "qvel": [...], "mpos": [[x, y, z], ...]}]}
//
// mpos lists marker positions by mocap slot, goal excluded.
func LoadLibrary(path string) (*Library, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("motion file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat motion file: %w", err)
	}
	if info.Size() > maxMotionFileSize {
		return nil, fmt.Errorf("motion file too large: %d bytes (max %d)", info.Size(), maxMotionFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read motion file: %w", err)
	}
	return ParseLibrary(data)
}

// ParseLibrary decodes a motion library from its JSON form.
func ParseLibrary(data []byte) (*Library, error) {
	var mf motionFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse motion JSON: %w", err)
	}

	lengths := make([]int, len(mf.Segments))
	for i, s := range mf.Segments {
		lengths[i] = s.Length
	}
	frames := make([]Keyframe, len(mf.Keyframes))
	for i, k := range mf.Keyframes {
		markers := make([]r3.Vec, len(k.Mpos))
		for j, p := range k.Mpos {
			markers[j] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
		}
		frames[i] = Keyframe{Qpos: k.Qpos, Qvel: k.Qvel, Markers: markers}
	}

	lib, err := NewLibrary(lengths, frames)
	if err != nil {
		return nil, fmt.Errorf("invalid motion library: %w", err)
	}
	for i, s := range mf.Segments {
		lib.segments[i].Name = s.Name
	}
	return lib, nil
}
