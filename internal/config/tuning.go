package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the constants of the pushing task. Every field is
// optional; the Get* methods fall back to the built-in values, so partial
// files are safe.
type TuningConfig struct {
	// Goal relocation
	GoalSwitchThreshold *float64 `json:"goal_switch_threshold,omitempty"`
	GoalForwardDistance *float64 `json:"goal_forward_distance,omitempty"`
	GoalSideDistance    *float64 `json:"goal_side_distance,omitempty"`

	// Foot contact shaping
	ContactForceCenter *float64 `json:"contact_force_center,omitempty"`
	ContactForceSlope  *float64 `json:"contact_force_slope,omitempty"`
	PlantedFootHeight  *float64 `json:"planted_foot_height,omitempty"`

	// Board velocity
	VelocityTolerance *float64 `json:"velocity_tolerance,omitempty"`

	// Reference frame anchoring
	AnchorZOffset     *float64 `json:"anchor_z_offset,omitempty"`
	AnchorXOffset     *float64 `json:"anchor_x_offset,omitempty"`
	HeelLateralOffset *float64 `json:"heel_lateral_offset,omitempty"`

	// Parameters are default named-parameter values for hosts that do not
	// supply their own.
	Parameters map[string]float64 `json:"parameters,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }

var defaultParameters = map[string]float64{
	"Amplitude_z": 0.05,
	"Amplitude_y": 0.25,
	"Frequency_z": 1.0,
	"Frequency_y": 1.0,
	"Phase_z":     0,
	"Phase_y":     0,
	"Offset_z":    0,
	"Offset_y":    0,
	"Tilt ratio":  1.0,
	"Velocity":    1.5,
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		GoalSwitchThreshold: ptrFloat64(empty.GetGoalSwitchThreshold()),
		GoalForwardDistance: ptrFloat64(empty.GetGoalForwardDistance()),
		GoalSideDistance:    ptrFloat64(empty.GetGoalSideDistance()),
		ContactForceCenter:  ptrFloat64(empty.GetContactForceCenter()),
		ContactForceSlope:   ptrFloat64(empty.GetContactForceSlope()),
		PlantedFootHeight:   ptrFloat64(empty.GetPlantedFootHeight()),
		VelocityTolerance:   ptrFloat64(empty.GetVelocityTolerance()),
		AnchorZOffset:       ptrFloat64(empty.GetAnchorZOffset()),
		AnchorXOffset:       ptrFloat64(empty.GetAnchorXOffset()),
		HeelLateralOffset:   ptrFloat64(empty.GetHeelLateralOffset()),
		Parameters:          empty.GetParameters(),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/storage/sqlite/ and cmd/tools/x/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	finite := map[string]*float64{
		"goal_switch_threshold": c.GoalSwitchThreshold,
		"goal_forward_distance": c.GoalForwardDistance,
		"goal_side_distance":    c.GoalSideDistance,
		"contact_force_center":  c.ContactForceCenter,
		"contact_force_slope":   c.ContactForceSlope,
		"planted_foot_height":   c.PlantedFootHeight,
		"velocity_tolerance":    c.VelocityTolerance,
		"anchor_z_offset":       c.AnchorZOffset,
		"anchor_x_offset":       c.AnchorXOffset,
		"heel_lateral_offset":   c.HeelLateralOffset,
	}
	for name, v := range finite {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be finite, got %f", name, *v)
		}
	}

	if c.GoalSwitchThreshold != nil && *c.GoalSwitchThreshold <= 0 {
		return fmt.Errorf("goal_switch_threshold must be positive, got %f", *c.GoalSwitchThreshold)
	}
	if c.GoalForwardDistance != nil && *c.GoalForwardDistance < 0 {
		return fmt.Errorf("goal_forward_distance must be non-negative, got %f", *c.GoalForwardDistance)
	}
	if c.GoalSideDistance != nil && *c.GoalSideDistance < 0 {
		return fmt.Errorf("goal_side_distance must be non-negative, got %f", *c.GoalSideDistance)
	}
	// The relocated goal must land outside the switch radius.
	if math.Hypot(c.GetGoalForwardDistance(), c.GetGoalSideDistance()) <= c.GetGoalSwitchThreshold() {
		return fmt.Errorf("goal offset must exceed goal_switch_threshold %f", c.GetGoalSwitchThreshold())
	}
	if c.ContactForceSlope != nil && *c.ContactForceSlope <= 0 {
		return fmt.Errorf("contact_force_slope must be positive, got %f", *c.ContactForceSlope)
	}

	for name, v := range c.Parameters {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("parameter %q must be finite, got %f", name, v)
		}
	}

	return nil
}

// GetGoalSwitchThreshold returns the goal_switch_threshold value or the default.
func (c *TuningConfig) GetGoalSwitchThreshold() float64 {
	if c.GoalSwitchThreshold == nil {
		return 0.5
	}
	return *c.GoalSwitchThreshold
}

// GetGoalForwardDistance returns the goal_forward_distance value or the default.
func (c *TuningConfig) GetGoalForwardDistance() float64 {
	if c.GoalForwardDistance == nil {
		return 8.0
	}
	return *c.GoalForwardDistance
}

// GetGoalSideDistance returns the goal_side_distance value or the default.
func (c *TuningConfig) GetGoalSideDistance() float64 {
	if c.GoalSideDistance == nil {
		return 2.0
	}
	return *c.GoalSideDistance
}

// GetContactForceCenter returns the contact_force_center value or the default.
func (c *TuningConfig) GetContactForceCenter() float64 {
	if c.ContactForceCenter == nil {
		return 500.0
	}
	return *c.ContactForceCenter
}

// GetContactForceSlope returns the contact_force_slope value or the default.
func (c *TuningConfig) GetContactForceSlope() float64 {
	if c.ContactForceSlope == nil {
		return 80.0
	}
	return *c.ContactForceSlope
}

// GetPlantedFootHeight returns the planted_foot_height value or the default.
func (c *TuningConfig) GetPlantedFootHeight() float64 {
	if c.PlantedFootHeight == nil {
		return 0.05
	}
	return *c.PlantedFootHeight
}

// GetVelocityTolerance returns the velocity_tolerance value or the default.
func (c *TuningConfig) GetVelocityTolerance() float64 {
	if c.VelocityTolerance == nil {
		return 0.03
	}
	return *c.VelocityTolerance
}

// GetAnchorZOffset returns the anchor_z_offset value or the default.
func (c *TuningConfig) GetAnchorZOffset() float64 {
	if c.AnchorZOffset == nil {
		return 0.1
	}
	return *c.AnchorZOffset
}

// GetAnchorXOffset returns the anchor_x_offset value or the default.
func (c *TuningConfig) GetAnchorXOffset() float64 {
	if c.AnchorXOffset == nil {
		return 0.1
	}
	return *c.AnchorXOffset
}

// GetHeelLateralOffset returns the heel_lateral_offset value or the default.
func (c *TuningConfig) GetHeelLateralOffset() float64 {
	if c.HeelLateralOffset == nil {
		return 0.2
	}
	return *c.HeelLateralOffset
}

// GetParameters returns the built-in named parameters overlaid with any
// configured values. The result is a fresh map.
func (c *TuningConfig) GetParameters() map[string]float64 {
	out := make(map[string]float64, len(defaultParameters)+len(c.Parameters))
	for k, v := range defaultParameters {
		out[k] = v
	}
	for k, v := range c.Parameters {
		out[k] = v
	}
	return out
}
