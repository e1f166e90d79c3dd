// Package humanoid names the tracked anatomical markers, the skateboard and
// goal entities, and resolves them against a physics model.
package humanoid

// BodyNames are the 16 tracked markers, in residual averaging order.
var BodyNames = [16]string{
	"pelvis", "head", "ltoe", "rtoe", "lheel", "rheel",
	"lknee", "rknee", "lhand", "rhand", "lelbow", "relbow",
	"lshoulder", "rshoulder", "lhip", "rhip",
}

// TrackBodyNames are the markers used for per-body position and velocity
// residual terms.
var TrackBodyNames = [11]string{
	"pelvis", "ltoe", "rtoe", "lheel", "rheel", "lhand",
	"rhand", "lshoulder", "rshoulder", "lhip", "rhip",
}

// Sway is one upper-body marker's response to the lateral oscillator.
type Sway struct {
	Body   string
	ScaleY float64
	ScaleZ float64
}

// UpperBodySway lists the swaying markers with their signed scales.
var UpperBodySway = [7]Sway{
	{Body: "pelvis", ScaleY: -0.25, ScaleZ: -0.05},
	{Body: "lhip", ScaleY: -0.5, ScaleZ: 0.05},
	{Body: "rhip", ScaleY: -0.5, ScaleZ: 0.05},
	{Body: "lknee", ScaleY: -1, ScaleZ: -0.1},
	{Body: "head", ScaleY: 1.3, ScaleZ: -0.15},
	{Body: "lshoulder", ScaleY: 1.3, ScaleZ: -0.15},
	{Body: "rshoulder", ScaleY: 1.3, ScaleZ: -0.15},
}

// Entity and sensor names declared by the pushing model.
const (
	SkateboardBody = "skateboard"
	GoalBody       = "goal"

	FloorGeom    = "floor"
	LeftHeelGeom = "foot1_left"
	LeftToeGeom  = "foot2_left"

	FrontPlateSensor   = "track-front-plate"
	TailSensor         = "track-tail"
	BoardLinVelSensor  = "skateboard_framelinvel"
	TorsoSubtreeLinVel = "torso_subtreelinvel"

	leftToe  = "ltoe"
	leftHeel = "lheel"
	rightToe = "rtoe"
)

// MocapBodyName is the name of the mocap body driving marker b.
func MocapBodyName(b string) string { return "mocap[" + b + "]" }

// PosSensor is the name of marker b's world position sensor.
func PosSensor(b string) string { return "tracking_pos[" + b + "]" }

// VelSensor is the name of marker b's linear velocity sensor.
func VelSensor(b string) string { return "tracking_linvel[" + b + "]" }

// RightToePosSensor and LeftToePosSensor are the toe position sensors used
// for foot placement.
var (
	RightToePosSensor = PosSensor(rightToe)
	LeftToePosSensor  = PosSensor(leftToe)
)
