// pkg/core/joint.go
package core

import (
	"fmt"
	"strings"
)

// JointType identifies a skeletal landmark. Values follow the sensor's
// ordinal order and index the fixed per-body joint arrays.
type JointType uint8

const (
	SpineBase JointType = iota
	SpineMid
	Neck
	Head
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	SpineShoulder
	HandTipLeft
	ThumbLeft
	HandTipRight
	ThumbRight
)

// JointCount is the number of joint types; every body carries exactly this many joints.
const JointCount = int(ThumbRight) + 1

var jointNames = [JointCount]string{
	"SpineBase", "SpineMid", "Neck", "Head",
	"ShoulderLeft", "ElbowLeft", "WristLeft", "HandLeft",
	"ShoulderRight", "ElbowRight", "WristRight", "HandRight",
	"HipLeft", "KneeLeft", "AnkleLeft", "FootLeft",
	"HipRight", "KneeRight", "AnkleRight", "FootRight",
	"SpineShoulder", "HandTipLeft", "ThumbLeft", "HandTipRight", "ThumbRight",
}

func (j JointType) String() string {
	if int(j) < JointCount {
		return jointNames[j]
	}
	return fmt.Sprintf("JointType(%d)", uint8(j))
}

// MarshalText encodes the joint name.
func (j JointType) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalText decodes a joint name.
func (j *JointType) UnmarshalText(text []byte) error {
	v, ok := ParseJointType(string(text))
	if !ok {
		return fmt.Errorf("unknown joint type %q", text)
	}
	*j = v
	return nil
}

// Valid reports whether j is one of the known joint types.
func (j JointType) Valid() bool {
	return int(j) < JointCount
}

// ParseJointType looks up a joint by name (case-insensitive).
func ParseJointType(name string) (JointType, bool) {
	for i, n := range jointNames {
		if strings.EqualFold(n, name) {
			return JointType(i), true
		}
	}
	return 0, false
}

// AllJoints returns every joint type in ordinal order.
func AllJoints() [JointCount]JointType {
	var out [JointCount]JointType
	for i := range out {
		out[i] = JointType(i)
	}
	return out
}

// TrackingState is the confidence of a joint position.
// The ordering NotTracked < Inferred < Tracked is meaningful.
type TrackingState uint8

const (
	NotTracked TrackingState = iota
	Inferred
	Tracked
)

func (s TrackingState) String() string {
	switch s {
	case NotTracked:
		return "NotTracked"
	case Inferred:
		return "Inferred"
	case Tracked:
		return "Tracked"
	default:
		return fmt.Sprintf("TrackingState(%d)", uint8(s))
	}
}

// ParseTrackingState parses a tracking state name (case-insensitive).
func ParseTrackingState(s string) (TrackingState, bool) {
	switch strings.ToLower(s) {
	case "nottracked", "":
		return NotTracked, true
	case "inferred":
		return Inferred, true
	case "tracked":
		return Tracked, true
	default:
		return NotTracked, false
	}
}

// Position3D is a point in sensor (camera) space, in meters.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point2D is a point in display space.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Joint is a single landmark of one body for one frame.
type Joint struct {
	Type     JointType
	Position Position3D
	State    TrackingState
}

// ProjectedJoint is the display-space projection of a joint.
// Valid is false when the projection was not finite.
type ProjectedJoint struct {
	Point Point2D
	Valid bool
}
