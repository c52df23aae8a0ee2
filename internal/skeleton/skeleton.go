// Package skeleton holds the static bone topology and decides which bones and
// joints of a body are drawable for the current frame.
package skeleton

import "github.com/bodybasics/posetrack/pkg/core"

// BoneCount is the size of the bone table.
const BoneCount = 24

// Bones is the fixed skeleton topology. It is never modified at runtime.
var Bones = [BoneCount]core.Bone{
	// Torso
	{core.Head, core.Neck},
	{core.Neck, core.SpineShoulder},
	{core.SpineShoulder, core.SpineMid},
	{core.SpineMid, core.SpineBase},
	{core.SpineShoulder, core.ShoulderRight},
	{core.SpineShoulder, core.ShoulderLeft},
	{core.SpineBase, core.HipRight},
	{core.SpineBase, core.HipLeft},

	// Right arm
	{core.ShoulderRight, core.ElbowRight},
	{core.ElbowRight, core.WristRight},
	{core.WristRight, core.HandRight},
	{core.HandRight, core.HandTipRight},
	{core.WristRight, core.ThumbRight},

	// Left arm
	{core.ShoulderLeft, core.ElbowLeft},
	{core.ElbowLeft, core.WristLeft},
	{core.WristLeft, core.HandLeft},
	{core.HandLeft, core.HandTipLeft},
	{core.WristLeft, core.ThumbLeft},

	// Right leg
	{core.HipRight, core.KneeRight},
	{core.KneeRight, core.AnkleRight},
	{core.AnkleRight, core.FootRight},

	// Left leg
	{core.HipLeft, core.KneeLeft},
	{core.KneeLeft, core.AnkleLeft},
	{core.AnkleLeft, core.FootLeft},
}

// BoneTier returns the tier of a bone whose endpoints have states a and b.
// ok is false when either endpoint is NotTracked.
func BoneTier(a, b core.TrackingState) (tier core.Tier, ok bool) {
	if a == core.NotTracked || b == core.NotTracked {
		return 0, false
	}
	if a == core.Tracked && b == core.Tracked {
		return core.TierConfirmed, true
	}
	return core.TierInferred, true
}

// JointTier returns the tier of a single joint. ok is false for NotTracked.
func JointTier(s core.TrackingState) (tier core.Tier, ok bool) {
	switch s {
	case core.Tracked:
		return core.TierConfirmed, true
	case core.Inferred:
		return core.TierInferred, true
	default:
		return 0, false
	}
}

// DrawableBones returns the bones of body that can be drawn this frame, in
// table order. Bones with an unprojectable endpoint are skipped.
func DrawableBones(body *core.Body, points *[core.JointCount]core.ProjectedJoint) []core.BoneDraw {
	out := make([]core.BoneDraw, 0, BoneCount)
	for _, bone := range Bones {
		j0, j1 := body.Joints[bone[0]], body.Joints[bone[1]]
		tier, ok := BoneTier(j0.State, j1.State)
		if !ok {
			continue
		}
		p0, p1 := points[bone[0]], points[bone[1]]
		if !p0.Valid || !p1.Valid {
			continue
		}
		out = append(out, core.BoneDraw{Bone: bone, From: p0.Point, To: p1.Point, Tier: tier})
	}
	return out
}

// DrawableJoints returns the joints of body that can be drawn this frame, in
// joint order.
func DrawableJoints(body *core.Body, points *[core.JointCount]core.ProjectedJoint) []core.JointDraw {
	out := make([]core.JointDraw, 0, core.JointCount)
	for i := range body.Joints {
		tier, ok := JointTier(body.Joints[i].State)
		if !ok || !points[i].Valid {
			continue
		}
		out = append(out, core.JointDraw{Joint: core.JointType(i), Point: points[i].Point, Tier: tier})
	}
	return out
}
