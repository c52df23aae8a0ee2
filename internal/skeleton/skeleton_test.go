package skeleton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodybasics/posetrack/pkg/core"
)

func allValid() *[core.JointCount]core.ProjectedJoint {
	var pts [core.JointCount]core.ProjectedJoint
	for i := range pts {
		pts[i] = core.ProjectedJoint{Point: core.Point2D{X: float64(i), Y: float64(i * 2)}, Valid: true}
	}
	return &pts
}

func bodyWith(state core.TrackingState) core.Body {
	b := core.NewBody()
	b.Tracked = true
	for i := range b.Joints {
		b.Joints[i].State = state
	}
	return b
}

func TestBones_Topology(t *testing.T) {
	assert.Len(t, Bones, 24)

	seen := map[core.Bone]bool{}
	for _, b := range Bones {
		assert.True(t, b[0].Valid())
		assert.True(t, b[1].Valid())
		assert.NotEqual(t, b[0], b[1])
		assert.False(t, seen[b], "duplicate bone %s", b)
		seen[b] = true
	}

	// every joint is reachable from the table
	touched := map[core.JointType]bool{}
	for _, b := range Bones {
		touched[b[0]] = true
		touched[b[1]] = true
	}
	assert.Len(t, touched, core.JointCount)
}

func TestBoneTier(t *testing.T) {
	states := []core.TrackingState{core.NotTracked, core.Inferred, core.Tracked}

	for _, a := range states {
		for _, b := range states {
			tier, ok := BoneTier(a, b)
			switch {
			case a == core.NotTracked || b == core.NotTracked:
				assert.False(t, ok, "%s/%s", a, b)
			case a == core.Tracked && b == core.Tracked:
				require.True(t, ok)
				assert.Equal(t, core.TierConfirmed, tier)
			default:
				require.True(t, ok)
				assert.Equal(t, core.TierInferred, tier, "%s/%s", a, b)
			}
		}
	}
}

func TestDrawableBones_AllTracked(t *testing.T) {
	b := bodyWith(core.Tracked)

	bones := DrawableBones(&b, allValid())

	require.Len(t, bones, BoneCount)
	for i, bd := range bones {
		assert.Equal(t, Bones[i], bd.Bone)
		assert.Equal(t, core.TierConfirmed, bd.Tier)
	}
	assert.Equal(t, core.Point2D{X: float64(core.Head), Y: float64(core.Head) * 2}, bones[0].From)
}

func TestDrawableBones_NotTrackedNeverAppears(t *testing.T) {
	b := bodyWith(core.Tracked)
	b.Joints[core.ElbowLeft].State = core.NotTracked
	b.Joints[core.KneeRight].State = core.Inferred

	bones := DrawableBones(&b, allValid())

	for _, bd := range bones {
		assert.NotEqual(t, core.ElbowLeft, bd.Bone[0])
		assert.NotEqual(t, core.ElbowLeft, bd.Bone[1])
	}
	// ShoulderLeft-ElbowLeft and ElbowLeft-WristLeft are gone
	assert.Len(t, bones, BoneCount-2)

	inferred := 0
	for _, bd := range bones {
		if bd.Tier == core.TierInferred {
			inferred++
			assert.True(t, bd.Bone[0] == core.KneeRight || bd.Bone[1] == core.KneeRight)
		}
	}
	assert.Equal(t, 2, inferred)
}

func TestDrawableBones_InvalidProjectionSkipped(t *testing.T) {
	b := bodyWith(core.Tracked)
	pts := allValid()
	pts[core.Head].Valid = false

	bones := DrawableBones(&b, pts)

	assert.Len(t, bones, BoneCount-1)
	for _, bd := range bones {
		assert.NotEqual(t, core.Bone{core.Head, core.Neck}, bd.Bone)
	}
}

func TestDrawableBones_UntrackedBody(t *testing.T) {
	b := core.NewBody()
	assert.Empty(t, DrawableBones(&b, allValid()))
	assert.Empty(t, DrawableJoints(&b, allValid()))
}

func TestDrawableJoints(t *testing.T) {
	b := bodyWith(core.Tracked)
	b.Joints[core.Head].State = core.NotTracked
	b.Joints[core.HandLeft].State = core.Inferred
	pts := allValid()
	pts[core.FootRight].Valid = false

	joints := DrawableJoints(&b, pts)

	require.Len(t, joints, core.JointCount-2)
	for _, jd := range joints {
		assert.NotEqual(t, core.Head, jd.Joint)
		assert.NotEqual(t, core.FootRight, jd.Joint)
		if jd.Joint == core.HandLeft {
			assert.Equal(t, core.TierInferred, jd.Tier)
		} else {
			assert.Equal(t, core.TierConfirmed, jd.Tier)
		}
	}
}

func TestBones_Immutable(t *testing.T) {
	before := Bones
	b := bodyWith(core.Inferred)
	_ = DrawableBones(&b, allValid())
	assert.Equal(t, before, Bones)
}
