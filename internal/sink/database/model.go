package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Models lists every table the sink migrates.
var Models = []any{
	&SessionRecord{},
	&PoseEventRecord{},
	&StatusRecord{},
}

// SessionRecord is one pipeline run
type SessionRecord struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey;size:36"`
	Source    string     `json:"source" gorm:"size:255"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Frames    uint64     `json:"frames"`
}

func (*SessionRecord) TableName() string {
	return "sessions"
}

// PoseEventRecord is the onset of a pose on one body. Anchor is the WKT
// centroid of the body's drawable joints in display space.
type PoseEventRecord struct {
	ID          uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID   uuid.UUID      `json:"sessionId" gorm:"index;size:36"`
	Sequence    uint64         `json:"sequence" gorm:"index"`
	Slot        int            `json:"slot"`
	TrackingID  uint64         `json:"trackingId"`
	Pose        string         `json:"pose" gorm:"size:32;index"`
	Anchor      string         `json:"anchor" gorm:"size:64"`
	ActivePoses datatypes.JSON `json:"activePoses"`
	Time        time.Time      `json:"time"`
}

func (*PoseEventRecord) TableName() string {
	return "pose_events"
}

// StatusRecord is a sensor status change
type StatusRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID uuid.UUID `json:"sessionId" gorm:"index;size:36"`
	Sequence  uint64    `json:"sequence"`
	Status    string    `json:"status" gorm:"size:32"`
	Time      time.Time `json:"time"`
}

func (*StatusRecord) TableName() string {
	return "status_changes"
}
