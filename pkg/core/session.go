// pkg/core/session.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one run of the pipeline. Sinks tag everything they
// persist with the session ID.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	StartTime time.Time `json:"startTime"`
}

// NewSession starts a session for the given frame source.
func NewSession(source string) Session {
	return Session{
		ID:        uuid.New(),
		Source:    source,
		StartTime: time.Now().UTC(),
	}
}

// UploadMetadata describes an exported session file sent to a viewer server.
type UploadMetadata struct {
	SessionID string
	Source    string
	Duration  time.Duration
	Tag       string
}

// UploadMetadata returns the metadata for a session that ended at end.
func (s Session) UploadMetadata(end time.Time, tag string) UploadMetadata {
	return UploadMetadata{
		SessionID: s.ID.String(),
		Source:    s.Source,
		Duration:  end.Sub(s.StartTime),
		Tag:       tag,
	}
}
