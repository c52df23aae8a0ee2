package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bodybasics/posetrack/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	SessionID  string              `json:"sessionId"`
	Source     string              `json:"source"`
	StartTime  time.Time           `json:"startTime"`
	EndTime    time.Time           `json:"endTime"`
	Frames     uint64              `json:"frames"`
	MaxBodies  int                 `json:"maxBodies"`
	PoseCounts []PoseCount         `json:"poseCounts"`
	Statuses   []StatusChange      `json:"statuses"`
	Recent     []*core.RenderFrame `json:"recent"`
}

// PoseCount is the number of body-frames a pose was detected in
type PoseCount struct {
	Pose  core.PoseName `json:"pose"`
	Count uint64        `json:"count"`
}

// exportJSON writes the session summary to a JSON file, gzipped if
// configured. The caller holds the lock.
func (s *Sink) exportJSON() error {
	export := s.buildExport()

	timestamp := s.session.StartTime.Format("20060102_150405")
	filename := fmt.Sprintf("session_%s_%s.json", timestamp, s.session.ID)
	if s.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(s.cfg.OutputDir, filename)

	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if s.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	s.lastExportPath = outputPath
	return nil
}

func (s *Sink) buildExport() SessionExport {
	export := SessionExport{
		SessionID:  s.session.ID.String(),
		Source:     s.session.Source,
		StartTime:  s.session.StartTime,
		EndTime:    time.Now().UTC(),
		Frames:     s.frames,
		MaxBodies:  s.maxBodies,
		PoseCounts: make([]PoseCount, 0, len(s.poseCounts)),
		Statuses:   make([]StatusChange, 0, len(s.statuses)),
		Recent:     make([]*core.RenderFrame, 0, len(s.history)),
	}

	for name, n := range s.poseCounts {
		export.PoseCounts = append(export.PoseCounts, PoseCount{Pose: name, Count: n})
	}
	sort.Slice(export.PoseCounts, func(i, j int) bool {
		return export.PoseCounts[i].Pose < export.PoseCounts[j].Pose
	})

	export.Statuses = append(export.Statuses, s.statuses...)
	export.Recent = append(export.Recent, s.history...)
	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
