package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bodybasics/posetrack/pkg/core"
)

// Message types sent to the viewer.
const (
	TypeSessionStart = "session_start"
	TypeRenderFrame  = "render_frame"
	TypeStatus       = "status"
)

// Envelope wraps every message sent over the socket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StatusPayload is the payload of a status message.
type StatusPayload struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// Config holds WebSocket sink configuration.
type Config struct {
	URL    string
	Secret string
}

// Sink streams render frames over WebSocket to a live viewer.
type Sink struct {
	conn    *connection
	cfg     Config
	session core.Session
}

// New creates a new WebSocket sink.
func New(cfg Config, session core.Session, logger zerolog.Logger) *Sink {
	return &Sink{
		conn:    newConnection(logger.With().Str("sink", "websocket").Logger()),
		cfg:     cfg,
		session: session,
	}
}

// Init connects to the viewer and announces the session.
func (s *Sink) Init() error {
	hello, err := marshalEnvelope(TypeSessionStart, s.session)
	if err != nil {
		return err
	}
	s.conn.setHello(hello)
	if err := s.conn.dial(s.cfg.URL, s.cfg.Secret); err != nil {
		return err
	}
	s.conn.send(hello)
	return nil
}

// Close disconnects from the viewer.
func (s *Sink) Close() error {
	return s.conn.close()
}

// WriteFrame sends a render frame (fire-and-forget).
func (s *Sink) WriteFrame(f *core.RenderFrame) error {
	return s.sendEnvelope(TypeRenderFrame, f)
}

// SetStatus sends a sensor status change.
func (s *Sink) SetStatus(status core.SensorStatus) error {
	return s.sendEnvelope(TypeStatus, StatusPayload{
		Status:  status.Text(),
		Running: status == core.StatusRunning,
	})
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop. A full send queue drops the message.
func (s *Sink) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	s.conn.send(data)
	return nil
}
