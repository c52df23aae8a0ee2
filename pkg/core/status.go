// pkg/core/status.go
package core

// SensorStatus is the user-facing availability state of the sensor.
type SensorStatus uint8

const (
	StatusNoSensor SensorStatus = iota
	StatusRunning
	StatusNotAvailable
)

// Text returns the status line shown to the user.
func (s SensorStatus) Text() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusNotAvailable:
		return "Sensor not available"
	default:
		return "No ready sensor found"
	}
}

func (s SensorStatus) String() string {
	return s.Text()
}
