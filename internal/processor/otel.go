package processor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/bodybasics/posetrack/internal/processor"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
