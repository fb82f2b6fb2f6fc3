package metrics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const ScopeName = "github.com/samiralibabic/mcpterm"

// Tools holds the instruments recorded around tool execution. A nil *Tools
// records nothing.
type Tools struct {
	executions metric.Int64Counter
	duplicates metric.Int64Counter
	duration   metric.Float64Histogram
}

func NewTools(meter metric.Meter) (*Tools, error) {
	executions, err := meter.Int64Counter("mcpterm.tool.executions",
		metric.WithDescription("Tool executions by tool and status."),
	)
	if err != nil {
		return nil, errors.Wrap(err, "executions counter")
	}
	duplicates, err := meter.Int64Counter("mcpterm.tool.duplicates",
		metric.WithDescription("Tool calls suppressed as duplicates within a turn."),
	)
	if err != nil {
		return nil, errors.Wrap(err, "duplicates counter")
	}
	duration, err := meter.Float64Histogram("mcpterm.tool.duration",
		metric.WithDescription("Tool execution duration."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "duration histogram")
	}
	return &Tools{executions: executions, duplicates: duplicates, duration: duration}, nil
}

// Default builds Tools on the global meter provider.
func Default() (*Tools, error) {
	return NewTools(otel.Meter(ScopeName))
}

func (t *Tools) Executed(ctx context.Context, toolID, status string, d time.Duration) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool_id", toolID),
		attribute.String("status", status),
	)
	t.executions.Add(ctx, 1, attrs)
	t.duration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}

func (t *Tools) Suppressed(ctx context.Context, toolID string) {
	if t == nil {
		return
	}
	t.duplicates.Add(ctx, 1, metric.WithAttributes(attribute.String("tool_id", toolID)))
}
