package syncer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "yandal-patrol/syncer"

// Metrics records poll and submission outcomes. Instruments come from the global meter provider,
// which is a no-op until the process installs one.
type Metrics struct {
	polls        metric.Int64Counter
	pollDuration metric.Float64Histogram
	skippedRows  metric.Int64Counter
	submissions  metric.Int64Counter
	pending      metric.Int64UpDownCounter
}

// NewMetrics registers the syncer instruments on meter; a nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	polls, err := meter.Int64Counter("patrol.polls.total",
		metric.WithDescription("Remote polls by result"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return nil, err
	}
	pollDuration, err := meter.Float64Histogram("patrol.poll.duration",
		metric.WithDescription("Remote poll duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}
	skippedRows, err := meter.Int64Counter("patrol.poll.skipped_rows",
		metric.WithDescription("Report rows that could not be decoded or merged"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}
	submissions, err := meter.Int64Counter("patrol.submissions.total",
		metric.WithDescription("Report submissions by result"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}
	pending, err := meter.Int64UpDownCounter("patrol.submissions.in_flight",
		metric.WithDescription("Submissions waiting for the remote store"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		polls:        polls,
		pollDuration: pollDuration,
		skippedRows:  skippedRows,
		submissions:  submissions,
		pending:      pending,
	}, nil
}

func (m *Metrics) recordPoll(ctx context.Context, result string, duration time.Duration, skipped int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.polls.Add(ctx, 1, attrs)
	m.pollDuration.Record(ctx, duration.Seconds(), attrs)
	if skipped > 0 {
		m.skippedRows.Add(ctx, int64(skipped))
	}
}

func (m *Metrics) recordSubmission(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) trackInFlight(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	m.pending.Add(ctx, 1)
	return func() {
		m.pending.Add(ctx, -1)
	}
}
