package lab

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("lab")

var (
	resizeTotal     metric.Int64Counter
	voicesAdded     metric.Int64Counter
	voicesRemoved   metric.Int64Counter
	edgesConnected  metric.Int64Counter
	edgesDropped    metric.Int64Counter
	backendFailures metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		resizeTotal, err = meter.Int64Counter(
			"lab_resize_total",
			metric.WithDescription("Voice count changes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		voicesAdded, err = meter.Int64Counter(
			"lab_voices_added_total",
			metric.WithDescription("Voices created by resizes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		voicesRemoved, err = meter.Int64Counter(
			"lab_voices_removed_total",
			metric.WithDescription("Voices disposed by resizes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesConnected, err = meter.Int64Counter(
			"lab_edges_connected_total",
			metric.WithDescription("Voice-level edges connected"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesDropped, err = meter.Int64Counter(
			"lab_edges_dropped_total",
			metric.WithDescription("Voice-level edges disconnected"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		backendFailures, err = meter.Int64Counter(
			"lab_backend_failures_total",
			metric.WithDescription("Voice connect or disconnect calls the backend refused"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordResize(old, new int) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	grow := new > old
	resizeTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("grow", grow)))
	if grow {
		voicesAdded.Add(ctx, int64(new-old))
	} else {
		voicesRemoved.Add(ctx, int64(old-new))
	}
}

func recordRewire(added, dropped int) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	if added > 0 {
		edgesConnected.Add(ctx, int64(added))
	}
	if dropped > 0 {
		edgesDropped.Add(ctx, int64(dropped))
	}
}

func recordBackendFailure(op string) {
	if err := initMetrics(); err != nil {
		return
	}
	backendFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}
