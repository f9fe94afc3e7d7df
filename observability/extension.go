package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aidlink/triage/ext"
	"github.com/aidlink/triage/request"
)

// Compile-time interface checks.
var (
	_ ext.Extension        = (*MetricsExtension)(nil)
	_ ext.RequestAdmitted  = (*MetricsExtension)(nil)
	_ ext.RequestCompleted = (*MetricsExtension)(nil)
	_ ext.RequestFailed    = (*MetricsExtension)(nil)
	_ ext.RequestRejected  = (*MetricsExtension)(nil)
	_ ext.RequestEvicted   = (*MetricsExtension)(nil)
	_ ext.RequestCancelled = (*MetricsExtension)(nil)
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/aidlink/triage/observability"

// MetricsExtension records system-wide lifecycle counters via OTel.
// Register it as an extension to automatically track admission rates,
// completion counts, failure rates, rejections, and evictions. Counters
// carry request_type and priority attributes.
type MetricsExtension struct {
	admitted  metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	rejected  metric.Int64Counter
	evicted   metric.Int64Counter
	cancelled metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. Without a configured provider the counters are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject an SDK meter in tests.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On instrument-creation error the OTel API returns noops, so the
	// extension degrades gracefully.
	admitted, _ := meter.Int64Counter("triage.request.admitted",
		metric.WithDescription("Requests accepted into the queue"),
		metric.WithUnit("{request}"))
	completed, _ := meter.Int64Counter("triage.request.completed",
		metric.WithDescription("Requests whose handler finished successfully"),
		metric.WithUnit("{request}"))
	failed, _ := meter.Int64Counter("triage.request.failed",
		metric.WithDescription("Requests whose handler returned an error"),
		metric.WithUnit("{request}"))
	rejected, _ := meter.Int64Counter("triage.request.rejected",
		metric.WithDescription("Requests refused at admission"),
		metric.WithUnit("{request}"))
	evicted, _ := meter.Int64Counter("triage.request.evicted",
		metric.WithDescription("Pending requests displaced by an overflow policy"),
		metric.WithUnit("{request}"))
	cancelled, _ := meter.Int64Counter("triage.request.cancelled",
		metric.WithDescription("Pending requests discarded after producer cancellation"),
		metric.WithUnit("{request}"))

	return &MetricsExtension{
		admitted:  admitted,
		completed: completed,
		failed:    failed,
		rejected:  rejected,
		evicted:   evicted,
		cancelled: cancelled,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func requestAttrs(req *request.Request) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("request_type", req.Type),
		attribute.String("priority", req.Priority.String()),
	)
}

// OnRequestAdmitted implements ext.RequestAdmitted.
func (m *MetricsExtension) OnRequestAdmitted(ctx context.Context, req *request.Request) error {
	m.admitted.Add(ctx, 1, requestAttrs(req))
	return nil
}

// OnRequestCompleted implements ext.RequestCompleted.
func (m *MetricsExtension) OnRequestCompleted(ctx context.Context, req *request.Request, _ time.Duration) error {
	m.completed.Add(ctx, 1, requestAttrs(req))
	return nil
}

// OnRequestFailed implements ext.RequestFailed.
func (m *MetricsExtension) OnRequestFailed(ctx context.Context, req *request.Request, _ error) error {
	m.failed.Add(ctx, 1, requestAttrs(req))
	return nil
}

// OnRequestRejected implements ext.RequestRejected.
func (m *MetricsExtension) OnRequestRejected(ctx context.Context, req *request.Request, _ error) error {
	m.rejected.Add(ctx, 1, requestAttrs(req))
	return nil
}

// OnRequestEvicted implements ext.RequestEvicted.
func (m *MetricsExtension) OnRequestEvicted(ctx context.Context, req *request.Request) error {
	m.evicted.Add(ctx, 1, requestAttrs(req))
	return nil
}

// OnRequestCancelled implements ext.RequestCancelled.
func (m *MetricsExtension) OnRequestCancelled(ctx context.Context, req *request.Request) error {
	m.cancelled.Add(ctx, 1, requestAttrs(req))
	return nil
}
