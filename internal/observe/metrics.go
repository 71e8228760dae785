// Package observe provides application-wide observability primitives for
// slowscan: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all slowscan metrics.
const meterName = "github.com/MrWong99/slowscan"

// Session outcome values for the "status" attribute.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the OTel types handle their own
// synchronisation.
type Metrics struct {
	// EncodeDuration tracks wall-clock time to render one session to PCM.
	// Use with attributes:
	//   attribute.String("mode", ...), attribute.String("status", ...)
	EncodeDuration metric.Float64Histogram

	// AirTime tracks the on-air length of encoded transmissions.
	AirTime metric.Float64Histogram

	// Sessions counts finished encode sessions by mode and status.
	Sessions metric.Int64Counter

	// Samples counts PCM samples produced, all channels included.
	Samples metric.Int64Counter

	// ActiveSessions tracks encodes currently in progress.
	ActiveSessions metric.Int64UpDownCounter

	// RepeaterImages counts images picked up by the directory repeater.
	// Use with attribute: attribute.String("status", ...)
	RepeaterImages metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time by method,
	// route and status class. See [Metrics.RecordHTTP].
	HTTPRequestDuration metric.Float64Histogram
}

// encodeBuckets defines histogram bucket boundaries (in seconds) for render
// time. A full-size PD290 at 48 kHz takes a few seconds on one core.
var encodeBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// airTimeBuckets spans the shortest (Robot8BW, ~9 s) to the longest
// (PasokonP7, ~7 min) transmissions.
var airTimeBuckets = []float64{
	10, 30, 60, 120, 180, 240, 300, 420, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EncodeDuration, err = m.Float64Histogram("slowscan.encode.duration",
		metric.WithDescription("Time to render an SSTV session to PCM."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(encodeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AirTime, err = m.Float64Histogram("slowscan.encode.airtime",
		metric.WithDescription("On-air length of encoded transmissions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(airTimeBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Sessions, err = m.Int64Counter("slowscan.encode.sessions",
		metric.WithDescription("Total encode sessions by mode and status."),
	); err != nil {
		return nil, err
	}
	if met.Samples, err = m.Int64Counter("slowscan.encode.samples",
		metric.WithDescription("Total PCM samples produced by mode."),
	); err != nil {
		return nil, err
	}
	if met.RepeaterImages, err = m.Int64Counter("slowscan.repeater.images",
		metric.WithDescription("Images handled by the directory repeater by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("slowscan.encode.active",
		metric.WithDescription("Number of encode sessions in progress."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("slowscan.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status class."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted(ctx context.Context, mode string) {
	m.ActiveSessions.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordSession records the end of an encode session: the gauge decrement,
// the outcome counter, render time, and, for successful sessions, the sample
// count and air time.
func (m *Metrics) RecordSession(ctx context.Context, mode, status string, elapsed, airTime time.Duration, samples int64) {
	modeAttr := attribute.String("mode", mode)
	m.ActiveSessions.Add(ctx, -1, metric.WithAttributes(modeAttr))

	attrs := metric.WithAttributes(modeAttr, attribute.String("status", status))
	m.Sessions.Add(ctx, 1, attrs)
	m.EncodeDuration.Record(ctx, elapsed.Seconds(), attrs)
	if status != StatusOK {
		return
	}
	m.Samples.Add(ctx, samples, metric.WithAttributes(modeAttr))
	m.AirTime.Record(ctx, airTime.Seconds(), metric.WithAttributes(modeAttr))
}

// RecordRepeaterImage is a convenience method that records one repeater
// pickup with its outcome.
func (m *Metrics) RecordRepeaterImage(ctx context.Context, status string) {
	m.RepeaterImages.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordHTTP records one served request. Statuses are folded into their
// class ("2xx", "4xx", ...) to keep the series count small.
func (m *Metrics) RecordHTTP(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", strconv.Itoa(status/100)+"xx"),
	))
}
