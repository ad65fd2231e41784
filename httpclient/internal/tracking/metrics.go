package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for HTTP client metrics instrumentation
	clientMeterName = "github.com/gaborage/lichess-go/httpclient"

	// Metric names following OpenTelemetry semantic conventions
	metricRequestDuration = "http.client.request.duration" // Histogram in seconds

	// Client-specific metrics
	metricRequests = "lichess.client.requests" // Counter of attempts
	metricRetries  = "lichess.client.retries"  // Counter of scheduled retries

	// Attribute keys per OTel semantic conventions
	attrHTTPMethod  = "http.request.method"
	attrHTTPStatus  = "http.response.status_code"
	attrServerAddr  = "server.address"
	attrErrorType   = "error.type"
	attrRetryReason = "retry.reason"
)

var (
	// Singleton meter initialization
	clientMeter metric.Meter
	meterOnce   sync.Once
	meterInitMu sync.Mutex

	// Metric instruments
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	retryCounter    metric.Int64Counter
)

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize http client metric %s: %v\n", metricName, err)
	}
}

// initClientMeter initializes the OpenTelemetry meter and client metric instruments.
func initClientMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if clientMeter != nil {
		return
	}

	clientMeter = otel.Meter(clientMeterName)

	var err error

	requestDuration, err = clientMeter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of HTTP client requests up to the response headers"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	requestCounter, err = clientMeter.Int64Counter(
		metricRequests,
		metric.WithDescription("Number of HTTP attempts issued"),
		metric.WithUnit("{request}"),
	)
	logMetricError(metricRequests, err)

	retryCounter, err = clientMeter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of retries scheduled by the retry policy"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)
}

func ensureClientMeterInitialized() {
	meterOnce.Do(initClientMeter)
}

// RecordRequest records one HTTP attempt.
//
// Parameters:
//   - method: HTTP method
//   - host: target host, e.g. lichess.org
//   - status: response status code, 0 when no response was received
//   - errType: error classification, empty on success
//   - duration: time until response headers or failure
func RecordRequest(ctx context.Context, method, host string, status int, errType string, duration time.Duration) {
	ensureClientMeterInitialized()

	attrs := []attribute.KeyValue{
		attribute.String(attrHTTPMethod, method),
		attribute.String(attrServerAddr, host),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(attrHTTPStatus, status))
	}
	if errType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errType))
	}

	if requestDuration != nil {
		durationSec := float64(duration.Nanoseconds()) / 1e9
		requestDuration.Record(ctx, durationSec, metric.WithAttributes(attrs...))
	}
	if requestCounter != nil {
		requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRetry records a retry decision. reason is the error type that triggered it.
func RecordRetry(ctx context.Context, reason string) {
	ensureClientMeterInitialized()

	if retryCounter != nil {
		retryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrRetryReason, reason)))
	}
}

// ResetForTesting resets the singleton meter so tests can install their own provider.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	clientMeter = nil
	requestDuration = nil
	requestCounter = nil
	retryCounter = nil
	meterOnce = sync.Once{}
}
