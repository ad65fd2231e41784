package httpclient

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
)

const clientTracerName = "github.com/gaborage/lichess-go/httpclient"

// startAttemptSpan starts a client span for one HTTP attempt and injects the
// trace context into the outgoing headers.
func startAttemptSpan(ctx context.Context, httpReq *http.Request) (context.Context, trace.Span) {
	tracer := otel.Tracer(clientTracerName)

	ctx, span := tracer.Start(ctx, httpReq.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(httpReq.Method),
			semconv.URLFull(redactedURL(httpReq)),
			semconv.ServerAddress(httpReq.URL.Hostname()),
		),
	)

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	return ctx, span
}

// endAttemptSpan records the outcome of an attempt. status is 0 when no
// response was received.
func endAttemptSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}
	if err != nil {
		span.SetAttributes(attribute.String(string(semconv.ErrorTypeKey), errorTypeName(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// redactedURL drops the query string, which may carry user input.
func redactedURL(httpReq *http.Request) string {
	u := *httpReq.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// errorTypeName classifies err for span and metric attributes.
func errorTypeName(err error) string {
	if err == nil {
		return ""
	}
	var clientErr ClientError
	switch {
	case errors.As(err, &clientErr):
		return string(clientErr.Type())
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "_OTHER"
	}
}
