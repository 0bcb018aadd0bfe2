// Package tracing builds and replays the span tree spec.md §4.6
// describes: one root JOB span created at DAG-insert time and
// persisted as an opaque trace_context string, and one child span per
// status_code interval, recorded after the fact with explicit
// start/end timestamps since a Job's lifetime spans many controller
// ticks (and process restarts) rather than one in-process call.
package tracing

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RevCBH/ragweb/internal/model"
)

// Tracer wraps the otel tracer used for job/status-code spans.
type Tracer struct {
	tracer trace.Tracer
}

// New returns a Tracer drawing from the process-wide TracerProvider
// registered by NewProvider.
func New(instrumentationName string) *Tracer {
	return &Tracer{tracer: otel.Tracer(instrumentationName)}
}

// StartRootSpan opens and immediately closes the JOB root span at DAG
// insert time, returning its encoded SpanContext for storage in
// Job.TraceContext. The span's own recorded duration is a zero-width
// marker; it exists so every status-code span has a trace to join, not
// to represent the Job's wall-clock lifetime (which the SDK can't hold
// open across process restarts).
func (t *Tracer) StartRootSpan(ctx context.Context, job *model.Job, at time.Time) (string, error) {
	_, span := t.tracer.Start(ctx, "JOB", trace.WithTimestamp(at), trace.WithAttributes(JobAttributes(job)...))
	sc := span.SpanContext()
	span.End(trace.WithTimestamp(at))
	return EncodeContext(sc), nil
}

// RecordStatusSpan records a closed child span for one status_code
// interval: name = code, start = the code's status_code_updated_at,
// end = the next transition's timestamp (or now, for the still-open
// current interval).
func (t *Tracer) RecordStatusSpan(ctx context.Context, traceContext string, code model.StatusCode, start, end time.Time, attrs ...attribute.KeyValue) error {
	parent, ok := DecodeContext(traceContext)
	if !ok {
		return fmt.Errorf("tracing: invalid trace_context %q", traceContext)
	}
	spanCtx := trace.ContextWithRemoteSpanContext(ctx, parent)
	_, span := t.tracer.Start(spanCtx, string(code), trace.WithTimestamp(start))
	span.SetAttributes(attrs...)
	span.End(trace.WithTimestamp(end))
	return nil
}

// RecordFinalMarker emits the 1-second marker span final codes get in
// addition to their status-code interval span (spec.md §4.6).
func (t *Tracer) RecordFinalMarker(ctx context.Context, traceContext string, code model.StatusCode, at time.Time, attrs ...attribute.KeyValue) error {
	return t.RecordStatusSpan(ctx, traceContext, code, at, at.Add(time.Second), attrs...)
}

// JobAttributes is the stable attribute set spec.md §4.6 lists for
// every job span.
func JobAttributes(job *model.Job) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("job.id", job.ID),
		attribute.String("job.rap_id", job.RapID),
		attribute.String("job.workspace", job.Workspace),
		attribute.String("job.action", job.Action),
		attribute.String("job.backend", job.Backend),
		attribute.String("job.repo_url", job.RepoURL),
		attribute.String("job.commit", job.Commit),
	}
	if job.ActionRepoURL != nil {
		attrs = append(attrs, attribute.String("job.action_repo_url", *job.ActionRepoURL))
	}
	if job.ActionCommit != nil {
		attrs = append(attrs, attribute.String("job.action_commit", *job.ActionCommit))
	}
	return attrs
}

// ResultAttributes augments a result-bearing span with the fields
// spec.md §4.6 calls out for finalized/result spans.
func ResultAttributes(results model.JobTaskResults) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("result.exit_code", results.ExitCode),
		attribute.String("result.image_id", results.ImageID),
	}
	if results.Message != nil {
		attrs = append(attrs, attribute.String("result.executor_message", *results.Message))
	}
	return attrs
}

// EncodeContext serializes a SpanContext to the opaque string stored
// in Job.TraceContext: "<trace-id-hex>:<span-id-hex>:<flags-hex>".
func EncodeContext(sc trace.SpanContext) string {
	return fmt.Sprintf("%s:%s:%s",
		sc.TraceID().String(), sc.SpanID().String(), hex.EncodeToString([]byte{byte(sc.TraceFlags())}))
}

// DecodeContext parses a string produced by EncodeContext back into a
// remote SpanContext suitable as a span parent.
func DecodeContext(s string) (trace.SpanContext, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(parts[0])
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanID, err := trace.SpanIDFromHex(parts[1])
	if err != nil {
		return trace.SpanContext{}, false
	}
	flagsByte, err := hex.DecodeString(parts[2])
	if err != nil || len(flagsByte) != 1 {
		return trace.SpanContext{}, false
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.TraceFlags(flagsByte[0]),
		Remote:     true,
	})
	return sc, sc.IsValid()
}
