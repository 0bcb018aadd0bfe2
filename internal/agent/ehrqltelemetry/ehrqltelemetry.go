// Package ehrqltelemetry scans a finished job's log for structured
// ehrql-tool lines and turns them into extra span events, a small
// agent-side post-processing step supplemented from
// original_source/agent/cli/ehrql_log_telemetry.py (not excluded by
// any Non-goal).
package ehrqltelemetry

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// logPrefix marks an ehrql structured-telemetry line within a job's
// combined stdout/stderr log.
const logPrefix = "ehrql-telemetry:"

// Event is one structured telemetry line ehrql's runtime emits.
type Event struct {
	Name       string            `json:"name"`
	DurationMS float64           `json:"duration_ms"`
	Attributes map[string]string `json:"attributes"`
}

// Scan reads log, extracting every ehrql-telemetry line, and returns
// them in file order. Malformed lines are skipped rather than failing
// the whole scan — a partial log shouldn't block finalize().
func Scan(log io.Reader) []Event {
	var events []Event
	scanner := bufio.NewScanner(log)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, logPrefix)
		if idx < 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line[idx+len(logPrefix):]), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events
}

// Attach adds one span event per Event, so the events of a finished
// job's finalize() span carry ehrql's own reported timings without a
// separate telemetry table.
func Attach(span trace.Span, events []Event) {
	for _, e := range events {
		attrs := []attribute.KeyValue{attribute.Float64("ehrql.duration_ms", e.DurationMS)}
		for k, v := range e.Attributes {
			attrs = append(attrs, attribute.String("ehrql."+k, v))
		}
		span.AddEvent(e.Name, trace.WithAttributes(attrs...))
	}
}
