package agent

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.opentelemetry.io/otel/attribute"
)

// RunStatsLoop samples system CPU/memory load every interval and
// attaches it to a short span, until ctx is cancelled (spec.md §4.8's
// agent metrics thread; SPEC_FULL.md's `record_stats` supplement —
// stats live in trace spans rather than a separate stats table).
func RunStatsLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sampleStats(ctx)
		}
	}
}

func sampleStats(ctx context.Context) {
	_, span := tracer.Start(ctx, "AGENT_STATS")
	defer span.End()

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		span.SetAttributes(attribute.Float64("system.cpu_percent", percents[0]))
	} else if err != nil {
		span.RecordError(err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		span.SetAttributes(attribute.Float64("system.mem_used_percent", vm.UsedPercent))
	} else {
		span.RecordError(err)
	}
}
