package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// InstrumentPerfStats records process gauges every interval until ctx is
// done. Child processes are tracked since the headless browser runs as
// children of this process.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	perfMeter := Meter("courtwatch.perf_stats")
	cpuGauge, _ := perfMeter.Float64Gauge("cpu_usage")
	memoryGauge, _ := perfMeter.Int64Gauge("allocated_mb")
	goroutineGauge, _ := perfMeter.Int64Gauge("goroutine_count")
	childrenGauge, _ := perfMeter.Int64Gauge("child_processes")

	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		slog.WarnContext(ctx, "perf stats: failed to inspect own process", "err", err)
	}

	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				usage, err := cpu.PercentWithContext(ctx, 0, false)
				if err == nil && len(usage) > 0 {
					cpuGauge.Record(ctx, usage[0])
				} else if err != nil {
					slog.DebugContext(ctx, "perf stats: failed to read cpu usage", "err", err)
				}
				if self != nil {
					children, err := self.ChildrenWithContext(ctx)
					if err == nil {
						childrenGauge.Record(ctx, int64(len(children)))
					}
				}

				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
