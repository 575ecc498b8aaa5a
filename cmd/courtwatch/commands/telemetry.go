package commands

import (
	"context"
	"log/slog"
	"time"

	"courtwatch/lib/restyutil"
	"courtwatch/lib/scrapers/academy/api"
	"courtwatch/lib/serviceutil"
	"courtwatch/lib/telemetry"
)

var telegramOutput restyutil.InstrumentOutput

func restyOutput(name string) restyutil.InstrumentOutput {
	out, err := restyutil.NewFilesystemOutput("<dev_state>/resty/" + name)
	if err != nil {
		slog.Warn("failed to create resty output dir", "name", name, "err", err)
		return nil
	}
	return out
}

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	t, err := telemetry.SetupFromEnv(ctx, "courtwatch")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		t.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx, 5*time.Second)

	if !verbose {
		return
	}

	api.SetRestyInstrumentOutput(restyOutput("academy_api"))
	telegramOutput = restyOutput("telegram")
}
