package api

import (
	"courtwatch/lib/restyutil"
	"courtwatch/lib/telemetry"
)

var tracer = telemetry.Tracer("courtwatch.lib.scrapers.academy.api")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
