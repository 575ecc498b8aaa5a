package acquisition

import "courtwatch/lib/telemetry"

var tracer = telemetry.Tracer("courtwatch.services.acquisition")
var meter = telemetry.Meter("courtwatch.services.acquisition")

var outcomeCounter, _ = meter.Int64Counter("target_outcomes")
var slotStateCounter, _ = meter.Int64Counter("classified_slots")
