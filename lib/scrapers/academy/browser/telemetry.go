package browser

import "courtwatch/lib/telemetry"

var tracer = telemetry.Tracer("courtwatch.lib.scrapers.academy.browser")
