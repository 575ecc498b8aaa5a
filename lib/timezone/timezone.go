package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// hosts without tzdata, IST has no DST so a fixed zone is exact
		Location = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// Now is forced into the venues' timezone, hosts elsewhere would
// otherwise compute the wrong calendar day near midnight.
func Now() time.Time {
	return time.Now().In(Location)
}

// StartOfDay returns midnight of t's calendar day in the venues' timezone.
func StartOfDay(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}
