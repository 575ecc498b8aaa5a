package devenv

// LiveAcademyConfig is read from dev/.state/academy.json5 by tests that
// talk to the real booking API. Those tests skip when it is absent.
type LiveAcademyConfig struct {
	Token   string `json:"token"`
	VenueID int    `json:"venue_id"`
	Date    string `json:"date"`
}
