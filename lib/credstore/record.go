package credstore

import (
	"encoding/json"
	"time"
)

type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
	// Expires is in unix seconds, 0 for a session cookie.
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HttpOnly bool    `json:"http_only,omitempty"`
}

// Record is a persisted credential: either a browser session snapshot
// or a cached bearer token. Records are values, an update is a new
// record saved over the old one.
type Record struct {
	IssuedAt     time.Time         `json:"issued_at"`
	TargetOrigin string            `json:"target_origin"`
	Token        string            `json:"token,omitempty"`
	Cookies      []Cookie          `json:"cookies,omitempty"`
	LocalState   map[string]string `json:"local_state,omitempty"`
	SessionState map[string]string `json:"session_state,omitempty"`
}

// Refreshed is a copy of r reissued at now.
func (r Record) Refreshed(now time.Time) Record {
	r.IssuedAt = now
	return r
}

// Usable reports whether the record carries anything that can
// authenticate: a token or at least one cookie.
func (r Record) Usable() bool {
	return r.Token != "" || len(r.Cookies) > 0
}

// TokenStorageKey is where the booking site keeps its bearer token in
// local storage.
const TokenStorageKey = "loginToken"

// SessionToken is the bearer token captured inside a browser snapshot.
func SessionToken(r Record) string {
	if r.Token != "" {
		return r.Token
	}
	return r.LocalState[TokenStorageKey]
}

// presence is used to tell a missing field apart from a zero one.
type presence struct {
	IssuedAt     *time.Time `json:"issued_at"`
	TargetOrigin *string    `json:"target_origin"`
}

func decode(contents []byte) (Record, bool) {
	var p presence
	if json.Unmarshal(contents, &p) != nil {
		return Record{}, false
	}
	if p.IssuedAt == nil || p.TargetOrigin == nil {
		return Record{}, false
	}
	var r Record
	if json.Unmarshal(contents, &r) != nil {
		return Record{}, false
	}
	return r, true
}
