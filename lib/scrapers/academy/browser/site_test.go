package browser

import (
	"strings"
	"time"

	"courtwatch/lib/credstore"
	"courtwatch/lib/retry"
)

const (
	testOrigin = "https://booking.example"
	testPhone  = "9876543210"
	testCode   = "123456"
)

var testNow = time.Date(2024, time.September, 6, 9, 0, 0, 0, time.UTC)

var fastPolicy = retry.Policy{Attempts: 2, Delay: time.Millisecond}

// academySite scripts the booking site: a login overlay asking for a
// phone number, then a one-time code, then the logged in app.
func academySite() *fakePage {
	f := newFakePage(renderAcademy)
	f.onClick = clickAcademy
	return f
}

func loggedIn(f *fakePage) bool {
	return f.flags["logged_in"] || f.hasCookie("sid", "valid")
}

func renderAcademy(f *fakePage) string {
	if strings.Contains(f.url, "/venue-details/") {
		if !loggedIn(f) {
			return `<html><body><div class="modal"><input type="tel" placeholder="Phone number"></div></body></html>`
		}
		return renderVenue(f)
	}

	switch {
	case loggedIn(f):
		return `<html><body><nav><span id="userNameCss">Asha</span><a href="#">Logout</a></nav></body></html>`
	case f.flags["otp_sent"]:
		return `<html><body><div class="modal"><input maxlength="6" placeholder="Enter OTP"><button type="submit">Verify</button></div></body></html>`
	case f.flags["overlay"]:
		return `<html><body><div class="modal"><input type="tel" placeholder="Phone number"><input type="submit" class="custom-button" value="Send OTP"></div></body></html>`
	default:
		return `<html><body><header><span>Login</span></header></body></html>`
	}
}

func renderVenue(f *fakePage) string {
	var b strings.Builder
	b.WriteString(`<html><body><form class="contact-form"><input id="card1" type="date"></form>`)

	date := f.inputs[dateInputSelector]
	// the site renders no courts past its booking window
	if date != "" && date < "2030-01-01" {
		b.WriteString(`<div class="courts"><div class="court-item">1</div><div class="court-item"> 2 </div></div>`)
		switch f.selectedCourt {
		case 0:
			b.WriteString(`<div class="time-slots-container">
				<span class="styled-btn" style="color: red; cursor: not-allowed;">06:00 - 07:00</span>
				<span class="styled-btn">07:00 - 08:00</span>
				<span class="styled-btn">Select a slot</span>
			</div>`)
		case 1:
			b.WriteString(`<div class="time-slots-container">
				<span class="styled-btn" style="COLOR:RED;CURSOR:NOT-ALLOWED">06:00 - 07:00</span>
				<span class="styled-btn" style="color: green;">07:00 - 08:00</span>
			</div>`)
		}
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func clickAcademy(f *fakePage, sel Selector) {
	switch {
	case sel.Text == "Login":
		f.flags["overlay"] = true
	case f.flags["overlay"] && !f.flags["otp_sent"] && f.filled[phoneInputSelector] == testPhone:
		f.flags["otp_sent"] = true
	case f.flags["otp_sent"] && f.filled[otpInputSelector] == testCode:
		f.flags["logged_in"] = true
		f.storage[LocalStorage][credstore.TokenStorageKey] = "tok-xyz"
		f.cookies = append(f.cookies, credstore.Cookie{Name: "sid", Value: "fresh", Domain: "booking.example", Path: "/"})
	}
}
