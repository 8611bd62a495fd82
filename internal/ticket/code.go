package ticket

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"time"
)

// codeAlphabet excludes easily-confused characters (0/O, 1/I/L) so the
// suffix survives being read over the phone to a call-centre agent.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeSuffixLen = 8

// NewCode generates a ticket code of the form TKT-YYYYMMDD-XXXXXXXX.
// The date stamp uses the provided reference time (booking timezone)
// and the suffix is drawn from crypto/rand.  Uniqueness is ultimately
// enforced by the UNIQUE index on tickets.code.
func NewCode(now time.Time) (string, error) {
	buf := make([]byte, codeSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return fmt.Sprintf("TKT-%s-%s", now.Format("20060102"), string(buf)), nil
}

// NewBookingCode generates a booking reference of the form BK-XXXXXXXX,
// used for the delta bookings opened by the exchange workflow.
func NewBookingCode() (string, error) {
	buf := make([]byte, codeSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "BK-" + string(buf), nil
}

var codePattern = regexp.MustCompile(`^TKT-\d{8}-[A-Z2-9]{8}$`)

// ValidCode reports whether a string has the shape of a ticket code.
// Handlers use it to reject garbage before hitting the database.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}
