// Package otp issues and verifies the short-lived one-time codes that
// gate guest ticket lookup. Challenges live in Redis under a key
// derived from the contact target, so "at most one active challenge
// per target and purpose" falls out of the keying, and Redis's
// single-threaded script execution serializes concurrent verify
// attempts against the same target.
package otp

import (
	"errors"
	"strings"
)

// Target kinds. A lookup target is either a phone number or an email
// address; exactly one is set on any Target value.
const (
	KindPhone = "phone"
	KindEmail = "email"
)

// Target identifies the contact channel an OTP is delivered to.
// Modeled as an explicit kind+value pair rather than two nullable
// fields so every consumer handles both channels deliberately.
type Target struct {
	Kind  string
	Value string
}

// ErrNoTarget is returned when neither phone nor email was supplied.
var ErrNoTarget = errors.New("phone or email required")

// NewTarget builds a Target from the optional phone/email pair of a
// lookup request. Phone wins when both are present (SMS is the primary
// channel for bus passengers). Values are normalized so that the Redis
// key for "  X@Y.Z " and "x@y.z" is the same challenge.
func NewTarget(phone, email string) (Target, error) {
	if p := normalizePhone(phone); p != "" {
		return Target{Kind: KindPhone, Value: p}, nil
	}
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		return Target{Kind: KindEmail, Value: e}, nil
	}
	return Target{}, ErrNoTarget
}

// normalizePhone strips spaces, dots and dashes and keeps a leading +.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
