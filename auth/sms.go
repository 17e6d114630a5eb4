// Package auth implements voter and admin authentication: phone-number
// canonicalisation and HMAC identity, one-time codes, the signed challenge
// and session tokens, and Argon2i admin credentials.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/nyaruka/phonenumbers"

	"github.com/verivote/dreip-backend/types"
)

// Sms is a phone number in canonical E.164 form. The number itself never
// reaches persistent storage; only its HMAC does.
type Sms struct {
	e164 string
}

// ParseSms parses and canonicalises a phone number. The input must carry an
// international prefix; malformed input is rejected at the edge.
func ParseSms(raw string) (Sms, error) {
	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return Sms{}, fmt.Errorf("invalid phone number: %w", err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return Sms{}, fmt.Errorf("invalid phone number")
	}
	return Sms{e164: phonenumbers.Format(num, phonenumbers.E164)}, nil
}

// String returns the canonical E.164 form.
func (s Sms) String() string {
	return s.e164
}

// HMAC computes HMAC-SHA256 of the canonical number under the server secret.
// This is the only form in which the number persists; reversal requires brute
// forcing both the number space and the secret.
func (s Sms) HMAC(secret []byte) types.HexBytes {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(s.e164))
	return mac.Sum(nil)
}
