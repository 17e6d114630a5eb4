package auth

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestParseSms(t *testing.T) {
	c := qt.New(t)
	sms, err := ParseSms("+441234567890")
	c.Assert(err, qt.IsNil)
	c.Assert(sms.String(), qt.Equals, "+441234567890")

	// Formatting noise canonicalises away.
	formatted, err := ParseSms("+44 1234 567890")
	c.Assert(err, qt.IsNil)
	c.Assert(formatted.String(), qt.Equals, "+441234567890")

	// No international prefix, garbage, and empty input are rejected.
	for _, raw := range []string{"1234567890", "not a number", "", "+44"} {
		_, err := ParseSms(raw)
		c.Assert(err, qt.IsNotNil, qt.Commentf("input %q", raw))
	}
}

func TestSmsHMAC(t *testing.T) {
	c := qt.New(t)
	secret := []byte("hmac-secret")
	a, err := ParseSms("+441234567890")
	c.Assert(err, qt.IsNil)
	b, err := ParseSms("+44 1234 567890")
	c.Assert(err, qt.IsNil)

	// Canonicalisation makes the HMAC stable across formatting.
	c.Assert(a.HMAC(secret).Equal(b.HMAC(secret)), qt.IsTrue)
	c.Assert(len(a.HMAC(secret)), qt.Equals, 32)

	// Different secret or number changes the HMAC.
	c.Assert(a.HMAC([]byte("other")).Equal(a.HMAC(secret)), qt.IsFalse)
	other, err := ParseSms("+441234567891")
	c.Assert(err, qt.IsNil)
	c.Assert(other.HMAC(secret).Equal(a.HMAC(secret)), qt.IsFalse)
}

func TestCode(t *testing.T) {
	c := qt.New(t)
	code, err := RandomCode()
	c.Assert(err, qt.IsNil)
	c.Assert(len(code.String()), qt.Equals, CodeLength)

	parsed, err := ParseCode(code.String())
	c.Assert(err, qt.IsNil)
	c.Assert(parsed.Equal(code), qt.IsTrue)

	for _, raw := range []string{"", "12345", "1234567", "12345a", "12 456"} {
		_, err := ParseCode(raw)
		c.Assert(err, qt.IsNotNil, qt.Commentf("input %q", raw))
	}
}

func testTokens() *Tokens {
	return &Tokens{
		Secret:  []byte("jwt-secret"),
		OtpTTL:  5 * time.Minute,
		AuthTTL: time.Hour,
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	c := qt.New(t)
	tokens := testTokens()
	sms, err := ParseSms("+441234567890")
	c.Assert(err, qt.IsNil)

	token, code, err := tokens.NewChallenge(sms)
	c.Assert(err, qt.IsNil)
	gotSms, gotCode, err := tokens.DecodeChallenge(token)
	c.Assert(err, qt.IsNil)
	c.Assert(gotSms.String(), qt.Equals, sms.String())
	c.Assert(gotCode.Equal(code), qt.IsTrue)

	// Codes are independent between challenges.
	token2, code2, err := tokens.NewChallenge(sms)
	c.Assert(err, qt.IsNil)
	c.Assert(token2, qt.Not(qt.Equals), token)
	_ = code2

	// A token under another secret is rejected.
	other := &Tokens{Secret: []byte("other"), OtpTTL: tokens.OtpTTL, AuthTTL: tokens.AuthTTL}
	_, _, err = other.DecodeChallenge(token)
	c.Assert(err, qt.IsNotNil)
}

func TestSessionRoundTrip(t *testing.T) {
	c := qt.New(t)
	tokens := testTokens()

	token, err := tokens.NewSession("user-1", RightsVoter)
	c.Assert(err, qt.IsNil)
	claims, err := tokens.DecodeSession(token)
	c.Assert(err, qt.IsNil)
	c.Assert(claims.UserID, qt.Equals, "user-1")
	c.Assert(claims.Rights, qt.Equals, RightsVoter)

	admin, err := tokens.NewSession("admin-1", RightsAdmin)
	c.Assert(err, qt.IsNil)
	claims, err = tokens.DecodeSession(admin)
	c.Assert(err, qt.IsNil)
	c.Assert(claims.Rights, qt.Equals, RightsAdmin)
}

func TestSessionExpiry(t *testing.T) {
	c := qt.New(t)
	tokens := &Tokens{Secret: []byte("jwt-secret"), AuthTTL: -time.Minute}
	token, err := tokens.NewSession("user-1", RightsVoter)
	c.Assert(err, qt.IsNil)
	_, err = tokens.DecodeSession(token)
	c.Assert(err, qt.IsNotNil)
}

func TestPasswordHash(t *testing.T) {
	c := qt.New(t)
	hash, err := HashPassword("dreip4lyfe")
	c.Assert(err, qt.IsNil)
	c.Assert(hash, qt.Contains, "$argon2i$")
	c.Assert(VerifyPassword(hash, "dreip4lyfe"), qt.IsTrue)
	c.Assert(VerifyPassword(hash, "wrong"), qt.IsFalse)
	c.Assert(VerifyPassword("not a hash", "dreip4lyfe"), qt.IsFalse)

	// Salting makes hashes unique.
	hash2, err := HashPassword("dreip4lyfe")
	c.Assert(err, qt.IsNil)
	c.Assert(hash2, qt.Not(qt.Equals), hash)
}
