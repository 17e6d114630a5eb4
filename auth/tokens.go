package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Cookie names for the session and challenge tokens.
const (
	AuthTokenCookie = "auth_token"
	ChallengeCookie = "challenge"
)

// Rights classify what a session token permits.
type Rights int

const (
	RightsVoter Rights = 0
	RightsAdmin Rights = 1
)

// SessionClaims is the payload of a session token: the user's document ID
// and their rights, plus the standard expiry.
type SessionClaims struct {
	UserID string `json:"uid"`
	Rights Rights `json:"rgt"`
	jwt.RegisteredClaims
}

// ChallengeClaims is the payload of an OTP challenge token: the phone number
// being verified and the expected code, plus the standard expiry. The token
// only ever travels in an httpOnly cookie.
type ChallengeClaims struct {
	Sms  string `json:"sms"`
	Code string `json:"cod"`
	jwt.RegisteredClaims
}

// Tokens issues and decodes the signed, expiring tokens used for voter
// challenges and sessions. The secret and TTLs are process-wide configuration.
type Tokens struct {
	Secret  []byte
	OtpTTL  time.Duration
	AuthTTL time.Duration
}

// NewChallenge issues a challenge token for the given number with a fresh
// random code. It returns the encoded token and the code for out-of-band
// delivery.
func (t *Tokens) NewChallenge(sms Sms) (string, Code, error) {
	code, err := RandomCode()
	if err != nil {
		return "", Code{}, err
	}
	claims := ChallengeClaims{
		Sms:  sms.String(),
		Code: code.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.OtpTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", Code{}, fmt.Errorf("encode challenge token: %w", err)
	}
	return token, code, nil
}

// DecodeChallenge validates a challenge token and returns the number and
// expected code.
func (t *Tokens) DecodeChallenge(token string) (Sms, Code, error) {
	var claims ChallengeClaims
	if err := t.decode(token, &claims); err != nil {
		return Sms{}, Code{}, err
	}
	sms, err := ParseSms(claims.Sms)
	if err != nil {
		return Sms{}, Code{}, fmt.Errorf("challenge token number: %w", err)
	}
	code, err := ParseCode(claims.Code)
	if err != nil {
		return Sms{}, Code{}, fmt.Errorf("challenge token code: %w", err)
	}
	return sms, code, nil
}

// NewSession issues a session token for the given user and rights.
func (t *Tokens) NewSession(userID string, rights Rights) (string, error) {
	claims := SessionClaims{
		UserID: userID,
		Rights: rights,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.AuthTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", fmt.Errorf("encode session token: %w", err)
	}
	return token, nil
}

// DecodeSession validates a session token and returns its claims.
func (t *Tokens) DecodeSession(token string) (*SessionClaims, error) {
	var claims SessionClaims
	if err := t.decode(token, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (t *Tokens) decode(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if !parsed.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// NewCookie wraps a token in an httpOnly, SameSite=Strict cookie.
func NewCookie(name, token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie expires the named cookie immediately.
func ClearCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
