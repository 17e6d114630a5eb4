package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// CodeLength is the exact number of decimal digits in a one-time code.
const CodeLength = 6

// Code is a one-time-password code of exactly CodeLength decimal digits.
type Code struct {
	digits string
}

// RandomCode generates a code with uniformly random digits from the
// cryptographic RNG.
func RandomCode() (Code, error) {
	digits := make([]byte, CodeLength)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return Code{}, fmt.Errorf("sample code digit: %w", err)
		}
		digits[i] = byte('0' + d.Int64())
	}
	return Code{digits: string(digits)}, nil
}

// ParseCode validates a submitted code: exactly CodeLength digit characters,
// anything else is a parse error.
func ParseCode(raw string) (Code, error) {
	if len(raw) != CodeLength {
		return Code{}, fmt.Errorf("code must contain exactly %d characters", CodeLength)
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return Code{}, fmt.Errorf("code must contain only digits")
		}
	}
	return Code{digits: raw}, nil
}

// String returns the code digits.
func (c Code) String() string {
	return c.digits
}

// Equal compares two codes in constant time.
func (c Code) Equal(other Code) bool {
	return subtle.ConstantTimeCompare([]byte(c.digits), []byte(other.digits)) == 1
}
