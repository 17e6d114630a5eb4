package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2i parameters for admin password hashing (RFC 9106 tuned profile).
const (
	argonMemory  = 64 * 1024
	argonTime    = 3
	argonLanes   = 4
	argonHashLen = 32
	argonSaltLen = 16
)

// HashPassword hashes a password with Argon2i and a fresh random salt,
// returning the PHC-formatted string that is stored for the admin.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sample salt: %w", err)
	}
	hash := argon2.Key([]byte(password), salt, argonTime, argonMemory, argonLanes, argonHashLen)
	return fmt.Sprintf("$argon2i$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonLanes,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks a password against a stored PHC-formatted Argon2i
// hash in constant time.
func VerifyPassword(encoded, password string) bool {
	salt, hash, time, memory, lanes, err := decodeHash(encoded)
	if err != nil {
		return false
	}
	computed := argon2.Key([]byte(password), salt, time, memory, lanes, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computed) == 1
}

// decodeHash parses a $argon2i$v=..$m=..,t=..,p=..$salt$hash string.
func decodeHash(encoded string) (salt, hash []byte, time, memory uint32, lanes uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2i" {
		return nil, nil, 0, 0, 0, fmt.Errorf("malformed argon2i hash")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("malformed argon2i version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, fmt.Errorf("unsupported argon2 version %d", version)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &lanes); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("malformed argon2i parameters: %w", err)
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("malformed argon2i salt: %w", err)
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("malformed argon2i hash: %w", err)
	}
	return salt, hash, time, memory, lanes, nil
}
