package dreip

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"github.com/verivote/dreip-backend/types"
)

// KeyPair is a P-256 ECDSA signing key pair.
type KeyPair struct {
	PrivateKey *big.Int
	PublicKey  Point
}

// GenerateKeyPair samples a fresh key pair from rng.
func GenerateKeyPair(rng io.Reader) (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(curve(), rng)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return &KeyPair{
		PrivateKey: new(big.Int).Set(key.D),
		PublicKey:  Point{X: key.X, Y: key.Y},
	}, nil
}

// DeriveKeyPair reconstructs a key pair from a stored private scalar.
func DeriveKeyPair(priv *big.Int) *KeyPair {
	return &KeyPair{
		PrivateKey: new(big.Int).Set(priv),
		PublicKey:  MulBase(priv),
	}
}

// Sign produces a 64-byte (r || s) ECDSA signature over SHA-256 of msg.
func Sign(priv *big.Int, msg []byte) (types.HexBytes, error) {
	pub := MulBase(priv)
	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve(), X: pub.X, Y: pub.Y},
		D:         new(big.Int).Set(priv),
	}
	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	sig := make([]byte, SignatureLen)
	r.FillBytes(sig[:SignatureLen/2])
	s.FillBytes(sig[SignatureLen/2:])
	return sig, nil
}

// Verify checks a 64-byte (r || s) ECDSA signature over SHA-256 of msg.
func Verify(pub Point, msg, sig []byte) bool {
	if len(sig) != SignatureLen {
		return false
	}
	key := &ecdsa.PublicKey{Curve: curve(), X: pub.X, Y: pub.Y}
	digest := sha256.Sum256(msg)
	r := new(big.Int).SetBytes(sig[:SignatureLen/2])
	s := new(big.Int).SetBytes(sig[SignatureLen/2:])
	return ecdsa.Verify(key, digest[:], r, s)
}
