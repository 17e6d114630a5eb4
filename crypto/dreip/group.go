// Package dreip implements the DRE-ip voting protocol primitives over the
// NIST P-256 elliptic curve: group operations, key pairs, ECDSA signatures,
// zero-knowledge proofs of ballot well-formedness, and whole-election
// verification against homomorphic candidate tallies.
package dreip

import (
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"github.com/verivote/dreip-backend/types"
)

const (
	// ScalarLen is the byte length of a serialized scalar (big-endian).
	ScalarLen = 32
	// PointLen is the byte length of a serialized point (SEC1 compressed).
	PointLen = 33
	// SignatureLen is the byte length of a serialized signature (r || s).
	SignatureLen = 64
)

// domainG2 separates the hash used to derive the secondary generator.
const domainG2 = "dreip-p256-generator-2"

func curve() elliptic.Curve {
	return elliptic.P256()
}

// Order returns the order of the P-256 group.
func Order() *big.Int {
	return curve().Params().N
}

// Point is a point on the P-256 curve. The coordinates (0, 0), as returned by
// Identity, represent the identity element; the zero value Point{} has nil
// coordinates and is not the identity.
type Point struct {
	X, Y *big.Int
}

// Identity returns the identity element.
func Identity() Point {
	return Point{X: new(big.Int), Y: new(big.Int)}
}

// Generator returns the standard base point of P-256, used as g1.
func Generator() Point {
	params := curve().Params()
	return Point{X: new(big.Int).Set(params.Gx), Y: new(big.Int).Set(params.Gy)}
}

// IsIdentity reports whether p is the identity element.
func (p Point) IsIdentity() bool {
	return p.X.Sign() == 0 && p.Y.Sign() == 0
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	x, y := curve().Add(p.X, p.Y, q.X, q.Y)
	return Point{X: x, Y: y}
}

// Neg returns -p.
func (p Point) Neg() Point {
	if p.IsIdentity() {
		return Identity()
	}
	y := new(big.Int).Sub(curve().Params().P, p.Y)
	return Point{X: new(big.Int).Set(p.X), Y: y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return p.Add(q.Neg())
}

// Mul returns k * p with k taken mod the group order.
func (p Point) Mul(k *big.Int) Point {
	k = new(big.Int).Mod(k, Order())
	x, y := curve().ScalarMult(p.X, p.Y, k.Bytes())
	return Point{X: x, Y: y}
}

// MulBase returns k * g1.
func MulBase(k *big.Int) Point {
	k = new(big.Int).Mod(k, Order())
	x, y := curve().ScalarBaseMult(k.Bytes())
	return Point{X: x, Y: y}
}

// Equal reports whether p and q are the same point.
func (p Point) Equal(q Point) bool {
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// Bytes returns the SEC1 compressed encoding of p.
func (p Point) Bytes() types.HexBytes {
	return elliptic.MarshalCompressed(curve(), p.X, p.Y)
}

// ParsePoint decodes a SEC1 compressed point. The identity has no valid
// encoding and is rejected.
func ParsePoint(b []byte) (Point, error) {
	if len(b) != PointLen {
		return Point{}, fmt.Errorf("invalid point length %d", len(b))
	}
	x, y := elliptic.UnmarshalCompressed(curve(), b)
	if x == nil {
		return Point{}, fmt.Errorf("invalid point encoding")
	}
	return Point{X: x, Y: y}, nil
}

// RandomScalar samples a uniform scalar in [1, order-1] from rng.
func RandomScalar(rng io.Reader) (*big.Int, error) {
	for {
		k, err := rand.Int(rng, Order())
		if err != nil {
			return nil, fmt.Errorf("sample scalar: %w", err)
		}
		if k.Sign() != 0 {
			return k, nil
		}
	}
}

// ScalarBytes returns the canonical 32-byte big-endian encoding of k mod the
// group order.
func ScalarBytes(k *big.Int) types.HexBytes {
	b := make([]byte, ScalarLen)
	new(big.Int).Mod(k, Order()).FillBytes(b)
	return b
}

// ParseScalar decodes a canonical 32-byte big-endian scalar. Values at or
// above the group order are rejected.
func ParseScalar(b []byte) (*big.Int, error) {
	if len(b) != ScalarLen {
		return nil, fmt.Errorf("invalid scalar length %d", len(b))
	}
	k := new(big.Int).SetBytes(b)
	if k.Cmp(Order()) >= 0 {
		return nil, fmt.Errorf("scalar out of range")
	}
	return k, nil
}

// hashToScalar maps the concatenation of the inputs to a scalar via SHA-256.
func hashToScalar(inputs ...[]byte) *big.Int {
	h := sha256.New()
	for _, in := range inputs {
		h.Write(in)
	}
	return new(big.Int).Mod(new(big.Int).SetBytes(h.Sum(nil)), Order())
}

// HashToPoint deterministically derives a curve point from the inputs using
// try-and-increment over SHA-256 digests. The result is never the identity
// and its discrete log with respect to the base point is unknown.
func HashToPoint(inputs ...[]byte) Point {
	for ctr := 0; ; ctr++ {
		h := sha256.New()
		h.Write([]byte(domainG2))
		for _, in := range inputs {
			h.Write(in)
		}
		h.Write([]byte{byte(ctr)})
		digest := h.Sum(nil)

		enc := make([]byte, PointLen)
		enc[0] = 0x02 | byte(ctr>>8&1)
		copy(enc[1:], digest)
		if p, err := ParsePoint(enc); err == nil {
			return p
		}
		if ctr > 1<<16 {
			// With ~1/2 success probability per attempt this is unreachable.
			panic("dreip: hash to point failed to converge")
		}
	}
}
