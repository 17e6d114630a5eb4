package dreip

import (
	"fmt"
	"math/big"

	"github.com/verivote/dreip-backend/types"
)

// KeysData is the serialized form of an election's cryptographic context.
// PrivateKey is stored server-side only and never marshals to JSON.
type KeysData struct {
	G1         types.HexBytes `json:"g1" bson:"g1"`
	G2         types.HexBytes `json:"g2" bson:"g2"`
	PublicKey  types.HexBytes `json:"public_key" bson:"public_key"`
	PrivateKey types.HexBytes `json:"-" bson:"private_key,omitempty"`
}

// Data serializes the keys. The private key is included only when
// includePrivate is set.
func (k *ElectionKeys) Data(includePrivate bool) KeysData {
	d := KeysData{
		G1:        k.G1.Bytes(),
		G2:        k.G2.Bytes(),
		PublicKey: k.PublicKey.Bytes(),
	}
	if includePrivate && k.PrivateKey != nil {
		d.PrivateKey = ScalarBytes(k.PrivateKey)
	}
	return d
}

// Keys deserializes the cryptographic context. The private key is restored
// when present.
func (d KeysData) Keys() (*ElectionKeys, error) {
	g1, err := ParsePoint(d.G1)
	if err != nil {
		return nil, fmt.Errorf("g1: %w", err)
	}
	g2, err := ParsePoint(d.G2)
	if err != nil {
		return nil, fmt.Errorf("g2: %w", err)
	}
	pub, err := ParsePoint(d.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public_key: %w", err)
	}
	keys := &ElectionKeys{G1: g1, G2: g2, PublicKey: pub}
	if len(d.PrivateKey) > 0 {
		priv, err := ParseScalar(d.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("private_key: %w", err)
		}
		keys.PrivateKey = new(big.Int).Set(priv)
	}
	return keys, nil
}
