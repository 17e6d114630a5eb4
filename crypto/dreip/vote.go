package dreip

import (
	"fmt"
	"io"
	"math/big"

	"github.com/verivote/dreip-backend/types"
)

// VoteSecrets are the per-candidate secret values of a vote. They are present
// internally for unconfirmed and audited ballots, revealed in audited
// receipts, and erased on confirmation.
type VoteSecrets struct {
	// R is the random scalar.
	R types.HexBytes `json:"r" bson:"r"`
	// V is the vote value: 1 for the chosen candidate, 0 otherwise.
	V types.HexBytes `json:"v" bson:"v"`
}

// VotePwf is a disjunctive Chaum-Pedersen proof that the vote value is 0 or 1,
// bound to the ballot ID and candidate name via Fiat-Shamir. C1 and C2 are the
// sub-challenges of the two branches (v=0 and v=1), R1 and R2 the responses.
type VotePwf struct {
	C1 types.HexBytes `json:"c1" bson:"c1"`
	C2 types.HexBytes `json:"c2" bson:"c2"`
	R1 types.HexBytes `json:"r1" bson:"r1"`
	R2 types.HexBytes `json:"r2" bson:"r2"`
}

// Vote is the cryptographic data for a single candidate within a ballot:
// R = r*g2, Z = (r+v)*g1 and the proof that v is 0 or 1. Secrets is nil once
// the ballot has been confirmed.
type Vote struct {
	Secrets *VoteSecrets   `json:"secrets,omitempty" bson:"secrets,omitempty"`
	R       types.HexBytes `json:"R" bson:"R"`
	Z       types.HexBytes `json:"Z" bson:"Z"`
	Pwf     VotePwf        `json:"pwf" bson:"pwf"`
}

// NewVote creates a vote for one candidate with a fresh random scalar.
// yes selects v=1.
func NewVote(rng io.Reader, g1, g2, y Point, ballotID types.BallotID,
	candidate types.CandidateID, yes bool,
) (Vote, error) {
	r, err := RandomScalar(rng)
	if err != nil {
		return Vote{}, err
	}
	v := big.NewInt(0)
	if yes {
		v = big.NewInt(1)
	}

	bigR := g2.Mul(r)
	z := g1.Mul(new(big.Int).Add(r, v))

	pwf, err := proveVote(rng, g1, g2, y, ballotID, candidate, r, v, bigR, z)
	if err != nil {
		return Vote{}, err
	}

	return Vote{
		Secrets: &VoteSecrets{R: ScalarBytes(r), V: ScalarBytes(v)},
		R:       bigR.Bytes(),
		Z:       z.Bytes(),
		Pwf:     pwf,
	}, nil
}

// proveVote produces the disjunctive proof that v is 0 or 1. The real branch
// is proven honestly; the other branch is simulated with a random
// sub-challenge, and Fiat-Shamir fixes the sum of the two sub-challenges.
func proveVote(rng io.Reader, g1, g2, y Point, ballotID types.BallotID,
	candidate types.CandidateID, r, v *big.Int, bigR, z Point,
) (VotePwf, error) {
	w, err := RandomScalar(rng)
	if err != nil {
		return VotePwf{}, err
	}
	cFake, err := RandomScalar(rng)
	if err != nil {
		return VotePwf{}, err
	}
	rFake, err := RandomScalar(rng)
	if err != nil {
		return VotePwf{}, err
	}

	// Branch statements: branch 0 claims Z = r*g1, branch 1 claims
	// Z - g1 = r*g1. Both share R = r*g2.
	x0 := z
	x1 := z.Sub(g1)

	yesBranch := v.Sign() == 1
	var a0, b0, a1, b1 Point
	aReal := g1.Mul(w)
	bReal := g2.Mul(w)
	if !yesBranch {
		a0, b0 = aReal, bReal
		a1 = g1.Mul(rFake).Add(x1.Mul(cFake))
		b1 = g2.Mul(rFake).Add(bigR.Mul(cFake))
	} else {
		a1, b1 = aReal, bReal
		a0 = g1.Mul(rFake).Add(x0.Mul(cFake))
		b0 = g2.Mul(rFake).Add(bigR.Mul(cFake))
	}

	c := voteChallenge(g1, g2, y, ballotID, candidate, a0, b0, a1, b1)
	cReal := new(big.Int).Mod(new(big.Int).Sub(c, cFake), Order())
	rReal := new(big.Int).Mod(new(big.Int).Sub(w, new(big.Int).Mul(cReal, r)), Order())

	if !yesBranch {
		return VotePwf{
			C1: ScalarBytes(cReal), C2: ScalarBytes(cFake),
			R1: ScalarBytes(rReal), R2: ScalarBytes(rFake),
		}, nil
	}
	return VotePwf{
		C1: ScalarBytes(cFake), C2: ScalarBytes(cReal),
		R1: ScalarBytes(rFake), R2: ScalarBytes(rReal),
	}, nil
}

// VerifyVote checks the proof of a single vote against its public values.
func VerifyVote(g1, g2, y Point, ballotID types.BallotID,
	candidate types.CandidateID, vote Vote,
) error {
	bigR, err := ParsePoint(vote.R)
	if err != nil {
		return fmt.Errorf("vote R: %w", err)
	}
	z, err := ParsePoint(vote.Z)
	if err != nil {
		return fmt.Errorf("vote Z: %w", err)
	}
	c1, err := ParseScalar(vote.Pwf.C1)
	if err != nil {
		return fmt.Errorf("pwf c1: %w", err)
	}
	c2, err := ParseScalar(vote.Pwf.C2)
	if err != nil {
		return fmt.Errorf("pwf c2: %w", err)
	}
	r1, err := ParseScalar(vote.Pwf.R1)
	if err != nil {
		return fmt.Errorf("pwf r1: %w", err)
	}
	r2, err := ParseScalar(vote.Pwf.R2)
	if err != nil {
		return fmt.Errorf("pwf r2: %w", err)
	}

	// Recompute the branch commitments from the responses.
	x0 := z
	x1 := z.Sub(g1)
	a0 := g1.Mul(r1).Add(x0.Mul(c1))
	b0 := g2.Mul(r1).Add(bigR.Mul(c1))
	a1 := g1.Mul(r2).Add(x1.Mul(c2))
	b1 := g2.Mul(r2).Add(bigR.Mul(c2))

	c := voteChallenge(g1, g2, y, ballotID, candidate, a0, b0, a1, b1)
	sum := new(big.Int).Mod(new(big.Int).Add(c1, c2), Order())
	if sum.Cmp(c) != 0 {
		return fmt.Errorf("vote proof challenge mismatch")
	}
	return nil
}

// VerifyVoteSecrets checks revealed secrets against the public values:
// v must be 0 or 1, R must equal r*g2 and Z must equal (r+v)*g1.
func VerifyVoteSecrets(g1, g2 Point, vote Vote) error {
	if vote.Secrets == nil {
		return fmt.Errorf("vote has no secrets")
	}
	r, err := ParseScalar(vote.Secrets.R)
	if err != nil {
		return fmt.Errorf("secret r: %w", err)
	}
	v, err := ParseScalar(vote.Secrets.V)
	if err != nil {
		return fmt.Errorf("secret v: %w", err)
	}
	if v.Sign() != 0 && v.Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("secret v is not 0 or 1")
	}
	bigR, err := ParsePoint(vote.R)
	if err != nil {
		return fmt.Errorf("vote R: %w", err)
	}
	z, err := ParsePoint(vote.Z)
	if err != nil {
		return fmt.Errorf("vote Z: %w", err)
	}
	if !bigR.Equal(g2.Mul(r)) {
		return fmt.Errorf("revealed r does not match R")
	}
	if !z.Equal(g1.Mul(new(big.Int).Add(r, v))) {
		return fmt.Errorf("revealed secrets do not match Z")
	}
	return nil
}

// voteChallenge is the Fiat-Shamir challenge for a vote proof.
func voteChallenge(g1, g2, y Point, ballotID types.BallotID,
	candidate types.CandidateID, a0, b0, a1, b1 Point,
) *big.Int {
	return hashToScalar(
		g1.Bytes(), g2.Bytes(), y.Bytes(),
		types.IDBytes(ballotID), []byte(candidate),
		a0.Bytes(), b0.Bytes(), a1.Bytes(), b1.Bytes(),
	)
}
