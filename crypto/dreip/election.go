package dreip

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/verivote/dreip-backend/types"
)

// ElectionKeys is the cryptographic context of an election: the two group
// generators and the signing key pair. PrivateKey is nil in public views.
type ElectionKeys struct {
	G1         Point
	G2         Point
	PublicKey  Point
	PrivateKey *big.Int
}

// NewElectionKeys generates a fresh election context. g1 is the curve's
// standard generator; g2 is derived by hashing the election name and the
// little-endian Unix start and end times to a point, so that every election
// gets its own independent secondary generator.
func NewElectionKeys(rng io.Reader, name string, startUnix, endUnix int64) (*ElectionKeys, error) {
	pair, err := GenerateKeyPair(rng)
	if err != nil {
		return nil, err
	}
	start := make([]byte, 8)
	binary.LittleEndian.PutUint64(start, uint64(startUnix))
	end := make([]byte, 8)
	binary.LittleEndian.PutUint64(end, uint64(endUnix))
	return &ElectionKeys{
		G1:         Generator(),
		G2:         HashToPoint([]byte(name), start, end),
		PublicKey:  pair.PublicKey,
		PrivateKey: pair.PrivateKey,
	}, nil
}

// EraseSecrets returns a copy of the keys without the private key.
func (k *ElectionKeys) EraseSecrets() *ElectionKeys {
	return &ElectionKeys{G1: k.G1, G2: k.G2, PublicKey: k.PublicKey}
}

// CandidateTotals are the homomorphic running totals for one candidate:
// the scalar sum of vote values and the scalar sum of random values across
// all confirmed ballots.
type CandidateTotals struct {
	Tally types.HexBytes `json:"tally" bson:"tally"`
	RSum  types.HexBytes `json:"r_sum" bson:"r_sum"`
}

// NewCandidateTotals returns totals with both sums at zero.
func NewCandidateTotals() CandidateTotals {
	return CandidateTotals{
		Tally: ScalarBytes(new(big.Int)),
		RSum:  ScalarBytes(new(big.Int)),
	}
}

// Accumulate adds one vote's secrets into the totals.
func (t *CandidateTotals) Accumulate(secrets *VoteSecrets) error {
	tally, err := ParseScalar(t.Tally)
	if err != nil {
		return fmt.Errorf("tally: %w", err)
	}
	rSum, err := ParseScalar(t.RSum)
	if err != nil {
		return fmt.Errorf("r_sum: %w", err)
	}
	v, err := ParseScalar(secrets.V)
	if err != nil {
		return fmt.Errorf("secret v: %w", err)
	}
	r, err := ParseScalar(secrets.R)
	if err != nil {
		return fmt.Errorf("secret r: %w", err)
	}
	t.Tally = ScalarBytes(tally.Add(tally, v))
	t.RSum = ScalarBytes(rSum.Add(rSum, r))
	return nil
}

// VoteError reports an invalid vote proof within a ballot.
type VoteError struct {
	BallotID    types.BallotID
	CandidateID types.CandidateID
}

func (e *VoteError) Error() string {
	return fmt.Sprintf("ballot %d has an invalid vote for candidate %q", e.BallotID, e.CandidateID)
}

// BallotProofError reports an invalid ballot-level proof.
type BallotProofError struct {
	BallotID types.BallotID
}

func (e *BallotProofError) Error() string {
	return fmt.Sprintf("ballot %d has an invalid proof of well-formedness", e.BallotID)
}

// TallyError reports a candidate whose claimed totals do not match the
// confirmed ballots.
type TallyError struct {
	CandidateID types.CandidateID
}

func (e *TallyError) Error() string {
	return fmt.Sprintf("the tally for candidate %q is incorrect", e.CandidateID)
}

// ErrWrongCandidates reports a mismatch between the candidates found in the
// ballots and those listed in the tallies.
var ErrWrongCandidates = fmt.Errorf("the candidates listed in the tallies do not match those found in the ballots")

// VerifyElection checks every confirmed ballot for well-formedness and the
// claimed totals against the homomorphic sums of the confirmed ballots:
// for every candidate, sum(Z) = (tally + r_sum)*g1 and sum(R) = r_sum*g2.
func VerifyElection(g1, g2, y Point, confirmed map[types.BallotID]*Ballot,
	totals map[types.CandidateID]CandidateTotals,
) error {
	// Every ballot must carry exactly the candidates the tallies claim.
	for id, ballot := range confirmed {
		if len(ballot.Votes) != len(totals) {
			return ErrWrongCandidates
		}
		for candidate := range ballot.Votes {
			if _, ok := totals[candidate]; !ok {
				return ErrWrongCandidates
			}
		}
		if err := VerifyBallot(g1, g2, y, id, ballot); err != nil {
			return err
		}
	}

	for candidate, t := range totals {
		tally, err := ParseScalar(t.Tally)
		if err != nil {
			return &TallyError{CandidateID: candidate}
		}
		rSum, err := ParseScalar(t.RSum)
		if err != nil {
			return &TallyError{CandidateID: candidate}
		}

		sumR, sumZ := Identity(), Identity()
		for _, ballot := range confirmed {
			vote := ballot.Votes[candidate]
			r, err := ParsePoint(vote.R)
			if err != nil {
				return &TallyError{CandidateID: candidate}
			}
			z, err := ParsePoint(vote.Z)
			if err != nil {
				return &TallyError{CandidateID: candidate}
			}
			sumR = sumR.Add(r)
			sumZ = sumZ.Add(z)
		}

		if !sumZ.Equal(g1.Mul(new(big.Int).Add(tally, rSum))) {
			return &TallyError{CandidateID: candidate}
		}
		if !sumR.Equal(g2.Mul(rSum)) {
			return &TallyError{CandidateID: candidate}
		}
	}
	return nil
}
