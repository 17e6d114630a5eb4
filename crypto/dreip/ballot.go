package dreip

import (
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/verivote/dreip-backend/types"
)

// BallotPwf is a Schnorr-style proof over the summed R and Z values that the
// vote values of a ballot sum to exactly one. A and B are the commitments,
// R the response.
type BallotPwf struct {
	A types.HexBytes `json:"a" bson:"a"`
	B types.HexBytes `json:"b" bson:"b"`
	R types.HexBytes `json:"r" bson:"r"`
}

// Ballot is the cryptographic payload of a ballot: one vote per candidate plus
// the ballot-level proof of well-formedness.
type Ballot struct {
	Votes map[types.CandidateID]Vote `json:"votes" bson:"votes"`
	Pwf   BallotPwf                  `json:"pwf" bson:"pwf"`
}

// NewBallot creates a well-formed ballot voting for yes among the given
// candidates: v=1 for yes, v=0 for the rest, fresh random scalars throughout,
// with all proofs bound to ballotID.
func NewBallot(rng io.Reader, g1, g2, y Point, ballotID types.BallotID,
	yes types.CandidateID, candidates []types.CandidateID,
) (*Ballot, error) {
	votes := make(map[types.CandidateID]Vote, len(candidates))
	found := false
	for _, candidate := range candidates {
		if _, ok := votes[candidate]; ok {
			return nil, fmt.Errorf("duplicate candidate %q", candidate)
		}
		isYes := candidate == yes
		found = found || isYes
		vote, err := NewVote(rng, g1, g2, y, ballotID, candidate, isYes)
		if err != nil {
			return nil, err
		}
		votes[candidate] = vote
	}
	if !found {
		return nil, fmt.Errorf("yes candidate %q not among candidates", yes)
	}

	// Sum of the random scalars, needed for the ballot proof.
	rSum := new(big.Int)
	for _, vote := range votes {
		r, err := ParseScalar(vote.Secrets.R)
		if err != nil {
			return nil, err
		}
		rSum.Add(rSum, r)
	}
	rSum.Mod(rSum, Order())

	ballot := &Ballot{Votes: votes}
	pwf, err := proveBallot(rng, g1, g2, y, ballotID, rSum)
	if err != nil {
		return nil, err
	}
	ballot.Pwf = pwf
	return ballot, nil
}

// Candidates returns the candidate names of the ballot in lexicographic
// order, the canonical order for serialization.
func (b *Ballot) Candidates() []types.CandidateID {
	names := make([]types.CandidateID, 0, len(b.Votes))
	for name := range b.Votes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasSecrets reports whether every vote still carries its secrets.
func (b *Ballot) HasSecrets() bool {
	for _, vote := range b.Votes {
		if vote.Secrets == nil {
			return false
		}
	}
	return true
}

// EraseSecrets returns a deep copy of the ballot with all vote secrets
// removed.
func (b *Ballot) EraseSecrets() *Ballot {
	votes := make(map[types.CandidateID]Vote, len(b.Votes))
	for name, vote := range b.Votes {
		vote.Secrets = nil
		votes[name] = vote
	}
	return &Ballot{Votes: votes, Pwf: b.Pwf}
}

// sums returns the point sums of all R and Z values of the ballot.
func (b *Ballot) sums() (rSum, zSum Point, err error) {
	rSum, zSum = Identity(), Identity()
	for name, vote := range b.Votes {
		r, err := ParsePoint(vote.R)
		if err != nil {
			return Point{}, Point{}, fmt.Errorf("candidate %q R: %w", name, err)
		}
		z, err := ParsePoint(vote.Z)
		if err != nil {
			return Point{}, Point{}, fmt.Errorf("candidate %q Z: %w", name, err)
		}
		rSum = rSum.Add(r)
		zSum = zSum.Add(z)
	}
	return rSum, zSum, nil
}

// proveBallot proves knowledge of rSum such that sum(R) = rSum*g2 and
// sum(Z) - g1 = rSum*g1, i.e. that the vote values sum to one.
func proveBallot(rng io.Reader, g1, g2, y Point, ballotID types.BallotID,
	rSum *big.Int,
) (BallotPwf, error) {
	w, err := RandomScalar(rng)
	if err != nil {
		return BallotPwf{}, err
	}
	a := g1.Mul(w)
	b := g2.Mul(w)
	c := ballotChallenge(g1, g2, y, ballotID, a, b)
	r := new(big.Int).Mod(new(big.Int).Sub(w, new(big.Int).Mul(c, rSum)), Order())
	return BallotPwf{A: a.Bytes(), B: b.Bytes(), R: ScalarBytes(r)}, nil
}

// VerifyBallot checks that every vote of the ballot is well-formed and that
// the vote values sum to exactly one. Failures are reported as *VoteError or
// *BallotProofError.
func VerifyBallot(g1, g2, y Point, ballotID types.BallotID, ballot *Ballot) error {
	for _, candidate := range ballot.Candidates() {
		if err := VerifyVote(g1, g2, y, ballotID, candidate, ballot.Votes[candidate]); err != nil {
			return &VoteError{BallotID: ballotID, CandidateID: candidate}
		}
	}

	rSum, zSum, err := ballot.sums()
	if err != nil {
		return &BallotProofError{BallotID: ballotID}
	}
	a, err := ParsePoint(ballot.Pwf.A)
	if err != nil {
		return &BallotProofError{BallotID: ballotID}
	}
	b, err := ParsePoint(ballot.Pwf.B)
	if err != nil {
		return &BallotProofError{BallotID: ballotID}
	}
	r, err := ParseScalar(ballot.Pwf.R)
	if err != nil {
		return &BallotProofError{BallotID: ballotID}
	}

	c := ballotChallenge(g1, g2, y, ballotID, a, b)
	// a = r*g1 + c*(sum(Z) - g1) and b = r*g2 + c*sum(R).
	if !a.Equal(g1.Mul(r).Add(zSum.Sub(g1).Mul(c))) {
		return &BallotProofError{BallotID: ballotID}
	}
	if !b.Equal(g2.Mul(r).Add(rSum.Mul(c))) {
		return &BallotProofError{BallotID: ballotID}
	}
	return nil
}

// ballotChallenge is the Fiat-Shamir challenge for a ballot proof.
func ballotChallenge(g1, g2, y Point, ballotID types.BallotID, a, b Point) *big.Int {
	return hashToScalar(
		g1.Bytes(), g2.Bytes(), y.Bytes(),
		types.IDBytes(ballotID),
		a.Bytes(), b.Bytes(),
	)
}
