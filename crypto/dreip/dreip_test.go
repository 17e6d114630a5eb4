package dreip

import (
	"crypto/rand"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/verivote/dreip-backend/types"
)

func testKeys(t *testing.T) *ElectionKeys {
	t.Helper()
	keys, err := NewElectionKeys(rand.Reader, "Test Election", 0, 3600)
	qt.Assert(t, err, qt.IsNil)
	return keys
}

func TestScalarRoundTrip(t *testing.T) {
	c := qt.New(t)
	k, err := RandomScalar(rand.Reader)
	c.Assert(err, qt.IsNil)
	b := ScalarBytes(k)
	c.Assert(len(b), qt.Equals, ScalarLen)
	parsed, err := ParseScalar(b)
	c.Assert(err, qt.IsNil)
	c.Assert(parsed.Cmp(k), qt.Equals, 0)

	// Out-of-range scalars are rejected.
	over := make([]byte, ScalarLen)
	Order().FillBytes(over)
	_, err = ParseScalar(over)
	c.Assert(err, qt.IsNotNil)
}

func TestPointRoundTrip(t *testing.T) {
	c := qt.New(t)
	k, err := RandomScalar(rand.Reader)
	c.Assert(err, qt.IsNil)
	p := MulBase(k)
	b := p.Bytes()
	c.Assert(len(b), qt.Equals, PointLen)
	parsed, err := ParsePoint(b)
	c.Assert(err, qt.IsNil)
	c.Assert(parsed.Equal(p), qt.IsTrue)

	_, err = ParsePoint(b[:PointLen-1])
	c.Assert(err, qt.IsNotNil)
}

func TestPointArithmetic(t *testing.T) {
	c := qt.New(t)
	g := Generator()
	two := g.Add(g)
	c.Assert(two.Equal(g.Mul(big.NewInt(2))), qt.IsTrue)
	c.Assert(two.Sub(g).Equal(g), qt.IsTrue)
	c.Assert(g.Add(Identity()).Equal(g), qt.IsTrue)
	c.Assert(g.Mul(new(big.Int)).IsIdentity(), qt.IsTrue)
}

func TestHashToPointDeterministic(t *testing.T) {
	c := qt.New(t)
	p1 := HashToPoint([]byte("election"), []byte("a"))
	p2 := HashToPoint([]byte("election"), []byte("a"))
	p3 := HashToPoint([]byte("election"), []byte("b"))
	c.Assert(p1.Equal(p2), qt.IsTrue)
	c.Assert(p1.Equal(p3), qt.IsFalse)
	c.Assert(p1.IsIdentity(), qt.IsFalse)
}

func TestSignVerify(t *testing.T) {
	c := qt.New(t)
	pair, err := GenerateKeyPair(rand.Reader)
	c.Assert(err, qt.IsNil)
	msg := []byte("the quick brown fox")
	sig, err := Sign(pair.PrivateKey, msg)
	c.Assert(err, qt.IsNil)
	c.Assert(len(sig), qt.Equals, SignatureLen)
	c.Assert(Verify(pair.PublicKey, msg, sig), qt.IsTrue)

	// Tampered message and tampered signature both fail.
	c.Assert(Verify(pair.PublicKey, []byte("another message"), sig), qt.IsFalse)
	bad := make([]byte, len(sig))
	copy(bad, sig)
	bad[7] ^= 0x01
	c.Assert(Verify(pair.PublicKey, msg, bad), qt.IsFalse)
}

func TestDeriveKeyPair(t *testing.T) {
	c := qt.New(t)
	pair, err := GenerateKeyPair(rand.Reader)
	c.Assert(err, qt.IsNil)
	derived := DeriveKeyPair(pair.PrivateKey)
	c.Assert(derived.PublicKey.Equal(pair.PublicKey), qt.IsTrue)
}

func TestBallotVerifies(t *testing.T) {
	c := qt.New(t)
	keys := testKeys(t)
	candidates := []types.CandidateID{"Chris", "Parry"}

	ballot, err := NewBallot(rand.Reader, keys.G1, keys.G2, keys.PublicKey, 1, "Chris", candidates)
	c.Assert(err, qt.IsNil)
	c.Assert(ballot.HasSecrets(), qt.IsTrue)
	c.Assert(VerifyBallot(keys.G1, keys.G2, keys.PublicKey, 1, ballot), qt.IsNil)

	// The proofs stay valid once secrets are erased.
	erased := ballot.EraseSecrets()
	c.Assert(erased.HasSecrets(), qt.IsFalse)
	c.Assert(ballot.HasSecrets(), qt.IsTrue)
	c.Assert(VerifyBallot(keys.G1, keys.G2, keys.PublicKey, 1, erased), qt.IsNil)
}

func TestBallotUnknownYesCandidate(t *testing.T) {
	c := qt.New(t)
	keys := testKeys(t)
	_, err := NewBallot(rand.Reader, keys.G1, keys.G2, keys.PublicKey, 1,
		"Nobody", []types.CandidateID{"Chris", "Parry"})
	c.Assert(err, qt.IsNotNil)
}

func TestBallotWrongID(t *testing.T) {
	c := qt.New(t)
	keys := testKeys(t)
	ballot, err := NewBallot(rand.Reader, keys.G1, keys.G2, keys.PublicKey, 1,
		"Chris", []types.CandidateID{"Chris", "Parry"})
	c.Assert(err, qt.IsNil)

	// Proofs are bound to the ballot ID.
	err = VerifyBallot(keys.G1, keys.G2, keys.PublicKey, 2, ballot)
	c.Assert(err, qt.IsNotNil)
}

func TestBallotTamperedVote(t *testing.T) {
	c := qt.New(t)
	keys := testKeys(t)
	ballot, err := NewBallot(rand.Reader, keys.G1, keys.G2, keys.PublicKey, 7,
		"Chris", []types.CandidateID{"Chris", "Parry"})
	c.Assert(err, qt.IsNil)

	// Swap the Z values of the two candidates: each vote proof breaks.
	chris, parry := ballot.Votes["Chris"], ballot.Votes["Parry"]
	chris.Z, parry.Z = parry.Z, chris.Z
	ballot.Votes["Chris"], ballot.Votes["Parry"] = chris, parry

	err = VerifyBallot(keys.G1, keys.G2, keys.PublicKey, 7, ballot)
	var voteErr *VoteError
	c.Assert(err, qt.ErrorAs, &voteErr)
	c.Assert(voteErr.BallotID, qt.Equals, types.BallotID(7))
}

func TestVerifyElection(t *testing.T) {
	c := qt.New(t)
	keys := testKeys(t)
	candidates := []types.CandidateID{"Chris", "Parry"}

	totals := map[types.CandidateID]CandidateTotals{
		"Chris": NewCandidateTotals(),
		"Parry": NewCandidateTotals(),
	}
	confirmed := make(map[types.BallotID]*Ballot)
	votesForChris := 0
	for id := types.BallotID(1); id <= 5; id++ {
		yes := "Parry"
		if id%2 == 1 {
			yes = "Chris"
			votesForChris++
		}
		ballot, err := NewBallot(rand.Reader, keys.G1, keys.G2, keys.PublicKey, id, yes, candidates)
		c.Assert(err, qt.IsNil)
		for _, candidate := range candidates {
			tot := totals[candidate]
			c.Assert(tot.Accumulate(ballot.Votes[candidate].Secrets), qt.IsNil)
			totals[candidate] = tot
		}
		confirmed[id] = ballot.EraseSecrets()
	}

	chrisTally, err := ParseScalar(totals["Chris"].Tally)
	c.Assert(err, qt.IsNil)
	c.Assert(chrisTally.Int64(), qt.Equals, int64(votesForChris))

	err = VerifyElection(keys.G1, keys.G2, keys.PublicKey, confirmed, totals)
	c.Assert(err, qt.IsNil)

	// A manipulated tally is detected.
	tampered := totals["Chris"]
	bumped, err := ParseScalar(tampered.Tally)
	c.Assert(err, qt.IsNil)
	tampered.Tally = ScalarBytes(bumped.Add(bumped, big.NewInt(1)))
	badTotals := map[types.CandidateID]CandidateTotals{
		"Chris": tampered,
		"Parry": totals["Parry"],
	}
	err = VerifyElection(keys.G1, keys.G2, keys.PublicKey, confirmed, badTotals)
	var tallyErr *TallyError
	c.Assert(err, qt.ErrorAs, &tallyErr)
	c.Assert(tallyErr.CandidateID, qt.Equals, "Chris")

	// A candidate set mismatch is detected.
	badSet := map[types.CandidateID]CandidateTotals{
		"Chris": totals["Chris"],
		"Other": totals["Parry"],
	}
	err = VerifyElection(keys.G1, keys.G2, keys.PublicKey, confirmed, badSet)
	c.Assert(err, qt.Equals, ErrWrongCandidates)
}

func TestVerifyElectionEmpty(t *testing.T) {
	c := qt.New(t)
	keys := testKeys(t)
	totals := map[types.CandidateID]CandidateTotals{
		"Chris": NewCandidateTotals(),
		"Parry": NewCandidateTotals(),
	}
	err := VerifyElection(keys.G1, keys.G2, keys.PublicKey, nil, totals)
	qt.Assert(t, err, qt.IsNil)
}
