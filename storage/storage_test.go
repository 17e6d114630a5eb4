package storage

import (
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/verivote/dreip-backend/ballot"
	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

func testSpec() types.ElectionSpec {
	now := time.Now().UTC()
	return types.ElectionSpec{
		Name:      "Sports Clubs Elections",
		StartTime: now,
		EndTime:   now.Add(30 * 24 * time.Hour),
		Electorates: []types.Electorate{
			{Name: "Societies", Groups: []string{"Quidditch", "Moongolf"}},
		},
		Questions: []types.QuestionSpec{
			{
				Description: "Who should be captain of the Quidditch team?",
				Constraints: map[string][]string{"Societies": {"Quidditch"}},
				Candidates:  []types.CandidateID{"Chris", "Parry"},
			},
			{
				Description: "Who should be president of Moongolf?",
				Constraints: map[string][]string{"Societies": {"Moongolf"}},
				Candidates:  []types.CandidateID{"John", "Jane"},
			},
		},
	}
}

func TestNewElection(t *testing.T) {
	c := qt.New(t)
	election, err := NewElection(rand.Reader, 7, testSpec())
	c.Assert(err, qt.IsNil)
	c.Assert(election.ID, qt.Equals, types.ElectionID(7))
	c.Assert(election.State, qt.Equals, types.ElectionDraft)

	// Question IDs are assigned 1..N in declaration order.
	q1, ok := election.Question(1)
	c.Assert(ok, qt.IsTrue)
	c.Assert(q1.Description, qt.Contains, "Quidditch")
	q2, ok := election.Question(2)
	c.Assert(ok, qt.IsTrue)
	c.Assert(q2.Description, qt.Contains, "Moongolf")
	_, ok = election.Question(3)
	c.Assert(ok, qt.IsFalse)

	// The crypto context round-trips with the private key.
	keys, err := election.Keys()
	c.Assert(err, qt.IsNil)
	c.Assert(keys.PrivateKey, qt.IsNotNil)
	c.Assert(keys.G1.Equal(dreip.Generator()), qt.IsTrue)
	c.Assert(keys.G2.IsIdentity(), qt.IsFalse)
	c.Assert(keys.G2.Equal(keys.G1), qt.IsFalse)
}

func TestElectionG2DependsOnMetadata(t *testing.T) {
	c := qt.New(t)
	spec := testSpec()
	a, err := NewElection(rand.Reader, 1, spec)
	c.Assert(err, qt.IsNil)

	spec.Name = "Another Election"
	b, err := NewElection(rand.Reader, 2, spec)
	c.Assert(err, qt.IsNil)

	c.Assert(a.Crypto.G2.Equal(b.Crypto.G2), qt.IsFalse)
}

func TestPublicViewStripsPrivateKey(t *testing.T) {
	c := qt.New(t)
	election, err := NewElection(rand.Reader, 1, testSpec())
	c.Assert(err, qt.IsNil)

	view := election.PublicView()
	c.Assert(len(view.Crypto.PrivateKey), qt.Equals, 0)
	// The original retains it.
	c.Assert(len(election.Crypto.PrivateKey), qt.Not(qt.Equals), 0)

	// JSON never carries the private key, even on the internal view.
	raw, err := json.Marshal(election)
	c.Assert(err, qt.IsNil)
	c.Assert(string(raw), qt.Not(qt.Contains), "private_key")
}

func TestBallotDocFinished(t *testing.T) {
	c := qt.New(t)
	election, err := NewElection(rand.Reader, 1, testSpec())
	c.Assert(err, qt.IsNil)
	keys, err := election.Keys()
	c.Assert(err, qt.IsNil)

	b, err := ballot.New(rand.Reader, keys, 1, 1, 42, "Chris",
		[]types.CandidateID{"Chris", "Parry"}, time.Now())
	c.Assert(err, qt.IsNil)

	audited := ballotDoc(*b)
	audited.State = ballot.TagAudited
	f, err := audited.finished()
	c.Assert(err, qt.IsNil)
	c.Assert(f.Audited, qt.IsNotNil)
	c.Assert(f.Confirmed, qt.IsNil)

	receipt, err := f.Receipt(keys)
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.State, qt.Equals, ballot.TagAudited)
	c.Assert(ballot.VerifySignature(receipt, keys.PublicKey), qt.IsTrue)

	unconfirmed := ballotDoc(*b)
	_, err = unconfirmed.finished()
	c.Assert(err, qt.IsNotNil)
}
