package ballot

import (
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

func oneScalar() *big.Int { return big.NewInt(1) }

// Ballot is a ballot in state S. The State field always equals the tag of S;
// constructors and the storage layer maintain that invariant.
type Ballot[S State] struct {
	BallotID   types.BallotID   `json:"ballot_id" bson:"ballot_id"`
	ElectionID types.ElectionID `json:"election_id" bson:"election_id"`
	QuestionID types.QuestionID `json:"question_id" bson:"question_id"`
	Created    time.Time        `json:"creation_time" bson:"creation_time"`
	State      string           `json:"state" bson:"state"`
	Crypto     dreip.Ballot     `json:"crypto" bson:"crypto"`
}

// StateTag returns the ASCII tag of the ballot's type-level state.
func (b Ballot[S]) StateTag() string {
	var s S
	return s.Tag()
}

// New creates a fresh unconfirmed ballot voting for yes among candidates,
// with all proofs bound to ballotID.
func New(rng io.Reader, keys *dreip.ElectionKeys, electionID types.ElectionID,
	questionID types.QuestionID, ballotID types.BallotID,
	yes types.CandidateID, candidates []types.CandidateID, now time.Time,
) (*Ballot[Unconfirmed], error) {
	crypto, err := dreip.NewBallot(rng, keys.G1, keys.G2, keys.PublicKey, ballotID, yes, candidates)
	if err != nil {
		return nil, fmt.Errorf("create ballot %d: %w", ballotID, err)
	}
	return &Ballot[Unconfirmed]{
		BallotID:   ballotID,
		ElectionID: electionID,
		QuestionID: questionID,
		Created:    now.UTC(),
		State:      TagUnconfirmed,
		Crypto:     *crypto,
	}, nil
}

// Audit irreversibly moves an unconfirmed ballot to the audited state. The
// secrets remain stored and become visible in receipts.
func Audit(b Ballot[Unconfirmed]) Ballot[Audited] {
	return Ballot[Audited]{
		BallotID:   b.BallotID,
		ElectionID: b.ElectionID,
		QuestionID: b.QuestionID,
		Created:    b.Created,
		State:      TagAudited,
		Crypto:     b.Crypto,
	}
}

// Confirm irreversibly moves an unconfirmed ballot to the confirmed state,
// erasing the stored secrets. If totals is non-nil, each candidate's (v, r)
// is accumulated into that candidate's totals before erasure.
func Confirm(b Ballot[Unconfirmed],
	totals map[types.CandidateID]*dreip.CandidateTotals,
) (Ballot[Confirmed], error) {
	if totals != nil {
		for candidate, vote := range b.Crypto.Votes {
			tot, ok := totals[candidate]
			if !ok {
				return Ballot[Confirmed]{}, fmt.Errorf("no totals for candidate %q", candidate)
			}
			if vote.Secrets == nil {
				return Ballot[Confirmed]{}, fmt.Errorf("ballot %d has no secrets for candidate %q", b.BallotID, candidate)
			}
			if err := tot.Accumulate(vote.Secrets); err != nil {
				return Ballot[Confirmed]{}, fmt.Errorf("accumulate totals for %q: %w", candidate, err)
			}
		}
	}
	return Ballot[Confirmed]{
		BallotID:   b.BallotID,
		ElectionID: b.ElectionID,
		QuestionID: b.QuestionID,
		Created:    b.Created,
		State:      TagConfirmed,
		Crypto:     *b.Crypto.EraseSecrets(),
	}, nil
}
