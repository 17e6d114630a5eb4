// Package voting implements the vote engine: joining elections, casting
// ballots, and the audit and confirm transitions, including the exactly-once
// confirmation guarantee per voter and question.
package voting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/verivote/dreip-backend/ballot"
	"github.com/verivote/dreip-backend/log"
	"github.com/verivote/dreip-backend/storage"
	"github.com/verivote/dreip-backend/types"
)

// Engine error kinds beyond the storage sentinels. The API layer maps these
// to HTTP statuses.
var (
	// ErrMutexElectorate is returned when a join names more than one group of
	// a mutually-exclusive electorate.
	ErrMutexElectorate = errors.New("cannot join more than one group of a mutex electorate")
)

// Store is the persistence the engine needs. *storage.Store implements it;
// tests substitute an in-memory fake.
type Store interface {
	ActiveElection(ctx context.Context, id types.ElectionID, now time.Time) (*storage.Election, error)
	Voter(ctx context.Context, id primitive.ObjectID) (*storage.Voter, error)
	JoinElection(ctx context.Context, voterID primitive.ObjectID, electionID types.ElectionID,
		joins map[string][]string, allowed []types.QuestionID) error
	NextBallotID(ctx context.Context, electionID types.ElectionID) (types.BallotID, error)
	InsertUnconfirmed(ctx context.Context, ballots []*ballot.Ballot[ballot.Unconfirmed]) error
	UnconfirmedBallot(ctx context.Context, electionID types.ElectionID,
		questionID types.QuestionID, ballotID types.BallotID) (*ballot.Ballot[ballot.Unconfirmed], error)
	AuditBallots(ctx context.Context, ballots []ballot.Ballot[ballot.Unconfirmed]) ([]ballot.Ballot[ballot.Audited], error)
	ConfirmBallot(ctx context.Context, voterID primitive.ObjectID,
		b ballot.Ballot[ballot.Unconfirmed], candidates []types.CandidateID) (ballot.Ballot[ballot.Confirmed], error)
}

// BallotSpec is a ballot the voter wishes to cast: a specific candidate for a
// specific question.
type BallotSpec struct {
	Question  types.QuestionID  `json:"question"`
	Candidate types.CandidateID `json:"candidate"`
}

// BallotRecall identifies a previously cast ballot the voter wishes to audit
// or confirm. Ownership is proven by the receipt signature, which only the
// casting voter holds.
type BallotRecall struct {
	BallotID   types.BallotID   `json:"ballot_id"`
	QuestionID types.QuestionID `json:"question_id"`
	Signature  types.HexBytes   `json:"signature"`
}

// Engine is the vote engine. It is stateless apart from its collaborators
// and safe for concurrent use.
type Engine struct {
	store Store
	rng   io.Reader
	now   func() time.Time
}

// New creates an engine using the given store and cryptographic RNG. The rng
// must be safe for concurrent use, like crypto/rand.Reader.
func New(store Store, rng io.Reader) *Engine {
	return &Engine{store: store, rng: rng, now: time.Now}
}

// Join enrols the voter in an active election with the given electorate group
// memberships and computes their allowed question set.
func (e *Engine) Join(ctx context.Context, voterID primitive.ObjectID,
	electionID types.ElectionID, joins map[string][]string,
) error {
	voter, err := e.store.Voter(ctx, voterID)
	if err != nil {
		return err
	}
	if voter.HasJoined(electionID) {
		return fmt.Errorf("election %d: %w", electionID, storage.ErrAlreadyJoined)
	}

	election, err := e.store.ActiveElection(ctx, electionID, e.now())
	if err != nil {
		return err
	}

	// Electorates and groups must exist; mutex electorates admit at most one
	// group.
	for electorateName, groups := range joins {
		electorate, ok := election.Electorates[electorateName]
		if !ok {
			return fmt.Errorf("electorate %q: %w", electorateName, storage.ErrNotFound)
		}
		if electorate.IsMutex && len(groups) > 1 {
			return fmt.Errorf("electorate %q: %w", electorateName, ErrMutexElectorate)
		}
		for _, group := range groups {
			if !electorate.HasGroup(group) {
				return fmt.Errorf("group %q of electorate %q: %w", group, electorateName, storage.ErrNotFound)
			}
		}
	}

	allowed := allowedQuestions(election, joins)
	if err := e.store.JoinElection(ctx, voterID, electionID, joins, allowed); err != nil {
		return err
	}
	log.Debugw("voter joined election", "election", electionID, "questions", len(allowed))
	return nil
}

// allowedQuestions returns the IDs of every question whose constraints
// intersect the joined groups on at least one (electorate, group) pair.
// A question without constraints is open to every joiner.
func allowedQuestions(election *storage.Election, joins map[string][]string) []types.QuestionID {
	var allowed []types.QuestionID
	for _, question := range election.Questions {
		if questionAllowed(question, joins) {
			allowed = append(allowed, question.ID)
		}
	}
	sort.Slice(allowed, func(i, j int) bool { return allowed[i] < allowed[j] })
	return allowed
}

func questionAllowed(question types.Question, joins map[string][]string) bool {
	if len(question.Constraints) == 0 {
		return true
	}
	for electorate, constraintGroups := range question.Constraints {
		joined, ok := joins[electorate]
		if !ok {
			continue
		}
		for _, group := range constraintGroups {
			for _, joinedGroup := range joined {
				if group == joinedGroup {
					return true
				}
			}
		}
	}
	return false
}

// Cast creates one well-formed unconfirmed ballot per spec in a single
// transaction and returns the signed receipts in request order. Any invalid
// spec aborts the whole batch.
func (e *Engine) Cast(ctx context.Context, electionID types.ElectionID,
	specs []BallotSpec,
) ([]ballot.Receipt[ballot.Unconfirmed], error) {
	election, err := e.store.ActiveElection(ctx, electionID, e.now())
	if err != nil {
		return nil, err
	}
	keys, err := election.Keys()
	if err != nil {
		return nil, fmt.Errorf("election %d keys: %w", electionID, err)
	}

	// Validate the whole batch up front: no partial effect on failure.
	for _, spec := range specs {
		question, ok := election.Question(spec.Question)
		if !ok {
			return nil, fmt.Errorf("question %d: %w", spec.Question, storage.ErrNotFound)
		}
		if !question.HasCandidate(spec.Candidate) {
			return nil, fmt.Errorf("candidate %q for question %d: %w",
				spec.Candidate, spec.Question, storage.ErrNotFound)
		}
	}

	// Allocate the monotonic ballot IDs sequentially, then build the
	// ballots in parallel: proof generation dominates the request.
	now := e.now()
	ids := make([]types.BallotID, len(specs))
	for i := range specs {
		id, err := e.store.NextBallotID(ctx, electionID)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	ballots := make([]*ballot.Ballot[ballot.Unconfirmed], len(specs))
	g, _ := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			question, _ := election.Question(spec.Question)
			b, err := ballot.New(e.rng, keys, electionID, question.ID, ids[i],
				spec.Candidate, question.Candidates, now)
			if err != nil {
				return err
			}
			ballots[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := e.store.InsertUnconfirmed(ctx, ballots); err != nil {
		return nil, err
	}

	receipts := make([]ballot.Receipt[ballot.Unconfirmed], 0, len(ballots))
	for _, b := range ballots {
		receipt, err := ballot.NewReceipt(*b, keys)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// recall fetches the unconfirmed ballots named by the recalls and verifies
// ownership: the supplied signature must verify under the election key over
// the ballot's unconfirmed receipt. ECDSA signatures are randomized, so the
// signature is verified rather than compared with a fresh one. A failure is
// deliberately indistinguishable from a missing ballot, so valid ballot IDs
// cannot be enumerated.
func (e *Engine) recall(ctx context.Context, election *storage.Election,
	recalls []BallotRecall,
) ([]ballot.Ballot[ballot.Unconfirmed], error) {
	keys, err := election.Keys()
	if err != nil {
		return nil, fmt.Errorf("election %d keys: %w", election.ID, err)
	}
	ballots := make([]ballot.Ballot[ballot.Unconfirmed], 0, len(recalls))
	for _, recall := range recalls {
		b, err := e.store.UnconfirmedBallot(ctx, election.ID, recall.QuestionID, recall.BallotID)
		if err != nil {
			return nil, err
		}
		receipt, err := ballot.NewReceipt(*b, keys)
		if err != nil {
			return nil, err
		}
		receipt.Signature = recall.Signature
		if !ballot.VerifySignature(receipt.Data(), keys.PublicKey) {
			return nil, fmt.Errorf("ballot %d: %w", recall.BallotID, storage.ErrNotFound)
		}
		ballots = append(ballots, *b)
	}
	return ballots, nil
}

// Audit irreversibly audits the recalled ballots in one transaction and
// returns the receipts, which now reveal the ballot secrets.
func (e *Engine) Audit(ctx context.Context, electionID types.ElectionID,
	recalls []BallotRecall,
) ([]ballot.Receipt[ballot.Audited], error) {
	election, err := e.store.ActiveElection(ctx, electionID, e.now())
	if err != nil {
		return nil, err
	}
	keys, err := election.Keys()
	if err != nil {
		return nil, fmt.Errorf("election %d keys: %w", electionID, err)
	}

	recalled, err := e.recall(ctx, election, recalls)
	if err != nil {
		return nil, err
	}
	audited, err := e.store.AuditBallots(ctx, recalled)
	if err != nil {
		return nil, err
	}

	receipts := make([]ballot.Receipt[ballot.Audited], 0, len(audited))
	for _, b := range audited {
		receipt, err := ballot.NewReceipt(b, keys)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// Confirm irreversibly confirms the recalled ballots, counting each into the
// candidate tallies and consuming the voter's eligibility for the question.
// Each ballot confirms in its own transaction; a failed eligibility check
// rolls the whole ballot back.
func (e *Engine) Confirm(ctx context.Context, voterID primitive.ObjectID,
	electionID types.ElectionID, recalls []BallotRecall,
) ([]ballot.Receipt[ballot.Confirmed], error) {
	election, err := e.store.ActiveElection(ctx, electionID, e.now())
	if err != nil {
		return nil, err
	}
	keys, err := election.Keys()
	if err != nil {
		return nil, fmt.Errorf("election %d keys: %w", electionID, err)
	}

	recalled, err := e.recall(ctx, election, recalls)
	if err != nil {
		return nil, err
	}

	receipts := make([]ballot.Receipt[ballot.Confirmed], 0, len(recalled))
	for _, b := range recalled {
		question, ok := election.Question(b.QuestionID)
		if !ok {
			return nil, fmt.Errorf("question %d: %w", b.QuestionID, storage.ErrNotFound)
		}
		confirmed, err := e.store.ConfirmBallot(ctx, voterID, b, question.Candidates)
		if err != nil {
			return nil, err
		}
		receipt, err := ballot.NewReceipt(confirmed, keys)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}
