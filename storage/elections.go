package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

// Election is an election document. Questions are keyed by the decimal
// question ID (document keys must be strings).
type Election struct {
	ID                     types.ElectionID `bson:"_id" json:"id"`
	types.ElectionMetadata `bson:",inline"`
	Electorates            map[string]types.Electorate `bson:"electorates" json:"electorates"`
	Questions              map[string]types.Question   `bson:"questions" json:"questions"`
	Crypto                 dreip.KeysData              `bson:"crypto" json:"crypto"`
}

// NewElection builds a Draft election from an admin spec, assigning question
// IDs 1..N in declaration order and generating a fresh cryptographic context.
func NewElection(rng io.Reader, id types.ElectionID, spec types.ElectionSpec) (*Election, error) {
	keys, err := dreip.NewElectionKeys(rng, spec.Name, spec.StartTime.Unix(), spec.EndTime.Unix())
	if err != nil {
		return nil, fmt.Errorf("generate election keys: %w", err)
	}

	electorates := make(map[string]types.Electorate, len(spec.Electorates))
	for _, e := range spec.Electorates {
		electorates[e.Name] = e
	}
	questions := make(map[string]types.Question, len(spec.Questions))
	for i, q := range spec.Questions {
		qid := types.QuestionID(i + 1)
		questions[questionKey(qid)] = q.Question(qid)
	}

	return &Election{
		ID: id,
		ElectionMetadata: types.ElectionMetadata{
			Name:      spec.Name,
			State:     types.ElectionDraft,
			StartTime: spec.StartTime.UTC(),
			EndTime:   spec.EndTime.UTC(),
		},
		Electorates: electorates,
		Questions:   questions,
		Crypto:      keys.Data(true),
	}, nil
}

func questionKey(id types.QuestionID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Question returns the question with the given ID, if present.
func (e *Election) Question(id types.QuestionID) (types.Question, bool) {
	q, ok := e.Questions[questionKey(id)]
	return q, ok
}

// Keys deserializes the election's cryptographic context, including the
// private key for the server-internal view.
func (e *Election) Keys() (*dreip.ElectionKeys, error) {
	return e.Crypto.Keys()
}

// PublicView returns a copy of the election with the private key stripped.
// This is the only form handed to API responses.
func (e *Election) PublicView() *Election {
	view := *e
	view.Crypto.PrivateKey = nil
	return &view
}

// CreateElection allocates a fresh election ID, persists the election built
// from the spec in Draft state, and creates its ballot counter.
func (s *Store) CreateElection(ctx context.Context, rng io.Reader, spec types.ElectionSpec) (*Election, error) {
	id, err := s.NextElectionID(ctx)
	if err != nil {
		return nil, err
	}
	election, err := NewElection(rng, id, spec)
	if err != nil {
		return nil, err
	}
	if _, err := s.elections().InsertOne(ctx, election); err != nil {
		return nil, fmt.Errorf("insert election: %w", err)
	}
	if err := s.createCounter(ctx, ballotCounterID(id)); err != nil {
		return nil, err
	}
	return election, nil
}

// Election returns the election with the given ID.
func (s *Store) Election(ctx context.Context, id types.ElectionID) (*Election, error) {
	var e Election
	err := s.elections().FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find election %d: %w", id, err)
	}
	return &e, nil
}

// VisibleElection returns the election with the given ID if it is published
// or archived. Drafts are only visible to admins.
func (s *Store) VisibleElection(ctx context.Context, id types.ElectionID) (*Election, error) {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"state": types.ElectionPublished},
			bson.M{"state": types.ElectionArchived},
		},
	}
	var e Election
	err := s.elections().FindOne(ctx, filter).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find election %d: %w", id, err)
	}
	return &e, nil
}

// ActiveElection returns the election with the given ID iff ballots may be
// created right now: published and start_time <= now < end_time.
func (s *Store) ActiveElection(ctx context.Context, id types.ElectionID, now time.Time) (*Election, error) {
	filter := bson.M{
		"_id":        id,
		"state":      types.ElectionPublished,
		"start_time": bson.M{"$lte": now},
		"end_time":   bson.M{"$gt": now},
	}
	var e Election
	err := s.elections().FindOne(ctx, filter).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active election %d: %w", id, err)
	}
	return &e, nil
}

// ListElections returns the elections visible to the caller. Archived asks
// for archived elections instead of current ones; admins additionally see
// drafts.
func (s *Store) ListElections(ctx context.Context, admin, archived bool) ([]*Election, error) {
	var filter bson.M
	switch {
	case archived:
		filter = bson.M{"state": types.ElectionArchived}
	case admin:
		filter = bson.M{"$or": bson.A{
			bson.M{"state": types.ElectionDraft},
			bson.M{"state": types.ElectionPublished},
		}}
	default:
		filter = bson.M{"state": types.ElectionPublished}
	}
	cursor, err := s.elections().Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	var elections []*Election
	if err := cursor.All(ctx, &elections); err != nil {
		return nil, fmt.Errorf("decode elections: %w", err)
	}
	return elections, nil
}

// ElectionsByState returns all elections in any of the given states.
func (s *Store) ElectionsByState(ctx context.Context, states ...types.ElectionState) ([]*Election, error) {
	or := make(bson.A, 0, len(states))
	for _, state := range states {
		or = append(or, bson.M{"state": state})
	}
	cursor, err := s.elections().Find(ctx, bson.M{"$or": or})
	if err != nil {
		return nil, fmt.Errorf("list elections by state: %w", err)
	}
	var elections []*Election
	if err := cursor.All(ctx, &elections); err != nil {
		return nil, fmt.Errorf("decode elections: %w", err)
	}
	return elections, nil
}

// setElectionState transitions an election between lifecycle states. The
// filter on the previous state makes the transition atomic: a concurrent
// identical request loses and reports ErrNotFound.
func (s *Store) setElectionState(ctx context.Context, id types.ElectionID, from, to types.ElectionState) error {
	res, err := s.elections().UpdateOne(ctx,
		bson.M{"_id": id, "state": from},
		bson.M{"$set": bson.M{"state": to}},
	)
	if err != nil {
		return fmt.Errorf("transition election %d to %s: %w", id, to, err)
	}
	if res.ModifiedCount != 1 {
		return ErrNotFound
	}
	return nil
}

// PublishElection performs the one-way Draft to Published transition.
func (s *Store) PublishElection(ctx context.Context, id types.ElectionID) error {
	return s.setElectionState(ctx, id, types.ElectionDraft, types.ElectionPublished)
}

// ArchiveElection performs the Published to Archived transition.
func (s *Store) ArchiveElection(ctx context.Context, id types.ElectionID) error {
	return s.setElectionState(ctx, id, types.ElectionPublished, types.ElectionArchived)
}
