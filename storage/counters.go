package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/verivote/dreip-backend/types"
)

// Counter document IDs. The election counter is a singleton; ballot counters
// are one per election, created together with the election.
const electionCounterID = "election_id"

func ballotCounterID(electionID types.ElectionID) string {
	return fmt.Sprintf("ballot_id:%d", electionID)
}

// counter is a monotonic counter document. Next is the value the counter will
// hand out next.
type counter struct {
	ID   string `bson:"_id"`
	Next int64  `bson:"next"`
}

// ensureElectionCounter creates the global election ID counter if missing.
// Counting starts at 1 so election IDs stay human-friendly.
func (s *Store) ensureElectionCounter(ctx context.Context) error {
	return s.createCounter(ctx, electionCounterID)
}

// createCounter inserts the named counter with next=1 if it does not exist.
func (s *Store) createCounter(ctx context.Context, id string) error {
	_, err := s.counters().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": bson.M{"next": int64(1)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("create counter %q: %w", id, err)
	}
	return nil
}

// nextCounterValue atomically increments the named counter and returns the
// previous value of next. The counter must exist.
func (s *Store) nextCounterValue(ctx context.Context, id string) (uint32, error) {
	var c counter
	err := s.counters().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"next": int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("counter %q does not exist: %w", id, ErrNotFound)
		}
		return 0, fmt.Errorf("increment counter %q: %w", id, err)
	}
	return uint32(c.Next), nil
}

// NextElectionID allocates the next election ID.
func (s *Store) NextElectionID(ctx context.Context) (types.ElectionID, error) {
	return s.nextCounterValue(ctx, electionCounterID)
}

// NextBallotID allocates the next ballot ID for the given election.
func (s *Store) NextBallotID(ctx context.Context, electionID types.ElectionID) (types.BallotID, error) {
	return s.nextCounterValue(ctx, ballotCounterID(electionID))
}
