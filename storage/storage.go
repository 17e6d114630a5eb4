// Package storage is the MongoDB persistence layer: elections, voters,
// admins, ballots, candidate totals, and the monotonic ID counters. All
// multi-document writes go through session transactions; single-document
// atomic updates are the serialization points the vote engine relies on.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/verivote/dreip-backend/log"
)

// Collection names.
const (
	collAdmins   = "admins"
	collVoters   = "voters"
	collElection = "elections"
	collBallots  = "ballots"
	collTotals   = "candidate_totals"
	collCounters = "counters"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrNotEligible is returned when a voter cannot confirm a ballot for a
	// question, either because they never could or because they already have.
	ErrNotEligible = errors.New("voter is not eligible for this question")
	// ErrAlreadyJoined is returned when a voter attempts to join an election
	// twice.
	ErrAlreadyJoined = errors.New("voter has already joined this election")
)

// Store wraps the MongoDB client and database handle. It is safe for
// concurrent use and shared across the process.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, ensures the indexes and the election ID counter
// exist, and returns the store.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureElectionCounter(ctx); err != nil {
		return nil, err
	}
	log.Infow("storage online", "db", dbName)
	return s, nil
}

// Close disconnects from the database.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) admins() *mongo.Collection    { return s.db.Collection(collAdmins) }
func (s *Store) voters() *mongo.Collection    { return s.db.Collection(collVoters) }
func (s *Store) elections() *mongo.Collection { return s.db.Collection(collElection) }
func (s *Store) ballots() *mongo.Collection   { return s.db.Collection(collBallots) }
func (s *Store) totals() *mongo.Collection    { return s.db.Collection(collTotals) }
func (s *Store) counters() *mongo.Collection  { return s.db.Collection(collCounters) }

// ensureIndexes creates the indexes the engine relies on.
func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{
			coll: s.voters(),
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "sms_hmac", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			coll: s.admins(),
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			coll: s.ballots(),
			model: mongo.IndexModel{
				Keys: bson.D{
					{Key: "election_id", Value: 1},
					{Key: "question_id", Value: 1},
					{Key: "state", Value: 1},
				},
			},
		},
		{
			coll: s.ballots(),
			model: mongo.IndexModel{
				Keys: bson.D{
					{Key: "election_id", Value: 1},
					{Key: "ballot_id", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			coll: s.totals(),
			model: mongo.IndexModel{
				Keys: bson.D{
					{Key: "election_id", Value: 1},
					{Key: "question_id", Value: 1},
					{Key: "candidate_name", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// withTransaction runs fn inside a session transaction. The transaction
// commits iff fn returns nil; any error aborts it entirely.
func (s *Store) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}
