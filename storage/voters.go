package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/verivote/dreip-backend/types"
)

// Voter is a voter document. The phone number is never stored; the HMAC of
// its canonical form is the natural key. AllowedQuestions and JoinedGroups
// are keyed by the decimal election ID and populated when the voter joins an
// election; a question is removed from AllowedQuestions when the voter
// confirms a ballot for it.
type Voter struct {
	ID               primitive.ObjectID            `bson:"_id,omitempty" json:"-"`
	SmsHMAC          types.HexBytes                `bson:"sms_hmac" json:"-"`
	AllowedQuestions map[string][]types.QuestionID `bson:"allowed_questions" json:"allowed_questions"`
	JoinedGroups     map[string]map[string][]string `bson:"joined_groups" json:"joined_groups"`
}

func electionKey(id types.ElectionID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// HasJoined reports whether the voter has joined the given election.
func (v *Voter) HasJoined(id types.ElectionID) bool {
	_, ok := v.AllowedQuestions[electionKey(id)]
	return ok
}

// Allowed returns the questions the voter may still confirm for the given
// election.
func (v *Voter) Allowed(id types.ElectionID) []types.QuestionID {
	return v.AllowedQuestions[electionKey(id)]
}

// Groups returns the groups the voter joined for the given election.
func (v *Voter) Groups(id types.ElectionID) map[string][]string {
	return v.JoinedGroups[electionKey(id)]
}

// UpsertVoter finds the voter with the given sms HMAC, creating the document
// if it does not exist yet, and returns it.
func (s *Store) UpsertVoter(ctx context.Context, smsHMAC types.HexBytes) (*Voter, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := bson.M{"$setOnInsert": bson.M{
		"sms_hmac":          smsHMAC,
		"allowed_questions": bson.M{},
		"joined_groups":     bson.M{},
	}}
	var voter Voter
	err := s.voters().FindOneAndUpdate(ctx, bson.M{"sms_hmac": smsHMAC}, update, opts).Decode(&voter)
	if err != nil {
		return nil, fmt.Errorf("upsert voter: %w", err)
	}
	return &voter, nil
}

// Voter returns the voter with the given document ID.
func (s *Store) Voter(ctx context.Context, id primitive.ObjectID) (*Voter, error) {
	var voter Voter
	err := s.voters().FindOne(ctx, bson.M{"_id": id}).Decode(&voter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find voter: %w", err)
	}
	return &voter, nil
}

// JoinElection records the voter's joined groups and allowed question set for
// an election. The filter rejects a second join atomically.
func (s *Store) JoinElection(ctx context.Context, voterID primitive.ObjectID,
	electionID types.ElectionID, joins map[string][]string, allowed []types.QuestionID,
) error {
	key := electionKey(electionID)
	res, err := s.voters().UpdateOne(ctx,
		bson.M{
			"_id": voterID,
			"allowed_questions." + key: bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{
			"allowed_questions." + key: allowed,
			"joined_groups." + key:     joins,
		}},
	)
	if err != nil {
		return fmt.Errorf("join election %d: %w", electionID, err)
	}
	if res.ModifiedCount != 1 {
		return ErrAlreadyJoined
	}
	return nil
}

// consumeAllowedQuestion atomically checks that the voter may still confirm
// a ballot for the question and removes it from the allowed set. This is the
// serialization point guaranteeing at most one confirmation per
// (voter, question): of two concurrent confirms, exactly one update matches.
func (s *Store) consumeAllowedQuestion(sc mongo.SessionContext, voterID primitive.ObjectID,
	electionID types.ElectionID, questionID types.QuestionID,
) error {
	key := "allowed_questions." + electionKey(electionID)
	res, err := s.voters().UpdateOne(sc,
		bson.M{"_id": voterID, key: bson.M{"$in": bson.A{questionID}}},
		bson.M{"$pull": bson.M{key: bson.M{"$eq": questionID}}},
	)
	if err != nil {
		return fmt.Errorf("consume allowed question: %w", err)
	}
	if res.ModifiedCount != 1 {
		return ErrNotEligible
	}
	return nil
}
