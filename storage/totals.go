package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

// CandidateTotalsDoc is the running totals document for one candidate of one
// question. Rows are created lazily on the first confirmation for the
// question.
type CandidateTotalsDoc struct {
	ID            primitive.ObjectID    `bson:"_id,omitempty" json:"-"`
	ElectionID    types.ElectionID      `bson:"election_id" json:"election_id"`
	QuestionID    types.QuestionID      `bson:"question_id" json:"question_id"`
	CandidateName types.CandidateID     `bson:"candidate_name" json:"candidate_name"`
	Totals        dreip.CandidateTotals `bson:",inline" json:"totals"`
}

// questionTotals returns all totals rows of a question.
func (s *Store) questionTotals(ctx context.Context, electionID types.ElectionID,
	questionID types.QuestionID,
) ([]*CandidateTotalsDoc, error) {
	filter := bson.M{"election_id": electionID, "question_id": questionID}
	cursor, err := s.totals().Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find candidate totals: %w", err)
	}
	var totals []*CandidateTotalsDoc
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("decode candidate totals: %w", err)
	}
	return totals, nil
}

// QuestionTotals returns the totals of a question keyed by candidate name.
func (s *Store) QuestionTotals(ctx context.Context, electionID types.ElectionID,
	questionID types.QuestionID,
) (map[types.CandidateID]dreip.CandidateTotals, error) {
	docs, err := s.questionTotals(ctx, electionID, questionID)
	if err != nil {
		return nil, err
	}
	totals := make(map[types.CandidateID]dreip.CandidateTotals, len(docs))
	for _, doc := range docs {
		totals[doc.CandidateName] = doc.Totals
	}
	return totals, nil
}

// upsertTotals writes back one totals row, creating it if necessary.
func (s *Store) upsertTotals(ctx context.Context, t *CandidateTotalsDoc) error {
	filter := bson.M{
		"election_id":    t.ElectionID,
		"question_id":    t.QuestionID,
		"candidate_name": t.CandidateName,
	}
	res, err := s.totals().ReplaceOne(ctx, filter, t, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert totals for %q: %w", t.CandidateName, err)
	}
	if res.ModifiedCount != 1 && res.UpsertedID == nil {
		return fmt.Errorf("totals for %q not written", t.CandidateName)
	}
	return nil
}
