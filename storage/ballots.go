package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/verivote/dreip-backend/ballot"
	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/types"
)

// FinishedBallot is a ballot in one of the two terminal states. Exactly one
// of the fields is set.
type FinishedBallot struct {
	Audited   *ballot.Ballot[ballot.Audited]
	Confirmed *ballot.Ballot[ballot.Confirmed]
}

// Receipt signs the finished ballot's receipt with the election keys.
func (f FinishedBallot) Receipt(keys *dreip.ElectionKeys) (ballot.ReceiptData, error) {
	switch {
	case f.Audited != nil:
		r, err := ballot.NewReceipt(*f.Audited, keys)
		return r.Data(), err
	case f.Confirmed != nil:
		r, err := ballot.NewReceipt(*f.Confirmed, keys)
		return r.Data(), err
	}
	return ballot.ReceiptData{}, fmt.Errorf("finished ballot has no state")
}

// ballotDoc is the state-agnostic decode target for ballot documents.
type ballotDoc ballot.Ballot[ballot.Unconfirmed]

func (d ballotDoc) finished() (FinishedBallot, error) {
	switch d.State {
	case ballot.TagAudited:
		return FinishedBallot{Audited: &ballot.Ballot[ballot.Audited]{
			BallotID:   d.BallotID,
			ElectionID: d.ElectionID,
			QuestionID: d.QuestionID,
			Created:    d.Created,
			State:      d.State,
			Crypto:     d.Crypto,
		}}, nil
	case ballot.TagConfirmed:
		return FinishedBallot{Confirmed: &ballot.Ballot[ballot.Confirmed]{
			BallotID:   d.BallotID,
			ElectionID: d.ElectionID,
			QuestionID: d.QuestionID,
			Created:    d.Created,
			State:      d.State,
			Crypto:     d.Crypto,
		}}, nil
	}
	return FinishedBallot{}, fmt.Errorf("unexpected ballot state %q", d.State)
}

// finishedFilter matches audited and confirmed ballots of a question.
func finishedFilter(electionID types.ElectionID, questionID types.QuestionID) bson.M {
	return bson.M{
		"election_id": electionID,
		"question_id": questionID,
		"$or": bson.A{
			bson.M{"state": ballot.TagAudited},
			bson.M{"state": ballot.TagConfirmed},
		},
	}
}

// InsertUnconfirmed persists a batch of fresh ballots in a single
// transaction: either all of them exist afterwards or none do.
func (s *Store) InsertUnconfirmed(ctx context.Context, ballots []*ballot.Ballot[ballot.Unconfirmed]) error {
	docs := make([]any, len(ballots))
	for i, b := range ballots {
		docs[i] = b
	}
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.ballots().InsertMany(sc, docs); err != nil {
			return fmt.Errorf("insert ballots: %w", err)
		}
		return nil
	})
}

// UnconfirmedBallot fetches the unconfirmed ballot matching the triple.
func (s *Store) UnconfirmedBallot(ctx context.Context, electionID types.ElectionID,
	questionID types.QuestionID, ballotID types.BallotID,
) (*ballot.Ballot[ballot.Unconfirmed], error) {
	filter := bson.M{
		"ballot_id":   ballotID,
		"election_id": electionID,
		"question_id": questionID,
		"state":       ballot.TagUnconfirmed,
	}
	var b ballot.Ballot[ballot.Unconfirmed]
	err := s.ballots().FindOne(ctx, filter).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find unconfirmed ballot %d: %w", ballotID, err)
	}
	return &b, nil
}

// replaceUnconfirmed swaps the stored unconfirmed row for its terminal
// projection. The state filter makes the transition atomic; a concurrent
// transition loses and surfaces as ErrNotFound.
func (s *Store) replaceUnconfirmed(ctx context.Context, electionID types.ElectionID,
	questionID types.QuestionID, ballotID types.BallotID, replacement any,
) error {
	filter := bson.M{
		"ballot_id":   ballotID,
		"election_id": electionID,
		"question_id": questionID,
		"state":       ballot.TagUnconfirmed,
	}
	res, err := s.ballots().ReplaceOne(ctx, filter, replacement)
	if err != nil {
		return fmt.Errorf("replace ballot %d: %w", ballotID, err)
	}
	if res.ModifiedCount != 1 {
		return ErrNotFound
	}
	return nil
}

// AuditBallots transitions the given unconfirmed ballots to audited in one
// transaction.
func (s *Store) AuditBallots(ctx context.Context,
	ballots []ballot.Ballot[ballot.Unconfirmed],
) ([]ballot.Ballot[ballot.Audited], error) {
	audited := make([]ballot.Ballot[ballot.Audited], 0, len(ballots))
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		audited = audited[:0]
		for _, b := range ballots {
			a := ballot.Audit(b)
			if err := s.replaceUnconfirmed(sc, b.ElectionID, b.QuestionID, b.BallotID, a); err != nil {
				return err
			}
			audited = append(audited, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audited, nil
}

// AuditBallot transitions a single unconfirmed ballot to audited outside any
// transaction. The finalizer uses this: a partial sweep is still better than
// none.
func (s *Store) AuditBallot(ctx context.Context,
	b ballot.Ballot[ballot.Unconfirmed],
) (ballot.Ballot[ballot.Audited], error) {
	a := ballot.Audit(b)
	if err := s.replaceUnconfirmed(ctx, b.ElectionID, b.QuestionID, b.BallotID, a); err != nil {
		return ballot.Ballot[ballot.Audited]{}, err
	}
	return a, nil
}

// ConfirmBallot runs the whole confirmation for one ballot in a single
// transaction:
//
//  1. atomically consume the voter's eligibility for the question,
//  2. read (or lazily create) the candidate totals for the question,
//  3. confirm the ballot, folding its secrets into the totals,
//  4. replace the unconfirmed row with the confirmed projection,
//  5. upsert the updated totals.
//
// Any failure rolls back every step, restoring eligibility.
func (s *Store) ConfirmBallot(ctx context.Context, voterID primitive.ObjectID,
	b ballot.Ballot[ballot.Unconfirmed], candidates []types.CandidateID,
) (ballot.Ballot[ballot.Confirmed], error) {
	var confirmed ballot.Ballot[ballot.Confirmed]
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.consumeAllowedQuestion(sc, voterID, b.ElectionID, b.QuestionID); err != nil {
			return err
		}

		totals, err := s.questionTotals(sc, b.ElectionID, b.QuestionID)
		if err != nil {
			return err
		}
		if len(totals) == 0 {
			for _, candidate := range candidates {
				totals = append(totals, &CandidateTotalsDoc{
					ElectionID:    b.ElectionID,
					QuestionID:    b.QuestionID,
					CandidateName: candidate,
					Totals:        dreip.NewCandidateTotals(),
				})
			}
		}
		if len(totals) != len(b.Crypto.Votes) {
			return fmt.Errorf("found %d totals for %d candidates", len(totals), len(b.Crypto.Votes))
		}
		totalsByName := make(map[types.CandidateID]*dreip.CandidateTotals, len(totals))
		for _, t := range totals {
			totalsByName[t.CandidateName] = &t.Totals
		}

		confirmed, err = ballot.Confirm(b, totalsByName)
		if err != nil {
			return err
		}
		if err := s.replaceUnconfirmed(sc, b.ElectionID, b.QuestionID, b.BallotID, confirmed); err != nil {
			return err
		}

		for _, t := range totals {
			if err := s.upsertTotals(sc, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ballot.Ballot[ballot.Confirmed]{}, err
	}
	return confirmed, nil
}

// UnconfirmedBallots returns every unconfirmed ballot of an election.
func (s *Store) UnconfirmedBallots(ctx context.Context, electionID types.ElectionID) ([]ballot.Ballot[ballot.Unconfirmed], error) {
	filter := bson.M{"election_id": electionID, "state": ballot.TagUnconfirmed}
	cursor, err := s.ballots().Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find unconfirmed ballots: %w", err)
	}
	var ballots []ballot.Ballot[ballot.Unconfirmed]
	if err := cursor.All(ctx, &ballots); err != nil {
		return nil, fmt.Errorf("decode unconfirmed ballots: %w", err)
	}
	return ballots, nil
}

// FinishedBallots returns one page of the audited and confirmed ballots of a
// question, plus the total count.
func (s *Store) FinishedBallots(ctx context.Context, electionID types.ElectionID,
	questionID types.QuestionID, page types.Pagination,
) ([]FinishedBallot, int64, error) {
	filter := finishedFilter(electionID, questionID)
	opts := options.Find().
		SetSkip(page.Skip()).
		SetLimit(page.PageSize).
		SetSort(bson.D{{Key: "ballot_id", Value: 1}})
	cursor, err := s.ballots().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find finished ballots: %w", err)
	}
	var docs []ballotDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode finished ballots: %w", err)
	}
	finished := make([]FinishedBallot, 0, len(docs))
	for _, doc := range docs {
		f, err := doc.finished()
		if err != nil {
			return nil, 0, err
		}
		finished = append(finished, f)
	}

	total, err := s.ballots().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count finished ballots: %w", err)
	}
	return finished, total, nil
}

// FinishedBallot returns a single audited or confirmed ballot.
func (s *Store) FinishedBallot(ctx context.Context, electionID types.ElectionID,
	questionID types.QuestionID, ballotID types.BallotID,
) (FinishedBallot, error) {
	filter := finishedFilter(electionID, questionID)
	filter["ballot_id"] = ballotID
	var doc ballotDoc
	err := s.ballots().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return FinishedBallot{}, ErrNotFound
	}
	if err != nil {
		return FinishedBallot{}, fmt.Errorf("find finished ballot %d: %w", ballotID, err)
	}
	return doc.finished()
}

// QuestionDump reads a consistent snapshot of everything needed to verify a
// question: the election, its finished ballots, and the candidate totals.
func (s *Store) QuestionDump(ctx context.Context, electionID types.ElectionID,
	questionID types.QuestionID,
) (*Election, []FinishedBallot, []*CandidateTotalsDoc, error) {
	session, err := s.client.StartSession(options.Session().SetSnapshot(true))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("start snapshot session: %w", err)
	}
	defer session.EndSession(ctx)

	var election *Election
	var finished []FinishedBallot
	var totals []*CandidateTotalsDoc
	err = mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		filter := bson.M{
			"_id": electionID,
			"$or": bson.A{
				bson.M{"state": types.ElectionPublished},
				bson.M{"state": types.ElectionArchived},
			},
		}
		var e Election
		if err := s.elections().FindOne(sc, filter).Decode(&e); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return fmt.Errorf("find election %d: %w", electionID, err)
		}
		election = &e

		cursor, err := s.ballots().Find(sc, finishedFilter(electionID, questionID))
		if err != nil {
			return fmt.Errorf("find finished ballots: %w", err)
		}
		var docs []ballotDoc
		if err := cursor.All(sc, &docs); err != nil {
			return fmt.Errorf("decode finished ballots: %w", err)
		}
		for _, doc := range docs {
			f, err := doc.finished()
			if err != nil {
				return err
			}
			finished = append(finished, f)
		}

		totals, err = s.questionTotals(sc, electionID, questionID)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return election, finished, totals, nil
}
