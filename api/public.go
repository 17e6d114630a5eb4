package api

import (
	"net/http"

	"github.com/verivote/dreip-backend/ballot"
	"github.com/verivote/dreip-backend/crypto/dreip"
	"github.com/verivote/dreip-backend/log"
	"github.com/verivote/dreip-backend/types"
	"github.com/verivote/dreip-backend/verifier"
)

// questionParams parses the election and question URL parameters.
func questionParams(r *http.Request) (types.ElectionID, types.QuestionID, error) {
	electionID, err := electionParam(r)
	if err != nil {
		return 0, 0, err
	}
	questionID, err := urlParamUint32(r, QuestionURLParam)
	if err != nil {
		return 0, 0, err
	}
	return electionID, questionID, nil
}

// questionBallots lists the audited and confirmed receipts of a question,
// paginated.
// GET /elections/{electionId}/{questionId}/ballots?page_num&page_size
func (a *API) questionBallots(w http.ResponseWriter, r *http.Request) {
	electionID, questionID, err := questionParams(r)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	page, err := types.ParsePagination(r.URL.Query())
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}

	// Drafts cannot have ballots, so no visibility filter is needed here.
	election, err := a.store.Election(r.Context(), electionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	keys, err := election.Keys()
	if err != nil {
		log.Errorw(err, "failed to load election keys")
		ErrGenericInternalServerError.Write(w)
		return
	}

	finished, total, err := a.store.FinishedBallots(r.Context(), electionID, questionID, page)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	receipts := make([]ballot.ReceiptData, 0, len(finished))
	for _, f := range finished {
		receipt, err := f.Receipt(keys)
		if err != nil {
			log.Errorw(err, "failed to build receipt")
			ErrGenericInternalServerError.Write(w)
			return
		}
		receipts = append(receipts, receipt)
	}

	httpWriteJSON(w, types.Paginated[ballot.ReceiptData]{
		Items:      receipts,
		Pagination: page.Result(total),
	})
}

// questionBallot returns one audited or confirmed receipt.
// GET /elections/{electionId}/{questionId}/ballots/{ballotId}
func (a *API) questionBallot(w http.ResponseWriter, r *http.Request) {
	electionID, questionID, err := questionParams(r)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	ballotID, err := urlParamUint32(r, BallotURLParam)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}

	election, err := a.store.Election(r.Context(), electionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	keys, err := election.Keys()
	if err != nil {
		log.Errorw(err, "failed to load election keys")
		ErrGenericInternalServerError.Write(w)
		return
	}

	finished, err := a.store.FinishedBallot(r.Context(), electionID, questionID, ballotID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	receipt, err := finished.Receipt(keys)
	if err != nil {
		log.Errorw(err, "failed to build receipt")
		ErrGenericInternalServerError.Write(w)
		return
	}
	httpWriteJSON(w, receipt)
}

// questionTotals returns the candidate tallies of a question.
// GET /elections/{electionId}/{questionId}/totals
func (a *API) questionTotals(w http.ResponseWriter, r *http.Request) {
	electionID, questionID, err := questionParams(r)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	totals, err := a.store.QuestionTotals(r.Context(), electionID, questionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpWriteJSON(w, totals)
}

// questionDump returns the verifiable bundle for a question: election crypto,
// all finished receipts, and the claimed totals, read from one consistent
// snapshot. The output is exactly what the standalone verifier consumes.
// GET /elections/{electionId}/{questionId}/dump
func (a *API) questionDump(w http.ResponseWriter, r *http.Request) {
	electionID, questionID, err := questionParams(r)
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}

	election, finished, totalsDocs, err := a.store.QuestionDump(r.Context(), electionID, questionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	keys, err := election.Keys()
	if err != nil {
		log.Errorw(err, "failed to load election keys")
		ErrGenericInternalServerError.Write(w)
		return
	}

	results := &verifier.ElectionResults{
		Election:  election.Crypto,
		Audited:   make(map[string]ballot.ReceiptData),
		Confirmed: make(map[string]ballot.ReceiptData),
		Totals:    make(map[types.CandidateID]dreip.CandidateTotals, len(totalsDocs)),
	}
	// The dump must never carry the private key.
	results.Election.PrivateKey = nil

	for _, f := range finished {
		receipt, err := f.Receipt(keys)
		if err != nil {
			log.Errorw(err, "failed to build receipt")
			ErrGenericInternalServerError.Write(w)
			return
		}
		key := verifier.BallotKey(receipt.BallotID)
		if f.Audited != nil {
			results.Audited[key] = receipt
		} else {
			results.Confirmed[key] = receipt
		}
	}
	for _, t := range totalsDocs {
		results.Totals[t.CandidateName] = t.Totals
	}

	httpWriteJSON(w, results)
}
