package api

import (
	"encoding/json"
	"net/http"

	"github.com/verivote/dreip-backend/voting"
)

// joinElection enrols the voter in an election with the given electorate
// group memberships.
// POST /elections/{electionId}/join
func (a *API) joinElection(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	var joins map[string][]string
	if err := json.NewDecoder(r.Body).Decode(&joins); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	s := sessionFrom(r)
	if err := a.engine.Join(r.Context(), s.UserID, id, joins); err != nil {
		writeStoreError(w, err)
		return
	}
	httpWriteOK(w)
}

// allowedQuestions lists the questions the voter may still confirm a ballot
// for.
// GET /elections/{electionId}/questions/allowed
func (a *API) allowedQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	s := sessionFrom(r)
	voter, err := a.store.Voter(r.Context(), s.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	allowed := voter.Allowed(id)
	if allowed == nil {
		allowed = []uint32{}
	}
	httpWriteJSON(w, allowed)
}

// voterGroups lists the groups the voter joined for an election.
// GET /voter/elections/{electionId}/groups
func (a *API) voterGroups(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	s := sessionFrom(r)
	voter, err := a.store.Voter(r.Context(), s.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !voter.HasJoined(id) {
		ErrResourceNotFound.Withf("voter does not participate in election %d", id).Write(w)
		return
	}
	httpWriteJSON(w, voter.Groups(id))
}

// castBallots creates one unconfirmed ballot per spec and returns the signed
// receipts in request order.
// POST /elections/{electionId}/votes/cast
func (a *API) castBallots(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	var specs []voting.BallotSpec
	if err := json.NewDecoder(r.Body).Decode(&specs); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	receipts, err := a.engine.Cast(r.Context(), id, specs)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpWriteJSON(w, receipts)
}

// auditBallots audits the recalled ballots and returns receipts exposing the
// ballot secrets.
// POST /elections/{electionId}/votes/audit
func (a *API) auditBallots(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	var recalls []voting.BallotRecall
	if err := json.NewDecoder(r.Body).Decode(&recalls); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	receipts, err := a.engine.Audit(r.Context(), id, recalls)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpWriteJSON(w, receipts)
}

// confirmBallots confirms the recalled ballots, counting them into the
// candidate tallies.
// POST /elections/{electionId}/votes/confirm
func (a *API) confirmBallots(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	var recalls []voting.BallotRecall
	if err := json.NewDecoder(r.Body).Decode(&recalls); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	s := sessionFrom(r)
	receipts, err := a.engine.Confirm(r.Context(), s.UserID, id, recalls)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpWriteJSON(w, receipts)
}
