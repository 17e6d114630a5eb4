package api

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"time"

	"github.com/verivote/dreip-backend/log"
	"github.com/verivote/dreip-backend/storage"
	"github.com/verivote/dreip-backend/types"
)

// electionSummary is the listing projection: metadata plus the ID, never any
// crypto.
type electionSummary struct {
	ID types.ElectionID `json:"id"`
	types.ElectionMetadata
}

// listElections lists election metadata. Admins additionally see drafts;
// ?archived=true lists archived elections instead.
// GET /elections?archived=bool
func (a *API) listElections(w http.ResponseWriter, r *http.Request) {
	archived := r.URL.Query().Get("archived") == "true"
	elections, err := a.store.ListElections(r.Context(), a.isAdmin(r), archived)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	summaries := make([]electionSummary, 0, len(elections))
	for _, e := range elections {
		summaries = append(summaries, electionSummary{ID: e.ID, ElectionMetadata: e.ElectionMetadata})
	}
	httpWriteJSON(w, summaries)
}

// electionDetail returns one election without secrets. Drafts are only
// visible to admins.
// GET /elections/{electionId}
func (a *API) electionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	var election *storage.Election
	if a.isAdmin(r) {
		election, err = a.store.Election(r.Context(), id)
	} else {
		election, err = a.store.VisibleElection(r.Context(), id)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpWriteJSON(w, election.PublicView())
}

// createElection creates a draft election from an admin-supplied spec.
// POST /elections
func (a *API) createElection(w http.ResponseWriter, r *http.Request) {
	var spec types.ElectionSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if err := spec.Validate(); err != nil {
		ErrMalformedElection.WithErr(err).Write(w)
		return
	}
	election, err := a.store.CreateElection(r.Context(), rand.Reader, spec)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	log.Infow("election created", "id", election.ID, "name", election.Name)
	httpWriteJSONStatus(w, http.StatusCreated, election.PublicView())
}

// publishElection performs the one-way Draft to Published transition and
// schedules the election's finalizer.
// POST /elections/{electionId}/publish
func (a *API) publishElection(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	if err := a.store.PublishElection(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	election, err := a.store.Election(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	a.finalizers.Schedule(election)
	log.Infow("election published", "id", id, "end_time", election.EndTime)
	httpWriteOK(w)
}

// archiveElection archives a published election whose end time has passed
// and fires its finalizer immediately.
// POST /elections/{electionId}/archive
func (a *API) archiveElection(w http.ResponseWriter, r *http.Request) {
	id, err := electionParam(r)
	if err != nil {
		ErrMalformedParam.Withf("election id: %v", err).Write(w)
		return
	}
	election, err := a.store.Election(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if election.EndTime.After(time.Now()) {
		ErrElectionNotEnded.Write(w)
		return
	}
	if err := a.store.ArchiveElection(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := a.finalizers.TriggerNow(id); err != nil {
		log.Errorw(err, "finalizer failed during archive")
		ErrGenericInternalServerError.Write(w)
		return
	}
	log.Infow("election archived", "id", id)
	httpWriteOK(w)
}
