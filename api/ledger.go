package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/victorrobotxt/toting/storage"
	"github.com/victorrobotxt/toting/types"
)

const defaultAuditPageSize = 50

// listAudits returns recent proof audit records, most recent first.
// Supports skip/limit pagination.
func (a *API) listAudits(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", defaultAuditPageSize)
	audits, err := a.storage.ListAudits(skip, limit)
	if err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	if audits == nil {
		audits = []*types.ProofAuditRecord{}
	}
	httpWriteJSON(w, audits)
}

// listDeadLetters exposes the dead-letter store for manual remediation.
// There is no requeue endpoint; operators replay by hand.
func (a *API) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := a.storage.ListDeadLetters()
	if err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	if letters == nil {
		letters = []*types.DeadLetterRecord{}
	}
	httpWriteJSON(w, letters)
}

// listElections returns every election the orchestrator has tracked.
func (a *API) listElections(w http.ResponseWriter, r *http.Request) {
	elections, err := a.storage.ListElections()
	if err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	if elections == nil {
		elections = []*types.Election{}
	}
	httpWriteJSON(w, elections)
}

// election returns one election's lifecycle state.
func (a *API) election(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, ElectionURLParam)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		ErrMalformedParam.Withf("electionId %q", raw).Write(w)
		return
	}
	e, err := a.storage.Election(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrElectionNotFound.Withf("%d", id).Write(w)
			return
		}
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, e)
}
