package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/log"
	"github.com/victorrobotxt/toting/pipeline"
	"github.com/victorrobotxt/toting/types"
)

func identityFrom(r *http.Request) string {
	if id := r.Header.Get(identityHeader); id != "" {
		return id
	}
	return anonymousIdentity
}

func curveFrom(r *http.Request) string {
	if curve := r.Header.Get(curveHeader); curve != "" {
		return strings.ToLower(curve)
	}
	return config.DefaultCurve
}

// submitProof admits a proof request. A cache hit returns the finished
// result inline; otherwise the job id of the enqueued computation.
func (a *API) submitProof(w http.ResponseWriter, r *http.Request) {
	circuit := chi.URLParam(r, CircuitURLParam)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	res, err := a.pipeline.Submit(identityFrom(r), circuit, curveFrom(r), body)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrMalformedInput):
		ErrMalformedBody.WithErr(err).Write(w)
		return
	case errors.Is(err, types.ErrUnknownCircuit):
		ErrCircuitNotFound.Withf("%s", circuit).Write(w)
		return
	case errors.Is(err, types.ErrQuotaExceeded):
		ErrQuotaExceeded.Write(w)
		return
	default:
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if res.Cached {
		httpWriteJSON(w, resultResponse(string(types.JobDone), res.Result))
		return
	}
	httpWriteJSON(w, &ProofResponse{Status: string(types.JobPending), JobID: res.JobID})
}

// proofStatus polls one job. Terminal states are stable across polls.
func (a *API) proofStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, JobURLParam)
	status, err := a.pipeline.Status(jobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			ErrJobNotFound.Withf("%s", jobID).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	switch status.State {
	case types.JobDone:
		httpWriteJSON(w, resultResponse(string(types.JobDone), status.Result))
	case types.JobError:
		httpWriteJSON(w, &ProofResponse{Status: string(types.JobError), Error: status.Error})
	default:
		progress := status.Progress
		httpWriteJSON(w, &ProofResponse{Status: string(status.State), Progress: &progress})
	}
}

// proofStream emits {state, progress} snapshots as server-sent events at the
// pipeline cadence until the job reaches a terminal state. Disconnecting
// does not affect the running job.
func (a *API) proofStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, JobURLParam)
	flusher, ok := w.(http.Flusher)
	if !ok {
		ErrStreamUnsupported.Write(w)
		return
	}
	ch, err := a.pipeline.Watch(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			ErrJobNotFound.Withf("%s", jobID).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for snap := range ch {
		data, err := json.Marshal(StreamSnapshot{
			State:    string(snap.State),
			Progress: snap.Progress,
		})
		if err != nil {
			log.Warnw("failed to marshal stream snapshot", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			// client went away; the job keeps running
			return
		}
		flusher.Flush()
	}
}

// quota returns the identity's remaining daily proof budget, clamped at
// zero.
func (a *API) quota(w http.ResponseWriter, r *http.Request) {
	left, err := a.pipeline.Remaining(identityFrom(r))
	if err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &QuotaResponse{Left: left, Quota: a.pipeline.Quota()})
}
