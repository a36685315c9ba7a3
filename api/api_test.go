package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/config"
	"github.com/victorrobotxt/toting/pipeline"
	"github.com/victorrobotxt/toting/prover"
	"github.com/victorrobotxt/toting/storage"
	"github.com/victorrobotxt/toting/types"
)

func testServer(t *testing.T, quota int) (*httptest.Server, *storage.Storage) {
	t.Helper()
	stg := storage.New(metadb.NewTest(t))
	reg := circuits.NewRegistry(stg, config.DefaultManifest())
	adm := pipeline.NewAdmissionController(stg, quota)
	p := pipeline.New(reg, adm, prover.NewFallbackProver(), stg, 2, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	qt.Assert(t, p.Start(ctx), qt.IsNil)
	t.Cleanup(p.Stop)

	a := &API{pipeline: p, storage: stg}
	a.initRouter()
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return srv, stg
}

func doJSON(c *qt.C, method, url string, headers map[string]string, body []byte) (int, map[string]json.RawMessage) {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	c.Assert(err, qt.IsNil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	var out map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		out = nil
	}
	return resp.StatusCode, out
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	srv, _ := testServer(t, 10)
	resp, err := http.Get(srv.URL + PingEndpoint)
	c.Assert(err, qt.IsNil)
	resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
}

func TestSubmitPollAndCacheHit(t *testing.T) {
	c := qt.New(t)
	srv, _ := testServer(t, 10)
	url := srv.URL + "/api/zk/" + config.CircuitEligibility
	headers := map[string]string{identityHeader: "alice@example.com"}

	status, body := doJSON(c, "POST", url, headers, []byte(`{"vote":1}`))
	c.Assert(status, qt.Equals, http.StatusOK)
	var jobID string
	c.Assert(json.Unmarshal(body["jobId"], &jobID), qt.IsNil)
	c.Assert(jobID, qt.Not(qt.Equals), "")

	// poll until terminal
	var result map[string]json.RawMessage
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, result = doJSON(c, "GET", url+"/"+jobID, nil, nil)
		c.Assert(status, qt.Equals, http.StatusOK)
		var st string
		c.Assert(json.Unmarshal(result["status"], &st), qt.IsNil)
		if st == string(types.JobDone) || st == string(types.JobError) {
			c.Assert(st, qt.Equals, string(types.JobDone))
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.Assert(result["proof"], qt.Not(qt.IsNil))
	c.Assert(result["pubSignals"], qt.Not(qt.IsNil))

	// identical inputs: synchronous cache hit, distinguished by shape
	status, body = doJSON(c, "POST", url, headers, []byte(` {"vote": 1} `))
	c.Assert(status, qt.Equals, http.StatusOK)
	var st string
	c.Assert(json.Unmarshal(body["status"], &st), qt.IsNil)
	c.Assert(st, qt.Equals, string(types.JobDone))
	c.Assert(body["jobId"], qt.IsNil)
	c.Assert(string(body["proof"]), qt.Equals, string(result["proof"]))
}

func TestSubmitRejections(t *testing.T) {
	c := qt.New(t)
	srv, _ := testServer(t, 1)
	headers := map[string]string{identityHeader: "bob"}

	status, _ := doJSON(c, "POST", srv.URL+"/api/zk/"+config.CircuitEligibility, headers, []byte(`{bad`))
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	status, _ = doJSON(c, "POST", srv.URL+"/api/zk/unknown", headers, []byte(`{"a":1}`))
	c.Assert(status, qt.Equals, http.StatusNotFound)

	// quota of one: first passes, second is rejected
	status, _ = doJSON(c, "POST", srv.URL+"/api/zk/"+config.CircuitEligibility, headers, []byte(`{"a":1}`))
	c.Assert(status, qt.Equals, http.StatusOK)
	status, _ = doJSON(c, "POST", srv.URL+"/api/zk/"+config.CircuitEligibility, headers, []byte(`{"a":2}`))
	c.Assert(status, qt.Equals, http.StatusTooManyRequests)
}

func TestUnknownJob(t *testing.T) {
	c := qt.New(t)
	srv, _ := testServer(t, 10)
	status, _ := doJSON(c, "GET", srv.URL+"/api/zk/"+config.CircuitEligibility+"/no-such-job", nil, nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)
}

func TestQuota(t *testing.T) {
	c := qt.New(t)
	srv, _ := testServer(t, 5)
	headers := map[string]string{identityHeader: "carol"}

	status, body := doJSON(c, "GET", srv.URL+QuotaEndpoint, headers, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	var left int
	c.Assert(json.Unmarshal(body["left"], &left), qt.IsNil)
	c.Assert(left, qt.Equals, 5)

	doJSON(c, "POST", srv.URL+"/api/zk/"+config.CircuitEligibility, headers, []byte(`{"a":1}`))
	status, body = doJSON(c, "GET", srv.URL+QuotaEndpoint, headers, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(body["left"], &left), qt.IsNil)
	c.Assert(left, qt.Equals, 4)
}

func TestAuditAndDeadLetterListing(t *testing.T) {
	c := qt.New(t)
	srv, stg := testServer(t, 10)

	resp, err := http.Get(srv.URL + AuditsEndpoint)
	c.Assert(err, qt.IsNil)
	var audits []*types.ProofAuditRecord
	c.Assert(json.NewDecoder(resp.Body).Decode(&audits), qt.IsNil)
	resp.Body.Close()
	c.Assert(audits, qt.HasLen, 0)

	c.Assert(stg.PushDeadLetter(&types.DeadLetterRecord{
		EventBlock: 7,
		Error:      "execution reverted",
		Attempts:   5,
		Timestamp:  time.Now().UTC(),
	}), qt.IsNil)
	resp, err = http.Get(srv.URL + DeadLettersEndpoint)
	c.Assert(err, qt.IsNil)
	var letters []*types.DeadLetterRecord
	c.Assert(json.NewDecoder(resp.Body).Decode(&letters), qt.IsNil)
	resp.Body.Close()
	c.Assert(letters, qt.HasLen, 1)
	c.Assert(letters[0].EventBlock, qt.Equals, uint64(7))
}

func TestElections(t *testing.T) {
	c := qt.New(t)
	srv, stg := testServer(t, 10)
	c.Assert(stg.SetElection(&types.Election{
		ID: 0, StartBlock: 10, EndBlock: 30, Status: "tallied", Tally: []string{"0", "5"},
	}), qt.IsNil)

	status, body := doJSON(c, "GET", srv.URL+"/elections/0", nil, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	var got string
	c.Assert(json.Unmarshal(body["status"], &got), qt.IsNil)
	c.Assert(got, qt.Equals, "tallied")

	status, _ = doJSON(c, "GET", srv.URL+"/elections/99", nil, nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)

	status, _ = doJSON(c, "GET", srv.URL+"/elections/notanumber", nil, nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
}

func TestProofStream(t *testing.T) {
	c := qt.New(t)
	srv, _ := testServer(t, 10)
	url := srv.URL + "/api/zk/" + config.CircuitEligibility
	headers := map[string]string{identityHeader: "dave"}

	status, body := doJSON(c, "POST", url, headers, []byte(`{"x":1}`))
	c.Assert(status, qt.Equals, http.StatusOK)
	var jobID string
	c.Assert(json.Unmarshal(body["jobId"], &jobID), qt.IsNil)

	resp, err := http.Get(fmt.Sprintf("%s/%s/stream", url, jobID))
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(resp.Header.Get("Content-Type"), qt.Equals, "text/event-stream")

	var last StreamSnapshot
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		c.Assert(json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last), qt.IsNil)
	}
	c.Assert(last.State, qt.Equals, string(types.JobDone))
	c.Assert(last.Progress, qt.Equals, 100)
}
