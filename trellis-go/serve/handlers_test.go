package serve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	s, err := NewServer(Options{ArtifactRoot: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestAPI_Ping(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := doJSON(t, "GET", ts.URL+"/ping", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestAPI_Status(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := doJSON(t, "GET", ts.URL+"/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &snapshot))
}

func TestAPI_TrainDeployInvokeDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping training in short mode")
	}
	s, ts := newTestServer(t)

	// train a tiny model through the jobs API
	resp, body := doJSON(t, "POST", ts.URL+"/v1/models", trainRequest{
		Name:    "tiny",
		DataURI: "testdata/tiny_train.csv",
		Steps:   20,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var job Job
	require.NoError(t, json.Unmarshal(body, &job))
	require.NotEmpty(t, job.ID)

	deadline := time.Now().Add(60 * time.Second)
	for {
		resp, body = doJSON(t, "GET", ts.URL+"/v1/jobs/"+job.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &job))

		if job.State == JobCompleted {
			break
		}
		require.NotEqual(t, JobFailed, job.State, "job failed: %s", job.Error)
		require.True(t, time.Now().Before(deadline), "job did not finish in time")
		time.Sleep(50 * time.Millisecond)
	}
	require.NotEmpty(t, job.ArtifactURI)
	assert.NotEmpty(t, job.ArtifactID)

	// jobs listing includes it
	resp, body = doJSON(t, "GET", ts.URL+"/v1/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var jl jobsResponse
	require.NoError(t, json.Unmarshal(body, &jl))
	require.Len(t, jl.Jobs, 1)

	// deploy by model name, the store resolves the newest artifact
	resp, body = doJSON(t, "POST", ts.URL+"/v1/endpoints", deployRequest{
		Name:        "tiny-ep",
		Artifact:    "tiny",
		Accelerator: "accel.medium",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var info EndpointInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, StateInService, info.State)
	assert.Equal(t, 4, info.Features)

	// duplicate deploy conflicts
	resp, _ = doJSON(t, "POST", ts.URL+"/v1/endpoints", deployRequest{
		Name:     "tiny-ep",
		Artifact: "tiny",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// describe and list
	resp, _ = doJSON(t, "GET", ts.URL+"/v1/endpoints/tiny-ep", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = doJSON(t, "GET", ts.URL+"/v1/endpoints", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var el endpointsResponse
	require.NoError(t, json.Unmarshal(body, &el))
	require.Len(t, el.Endpoints, 1)

	// invoke
	resp, body = doJSON(t, "POST", ts.URL+"/v1/endpoints/tiny-ep/invocations", invokeRequest{
		Instances: [][]float64{{6.4, 3.2, 4.5, 1.5}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var ir invokeResponse
	require.NoError(t, json.Unmarshal(body, &ir))
	require.Len(t, ir.Predictions, 1)
	assert.Len(t, ir.Predictions[0].Scores, 3)

	// shape violation
	resp, _ = doJSON(t, "POST", ts.URL+"/v1/endpoints/tiny-ep/invocations", invokeRequest{
		Instances: [][]float64{{1, 2}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// delete, then everything 404s
	resp, _ = doJSON(t, "DELETE", ts.URL+"/v1/endpoints/tiny-ep", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, "DELETE", ts.URL+"/v1/endpoints/tiny-ep", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, "POST", ts.URL+"/v1/endpoints/tiny-ep/invocations", invokeRequest{
		Instances: [][]float64{{6.4, 3.2, 4.5, 1.5}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// the trained artifact survives endpoint deletion
	metas, err := s.Store.List("tiny")
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func TestAPI_BadRequests(t *testing.T) {
	_, ts := newTestServer(t)

	resp, _ := doJSON(t, "POST", ts.URL+"/v1/endpoints", map[string]int{"instance_count": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing artifact")

	req, err := http.NewRequest("POST", ts.URL+"/v1/endpoints", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	resp, _ = doJSON(t, "POST", ts.URL+"/v1/models", trainRequest{Name: "", DataURI: "x.csv"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, "GET", ts.URL+"/v1/jobs/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, "GET", ts.URL+"/v1/endpoints/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWriteError_Codes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("wrap: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", ErrAlreadyExists), http.StatusConflict},
		{fmt.Errorf("wrap: %w", ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", ErrBusy), http.StatusTooManyRequests},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, c.err)
		assert.Equal(t, c.code, rec.Code, c.err.Error())

		var er errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
		assert.NotEmpty(t, er.Error)
	}
}

func TestRecovery_MiddlewareTurnsPanicsInto500(t *testing.T) {
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/endpoints", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
