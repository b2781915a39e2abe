package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-go/serve"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// Wire shapes of the daemon API. Field names must stay in sync with the
// serve package handlers.

type deployRequest struct {
	Name          string `json:"name"`
	Artifact      string `json:"artifact"`
	InstanceCount int    `json:"instance_count"`
	InstanceType  string `json:"instance_type"`
	Accelerator   string `json:"accelerator"`
}

type endpointsResponse struct {
	Endpoints []serve.EndpointInfo `json:"endpoints"`
}

type invokeRequest struct {
	Instances [][]float64 `json:"instances"`
}

type invokeResponse struct {
	Predictions []dnn.Prediction `json:"predictions"`
}

type trainRequest struct {
	Name    string      `json:"name"`
	DataURI string      `json:"data_uri"`
	Steps   int         `json:"steps"`
	Config  *dnn.Config `json:"config,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// call runs one JSON round trip against the daemon, mapping HTTP error
// codes back onto the sentinel taxonomy.
func (s *Session) call(ctx context.Context, method, path string, in, out interface{}) error {
	url := strings.TrimRight(s.Endpoint, "/") + path

	var body *bytes.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := resp.Status
		var er errorResponse
		if buf, err := ioutil.ReadAll(resp.Body); err == nil {
			if json.Unmarshal(buf, &er) == nil && er.Error != "" {
				msg = er.Error
			}
		}
		if sentinel := sentinelFor(resp.StatusCode); sentinel != nil {
			return errors.Wrapf(sentinel, "%s %s: %s", method, path, msg)
		}
		return errors.Errorf("%s %s: %s", method, path, msg)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return errors.WrapfOrNil(json.NewDecoder(resp.Body).Decode(out), "%s %s: decoding response", method, path)
}

func sentinelFor(code int) error {
	switch code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrAlreadyExists
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusTooManyRequests:
		return ErrBusy
	default:
		return nil
	}
}

// DescribeEndpoint fetches one endpoint's description from the daemon, or
// from the in-process registry in local mode.
func (s *Session) DescribeEndpoint(ctx context.Context, name string) (serve.EndpointInfo, error) {
	if s.Local() {
		srv, err := s.server()
		if err != nil {
			return serve.EndpointInfo{}, err
		}
		return srv.Registry.Describe(name)
	}
	var info serve.EndpointInfo
	err := s.call(ctx, "GET", "/v1/endpoints/"+name, nil, &info)
	return info, err
}

// ListEndpoints lists deployed endpoints.
func (s *Session) ListEndpoints(ctx context.Context) ([]serve.EndpointInfo, error) {
	if s.Local() {
		srv, err := s.server()
		if err != nil {
			return nil, err
		}
		return srv.Registry.List(), nil
	}
	var resp endpointsResponse
	if err := s.call(ctx, "GET", "/v1/endpoints", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Endpoints, nil
}

// ListJobs lists training jobs. Local mode has none: local training runs
// synchronously inside Fit.
func (s *Session) ListJobs(ctx context.Context) ([]serve.Job, error) {
	if s.Local() {
		return nil, nil
	}
	var resp struct {
		Jobs []serve.Job `json:"jobs"`
	}
	if err := s.call(ctx, "GET", "/v1/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob fetches one training job.
func (s *Session) GetJob(ctx context.Context, id string) (serve.Job, error) {
	if s.Local() {
		return serve.Job{}, errors.Wrapf(ErrNotFound, "job %s: local sessions run training synchronously", id)
	}
	var job serve.Job
	err := s.call(ctx, "GET", "/v1/jobs/"+id, nil, &job)
	return job, err
}
