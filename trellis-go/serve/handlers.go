package serve

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/status"
)

type deployRequest struct {
	Name          string `json:"name"`
	Artifact      string `json:"artifact"`
	InstanceCount int    `json:"instance_count"`
	InstanceType  string `json:"instance_type"`
	Accelerator   string `json:"accelerator"`
}

type endpointsResponse struct {
	Endpoints []EndpointInfo `json:"endpoints"`
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

type jobsResponse struct {
	Jobs []Job `json:"jobs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleDeployEndpoint(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrapf(ErrBadRequest, "decoding body: %v", err))
		return
	}
	if req.Artifact == "" {
		writeError(w, errors.Wrapf(ErrBadRequest, "artifact is required"))
		return
	}

	uri, err := s.Store.Resolve(req.Artifact)
	if err != nil {
		writeError(w, errors.Wrapf(ErrBadRequest, "%v", err))
		return
	}

	info, err := s.Registry.Deploy(req.Name, DeployConfig{
		ArtifactURI:   uri,
		InstanceCount: req.InstanceCount,
		InstanceType:  req.InstanceType,
		Accelerator:   req.Accelerator,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, endpointsResponse{Endpoints: s.Registry.List()})
}

func (s *Server) handleDescribeEndpoint(w http.ResponseWriter, r *http.Request) {
	info, err := s.Registry.Describe(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.Delete(mux.Vars(r)["name"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrapf(ErrBadRequest, "decoding body: %v", err))
		return
	}

	preds, err := s.Registry.Invoke(mux.Vars(r)["name"], req.Instances)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invokeResponse{Predictions: preds})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrapf(ErrBadRequest, "decoding body: %v", err))
		return
	}

	var cfg dnn.Config
	if req.Config != nil {
		cfg = *req.Config
	}
	if req.Steps > 0 {
		cfg.TrainSteps = req.Steps
	}

	job, err := s.Jobs.Submit(req.Name, req.DataURI, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jobsResponse{Jobs: s.Jobs.List()})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Jobs.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "pong")
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		code = http.StatusConflict
	case errors.Is(err, ErrBadRequest):
		code = http.StatusBadRequest
	case errors.Is(err, ErrBusy):
		code = http.StatusTooManyRequests
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
