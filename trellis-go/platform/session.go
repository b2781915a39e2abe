// Package platform is the SDK over the trellis training/serving platform:
// sessions, estimators, and predictors. A session without an endpoint URL
// runs everything in-process (local mode); with one it talks to a serving
// daemon.
package platform

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-go/serve"
	"github.com/trellis-ml/trellis/trellis-golib/envutil"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// Sentinel errors of the platform API, shared with the serving daemon.
var (
	ErrNotFound      = serve.ErrNotFound
	ErrAlreadyExists = serve.ErrAlreadyExists
	ErrBadRequest    = serve.ErrBadRequest
	ErrBusy          = serve.ErrBusy
)

// Session carries the platform configuration every SDK object hangs off.
type Session struct {
	// Region tags logs and artifacts; it never changes routing.
	Region string
	// Role is the identity training jobs run under.
	Role string
	// ArtifactRoot is the model store uri (local dir or s3 prefix).
	ArtifactRoot string
	// Endpoint is the serving daemon base URL. Empty means local mode.
	Endpoint string
	// HTTPClient overrides http.DefaultClient for daemon calls.
	HTTPClient *http.Client

	mu    sync.Mutex
	local *serve.Server
}

// NewSession builds a session from the environment:
// TRELLIS_REGION, TRELLIS_ROLE, TRELLIS_ARTIFACTS, TRELLIS_ENDPOINT.
func NewSession() *Session {
	return &Session{
		Region:       envutil.GetenvDefault("TRELLIS_REGION", "us-east-1"),
		Role:         envutil.GetenvDefault("TRELLIS_ROLE", "trellis-default"),
		ArtifactRoot: envutil.GetenvDefault("TRELLIS_ARTIFACTS", "/var/trellis/artifacts"),
		Endpoint:     envutil.GetenvDefault("TRELLIS_ENDPOINT", ""),
	}
}

// Validate checks the session can actually be used.
func (s *Session) Validate() error {
	if s.ArtifactRoot == "" {
		return errors.New("session has no artifact root")
	}
	if s.Endpoint != "" {
		u, err := url.Parse(s.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Errorf("endpoint %q is not a base URL", s.Endpoint)
		}
	}
	return nil
}

// Local reports whether the session runs in-process.
func (s *Session) Local() bool { return s.Endpoint == "" }

// Store returns a handle on the session's artifact store.
func (s *Session) Store() *artifact.Store {
	return artifact.NewStore(s.ArtifactRoot)
}

// Close tears down local-mode serving state, if any was built.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local != nil {
		s.local.Close()
		s.local = nil
	}
}

// server lazily builds the in-process platform used by local mode.
func (s *Session) server() (*serve.Server, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		srv, err := serve.NewServer(serve.Options{ArtifactRoot: s.ArtifactRoot})
		if err != nil {
			return nil, err
		}
		s.local = srv
	}
	return s.local, nil
}

func (s *Session) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}
