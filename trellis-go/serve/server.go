package serve

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
)

// Time given to inflight requests once shutdown starts.
const shutdownGrace = 15 * time.Second

// Options configures a serving daemon.
type Options struct {
	// ArtifactRoot is the store uri (local dir or s3 prefix).
	ArtifactRoot string
	// CacheSize caps resident artifacts; 0 means the default.
	CacheSize int
	// TrainWorkers bounds concurrent training jobs; 0 means 1.
	TrainWorkers int
}

// Server bundles the registry, the job manager, and the store behind the
// daemon's HTTP API. It also backs the SDK's local mode, which calls the
// same components in-process.
type Server struct {
	Store    *artifact.Store
	Registry *Registry
	Jobs     *Jobs

	log    *log.Logger
	cancel context.CancelFunc
}

// NewServer assembles a server over the artifact root.
func NewServer(opts Options) (*Server, error) {
	cache, err := artifact.NewCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := artifact.NewStore(opts.ArtifactRoot)
	return &Server{
		Store:    store,
		Registry: NewRegistry(cache),
		Jobs:     NewJobs(ctx, store, opts.TrainWorkers),
		log:      logf.Named("serve"),
		cancel:   cancel,
	}, nil
}

// Close stops background training. In-flight jobs abort at their next
// cancellation check.
func (s *Server) Close() {
	s.Jobs.Stop()
	s.cancel()
}

// Router returns the daemon's route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ping", handlePing).Methods("GET")
	r.HandleFunc("/status", handleStatus).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/endpoints", s.handleDeployEndpoint).Methods("POST")
	v1.HandleFunc("/endpoints", s.handleListEndpoints).Methods("GET")
	v1.HandleFunc("/endpoints/{name}", s.handleDescribeEndpoint).Methods("GET")
	v1.HandleFunc("/endpoints/{name}", s.handleDeleteEndpoint).Methods("DELETE")
	v1.HandleFunc("/endpoints/{name}/invocations", s.handleInvoke).Methods("POST")
	v1.HandleFunc("/models", s.handleTrain).Methods("POST")
	v1.HandleFunc("/jobs", s.handleListJobs).Methods("GET")
	v1.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	return r
}

// Handler returns the route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Wrap(s.Router())
}

// Run serves the API on addr until the context is canceled, then drains
// inflight requests and stops training jobs.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	s.log.Printf("listening on %s, artifacts at %s", addr, s.Store.Root())

	select {
	case err := <-errs:
		s.Close()
		return err
	case <-ctx.Done():
		s.log.Printf("shutting down")
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
