package serve

import (
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
)

// Wrap wraps the handler with the daemon's default middleware set.
func Wrap(handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.DefaultServeMux
	}
	return negroni.New(
		NewRecovery(),
		NewRequestLogger(logf.Basic()),
		negroni.Wrap(handler),
	)
}

// RequestLogger is a HTTP request logger for use as negroni middleware.
type RequestLogger struct {
	logger *log.Logger
}

// NewRequestLogger returns a negroni.Handler logging requests to the
// provided logger.
func NewRequestLogger(logger *log.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// ServeHTTP implements negroni.Handler
func (l *RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)

	url := r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.Query().Encode()
	}

	// health checks poll every few seconds, keep them out of the logs
	if r.Method == http.MethodGet && url == "/ping" {
		return
	}

	switch rw := w.(type) {
	case negroni.ResponseWriter:
		l.logger.Println(r.Method, url, rw.Status(), rw.Size(), time.Since(start))
	case http.ResponseWriter:
		l.logger.Println(r.Method, url, time.Since(start))
	}
}

// --

// Recovery is a panic recovery middleware handler for negroni.
type Recovery struct {
	StackAll  bool
	StackSize int
}

// NewRecovery returns a new Recovery negroni.Handler
func NewRecovery() *Recovery {
	return &Recovery{
		StackAll:  true,
		StackSize: 1028 * 8,
	}
}

// ServeHTTP implements negroni.Handler
func (rec *Recovery) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	defer func(req *http.Request) {
		if err := recover(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)

			stack := make([]byte, rec.StackSize)
			stack = stack[:runtime.Stack(stack, rec.StackAll)]
			logf.Basic().Println("[recovery!]", req.Method, req.URL.Path,
				fmt.Sprintf("PANIC: %s\n%s", err, stack))
		}
	}(r)

	next(w, r)
}
